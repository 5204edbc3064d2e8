package scanner

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Nomadcxx/strmsync/internal/normalize"
)

// Season folders: "Season 1", "Season 01", "S01", "Series 2", "Specials"
var seasonFolderRegex = regexp.MustCompile(`(?i)^(?:season|series|s)\s*\d+$|^specials$`)

// defaultTVMarkers are path segments that force episode parsing
var defaultTVMarkers = []string{"tv shows", "tv", "shows", "series"}

// episodeKey derives the identity key of an episode file. The show folder is
// the parent, or the grandparent when the parent is a season folder.
func episodeKey(path string) (string, bool) {
	return normalize.LibraryEpisodeKey(stem(path), showDir(path))
}

func showDir(path string) string {
	dir := filepath.Dir(path)
	if seasonFolderRegex.MatchString(filepath.Base(dir)) {
		return filepath.Dir(dir)
	}
	return dir
}

// hasTVSegment reports whether any folder segment of path is a TV marker
func hasTVSegment(path string, markers []string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(filepath.Dir(path)), "/") {
		seg := strings.ToLower(strings.TrimSpace(segment))
		if seg == "" {
			continue
		}
		for _, marker := range markers {
			if seg == marker {
				return true
			}
		}
	}
	return false
}
