package scanner

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Nomadcxx/strmsync/internal/normalize"
)

// Jellyfin-style movie folder: "Name (2010)" possibly followed by tags
var movieFolderRegex = regexp.MustCompile(`\(\d{4}\)`)

// movieKeys derives the identity keys of a movie file. The file name always
// contributes; a "Name (yyyy)" parent folder contributes as well since
// libraries often keep release names inside a clean folder.
func movieKeys(path string) []string {
	var keys []string

	if key, ok := normalize.LibraryMovieKey(stem(path)); ok {
		keys = append(keys, key)
	}

	parentDir := filepath.Base(filepath.Dir(path))
	if movieFolderRegex.MatchString(parentDir) {
		if key, ok := normalize.LibraryMovieKey(parentDir); ok && (len(keys) == 0 || keys[0] != key) {
			keys = append(keys, key)
		}
	}

	return keys
}

// stem returns the file name without its extension
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var videoExts = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true, ".flv": true,
	".webm": true, ".m4v": true, ".mpg": true, ".mpeg": true, ".m2ts": true, ".ts": true,
}

// isVideoFile checks if file extension is a video format
func isVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}
