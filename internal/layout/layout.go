// Package layout maps classified titles to their place in the output tree and
// back.
package layout

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/normalize"
	"github.com/Nomadcxx/strmsync/internal/playlist"
)

// PointerExt is the extension of generated pointer files
const PointerExt = ".strm"

// Layout holds the three output roots
type Layout struct {
	Movies        string
	TV            string
	Documentaries string
}

// FromConfig returns the layout configured under [output]
func FromConfig(cfg *config.Config) Layout {
	return Layout{
		Movies:        cfg.MoviesDir(),
		TV:            cfg.TVDir(),
		Documentaries: cfg.DocumentariesDir(),
	}
}

// Roots returns the output roots in a fixed order
func (l Layout) Roots() []string {
	return []string{l.Movies, l.TV, l.Documentaries}
}

// Root returns the output root of kind
func (l Layout) Root(kind playlist.Kind) string {
	switch kind {
	case playlist.Show:
		return l.TV
	case playlist.Documentary:
		return l.Documentaries
	default:
		return l.Movies
	}
}

// Target returns the folder and pointer file path for a classified title.
//
//	Movies/<name> (<year>)/<name> (<year>).strm
//	Documentaries/<name> (<year>)/<name> (<year>).strm
//	TV Shows/<show>/Season <n>/<show> S<season>E<episode>.strm
//
// Show titles without an episode marker have no target.
func (l Layout) Target(title string, kind playlist.Kind) (dir, file string, err error) {
	if kind == playlist.Show {
		ep, ok := normalize.ExtractEpisode(title)
		if !ok {
			return "", "", fmt.Errorf("no episode marker in %q", title)
		}
		show := normalize.ShowName(ep)
		if show == "" {
			return "", "", fmt.Errorf("no show name in %q", title)
		}
		season, err := strconv.Atoi(ep.Season)
		if err != nil {
			return "", "", fmt.Errorf("bad season %q in %q", ep.Season, title)
		}
		dir = filepath.Join(l.TV, show, fmt.Sprintf("Season %d", season))
		base := fmt.Sprintf("%s S%sE%s", show, ep.Season, ep.Episode)
		return dir, filepath.Join(dir, base+PointerExt), nil
	}

	name, year := normalize.ExtractMovieYear(title)
	if name == "" {
		return "", "", fmt.Errorf("no name in %q", title)
	}
	base := name
	if year != "" {
		base = fmt.Sprintf("%s (%s)", name, year)
	}
	dir = filepath.Join(l.Root(kind), base)
	return dir, filepath.Join(dir, base+PointerExt), nil
}

// KindOf infers the kind of a pointer from the root it lives under. Paths
// outside every root are movies.
func (l Layout) KindOf(path string) playlist.Kind {
	switch {
	case within(path, l.TV):
		return playlist.Show
	case within(path, l.Documentaries):
		return playlist.Documentary
	default:
		return playlist.Movie
	}
}

// PointerKey rederives the identity key of a pointer file from its name. The
// show folder is used when the name carries only the episode marker.
func (l Layout) PointerKey(path string) (string, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if l.KindOf(path) == playlist.Show {
		return normalize.LibraryEpisodeKey(stem, filepath.Dir(filepath.Dir(path)))
	}
	return normalize.LibraryMovieKey(stem)
}

// IsPointer reports whether path has the pointer extension
func IsPointer(path string) bool {
	return strings.EqualFold(filepath.Ext(path), PointerExt)
}

func within(path, root string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
