package playlist

import (
	"fmt"
	"strings"

	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/normalize"
)

// Kind is the placement category of an entry
type Kind int

const (
	Movie Kind = iota
	Show
	Documentary
)

func (k Kind) String() string {
	switch k {
	case Show:
		return "show"
	case Documentary:
		return "documentary"
	default:
		return "movie"
	}
}

// ParseKind is the inverse of Kind.String
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie":
		return Movie, nil
	case "show", "tvshow", "tv":
		return Show, nil
	case "documentary":
		return Documentary, nil
	default:
		return Movie, fmt.Errorf("unknown kind %q", s)
	}
}

// ClassifiedEntry is a playlist item ready for reconciliation
type ClassifiedEntry struct {
	Title string // sanitized, unique within a run
	URL   string
	Kind  Kind
}

// Stats counts what Classify dropped
type Stats struct {
	Raw        int `json:"raw"`
	Classified int `json:"classified"`
	NoURL      int `json:"no_url"`
	NoTitle    int `json:"no_title"`
	Duplicates int `json:"duplicates"`
}

// Classifier assigns kinds from group labels
type Classifier struct {
	tv          []string
	documentary []string
	movie       []string
}

// NewClassifier builds a classifier from keyword lists. Matching is a
// case-insensitive substring test.
func NewClassifier(k config.KeywordConfig) *Classifier {
	return &Classifier{
		tv:          lowerAll(k.TV),
		documentary: lowerAll(k.Documentary),
		movie:       lowerAll(k.Movie),
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// KindOf checks TV keywords, then documentary, then movie; default Movie.
func (c *Classifier) KindOf(hint string) Kind {
	group := strings.ToLower(hint)
	switch {
	case containsAny(group, c.tv):
		return Show
	case containsAny(group, c.documentary):
		return Documentary
	default:
		return Movie
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Classify types, titles and deduplicates raw entries. Entries with an empty
// URL or title are dropped; later entries with an already seen title are
// dropped even when their URL differs.
func (c *Classifier) Classify(raw []RawEntry) ([]ClassifiedEntry, Stats) {
	stats := Stats{Raw: len(raw)}
	seen := make(map[string]bool, len(raw))
	out := make([]ClassifiedEntry, 0, len(raw))

	for _, r := range raw {
		url := strings.TrimSpace(r.URL)
		if url == "" {
			stats.NoURL++
			continue
		}

		kind := c.KindOf(r.CategoryHint)
		title := Title(r.Title, kind)
		if title == "" {
			stats.NoTitle++
			continue
		}

		if seen[title] {
			stats.Duplicates++
			continue
		}
		seen[title] = true

		out = append(out, ClassifiedEntry{Title: title, URL: url, Kind: kind})
	}

	stats.Classified = len(out)
	return out, stats
}

// Title computes the classified title of a raw display title. Show titles
// keep only the show name and the episode marker, lower-cased:
// "The Great Show (2019) S1E5 1080p WEB-DL" becomes "the great show s1e5".
// Everything else is StripTrailingYearJunk followed by Sanitize.
func Title(raw string, kind Kind) string {
	if kind == Show {
		if ep, ok := normalize.ExtractEpisode(raw); ok {
			if show := normalize.ShowName(ep); show != "" {
				return normalize.KeyName(show) + " s" + ep.Season + "e" + ep.Episode
			}
		}
	}
	return normalize.Sanitize(normalize.StripTrailingYearJunk(raw))
}
