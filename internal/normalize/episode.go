package normalize

import (
	"regexp"
	"strings"
)

// Match is the raw result of a single matcher strategy. Start and End are
// byte offsets of the episode marker within the matched text.
type Match struct {
	Season  string
	Episode string
	Start   int
	End     int
}

// Matcher recognises one episode marker notation.
type Matcher interface {
	Name() string
	TryMatch(text string) (Match, bool)
}

type regexMatcher struct {
	name string
	re   *regexp.Regexp
}

func (m regexMatcher) Name() string { return m.name }

func (m regexMatcher) TryMatch(text string) (Match, bool) {
	loc := m.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false
	}
	return Match{
		Season:  text[loc[2]:loc[3]],
		Episode: text[loc[4]:loc[5]],
		Start:   loc[0],
		End:     loc[1],
	}, true
}

// SeasonEpisodeMatcher recognises S01E02, S1 E5, s01.e02 and
// "Season 1 Episode 02". Multi-episode names (S01E02E03) match the first
// episode.
func SeasonEpisodeMatcher() Matcher {
	return regexMatcher{
		name: "season-episode",
		re:   regexp.MustCompile(`(?i)\bs(?:eason)?[\s._-]*(\d{1,4})[\s._-]*e(?:p(?:isode)?)?[\s._-]*(\d{1,4})`),
	}
}

// CrossMatcher recognises the 1x02 notation.
func CrossMatcher() Matcher {
	return regexMatcher{
		name: "cross",
		re:   regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`),
	}
}

// DefaultMatchers is the order used by ExtractEpisode.
var DefaultMatchers = []Matcher{
	SeasonEpisodeMatcher(),
	CrossMatcher(),
}

// Episode is a parsed episode marker plus the text around it.
type Episode struct {
	Season  string // raw digits as written
	Episode string // raw digits as written
	Before  string
	After   string
	Matcher string
}

// Residual is the input with the episode marker removed.
func (e Episode) Residual() string {
	return collapseSpaces(e.Before + " " + e.After)
}

// ExtractEpisode runs DefaultMatchers in order and returns the first hit.
func ExtractEpisode(text string) (Episode, bool) {
	return ExtractEpisodeWith(DefaultMatchers, text)
}

// ExtractEpisodeWith runs the given matchers in order and returns the first hit.
func ExtractEpisodeWith(matchers []Matcher, text string) (Episode, bool) {
	for _, m := range matchers {
		match, ok := m.TryMatch(text)
		if !ok {
			continue
		}
		return Episode{
			Season:  match.Season,
			Episode: match.Episode,
			Before:  text[:match.Start],
			After:   text[match.End:],
			Matcher: m.Name(),
		}, true
	}
	return Episode{}, false
}

// ShowName derives the show name from the text preceding the marker. When
// nothing precedes it, the text after the marker up to a " - " separator is
// used instead. Returns "" when neither side yields a name.
func ShowName(ep Episode) string {
	if name := cleanShowText(ep.Before); name != "" {
		return name
	}
	after := ep.After
	if i := strings.Index(after, " - "); i >= 0 {
		after = after[:i]
	}
	return cleanShowText(after)
}

// FolderShowName cleans a show folder name like "The Show (2019) [tvdbid-1]".
func FolderShowName(dir string) string {
	return cleanShowText(dir)
}

func cleanShowText(s string) string {
	s = separatorReplacer.Replace(s)
	s = yearParenRegex.ReplaceAllString(s, " ")
	s = bracketTagRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, " -._")
	return Sanitize(s)
}
