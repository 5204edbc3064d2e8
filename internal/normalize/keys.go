package normalize

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "Name (2010)" or "Name [2010]" at the end of a title
	movieYearRegex = regexp.MustCompile(`^(.*?)[\s(\[](\d{4})[)\]]$`)

	// Release-style year token: Movie.Name.2010.1080p
	releaseYearRegex = regexp.MustCompile(`[\s._\[(]((?:19|20)\d{2})(?:[\s._\])]|$)`)
)

// ExtractMovieYear derives name and year from a movie title or file stem.
// Both playlist titles and library files go through it, so a title and the
// file it names always produce the same key. Everything after the first
// "(yyyy)" is dropped, a trailing "(yyyy)" or "[yyyy]" wins over a
// release-style year, and without either the whole title is the name.
// "Blade.Runner.2049.2017.1080p" is ("Blade Runner 2049", "2017").
func ExtractMovieYear(title string) (name, year string) {
	trimmed := strings.TrimSpace(StripTrailingYearJunk(title))
	if m := movieYearRegex.FindStringSubmatch(trimmed); m != nil {
		return Sanitize(m[1]), m[2]
	}

	clean := Sanitize(separatorReplacer.Replace(trimmed))
	if start, yStart, yEnd, ok := lastReleaseYear(clean); ok && start > 0 {
		return Sanitize(clean[:start]), clean[yStart:yEnd]
	}
	return clean, ""
}

// MovieKey builds the identity key of a movie or documentary.
func MovieKey(name, year string) string {
	key := KeyName(name)
	if year != "" {
		key += " (" + year + ")"
	}
	return key
}

// EpisodeKey builds the identity key of an episode. Season and episode are
// zero-padded to two digits so "S1E5" and "S01E05" agree.
func EpisodeKey(show, season, episode string) string {
	return fmt.Sprintf("%s s%s e%s", KeyName(show), padNumber(season), padNumber(episode))
}

func padNumber(digits string) string {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return digits
	}
	return fmt.Sprintf("%02d", n)
}

// TitleKey derives the identity key of a classified playlist title. ok is
// false for show titles without an episode marker.
func TitleKey(title string, episodic bool) (key string, ok bool) {
	if !episodic {
		name, year := ExtractMovieYear(title)
		if name == "" {
			return "", false
		}
		return MovieKey(name, year), true
	}

	ep, found := ExtractEpisode(title)
	if !found {
		return "", false
	}
	show := ShowName(ep)
	if show == "" {
		return "", false
	}
	return EpisodeKey(show, ep.Season, ep.Episode), true
}

// ParseEpisodeFilename derives show, season and episode from an episode file
// stem. showDir (usually the folder two levels above the file) is used when
// the stem carries nothing but the marker.
func ParseEpisodeFilename(stem, showDir string) (show, season, episode string, ok bool) {
	ep, found := ExtractEpisode(stem)
	if !found {
		return "", "", "", false
	}

	show = ShowName(ep)
	if show == "" && showDir != "" {
		show = FolderShowName(filepath.Base(showDir))
	}
	if show == "" {
		return "", "", "", false
	}
	return show, ep.Season, ep.Episode, true
}

// LibraryMovieKey derives the key of a movie file stem. It is TitleKey for a
// non-episodic title.
func LibraryMovieKey(stem string) (string, bool) {
	return TitleKey(stem, false)
}

// LibraryEpisodeKey is ParseEpisodeFilename followed by EpisodeKey.
func LibraryEpisodeKey(stem, showDir string) (string, bool) {
	show, season, episode, ok := ParseEpisodeFilename(stem, showDir)
	if !ok {
		return "", false
	}
	return EpisodeKey(show, season, episode), true
}

// lastReleaseYear finds the last release-style year token. Candidates may share
// a separator ("2049.2017"), so the search resumes right after each year.
// "Blade.Runner.2049.2017.1080p" is from 2017.
func lastReleaseYear(s string) (start, yStart, yEnd int, ok bool) {
	offset := 0
	for offset < len(s) {
		m := releaseYearRegex.FindStringSubmatchIndex(s[offset:])
		if m == nil {
			break
		}
		start, yStart, yEnd, ok = offset+m[0], offset+m[2], offset+m[3], true
		offset += m[3]
	}
	return start, yStart, yEnd, ok
}
