// Package normalize turns free-text playlist titles and media file names into
// canonical identity keys.
//
// Every function here is pure: no I/O, no locale, no clock. The same input
// yields the same key in every run, on both the playlist side and the library
// side, which is what keeps pointer creation and cleanup from diverging.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	// IMDb cross-reference ids like "tt0111161", "(tt0111161)" or "{tt0111161}"
	imdbIDRegex = regexp.MustCompile(`(?i)[{(]?\btt\d+\b[})]?`)

	// First parenthesized year; everything after it is release noise
	yearJunkRegex = regexp.MustCompile(`\(\d{4}\)`)

	yearParenRegex = regexp.MustCompile(`\(\s*\d{4}\s*\)`)
	bracketTagRegex = regexp.MustCompile(`\[[^\]]*\]|\{[^}]*\}`)

	// Dots and underscores separate words in release-style file names
	separatorReplacer = strings.NewReplacer(".", " ", "_", " ")
)

// Sanitize trims the title, strips IMDb ids, drops every rune that is not a
// letter, digit, underscore, whitespace, parenthesis or hyphen, and collapses
// whitespace. Sanitize(Sanitize(x)) == Sanitize(x) for every x.
func Sanitize(title string) string {
	s := title
	for {
		next := sanitizePass(s)
		if next == s {
			return next
		}
		s = next
	}
}

// sanitizePass is one shrinking step of Sanitize. Removing an id can join two
// fragments into a new id, and dropping a rune can leave two composable runes
// side by side, so Sanitize repeats it until nothing changes.
func sanitizePass(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = imdbIDRegex.ReplaceAllString(s, "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case r == '(' || r == ')' || r == '-':
			b.WriteRune(r)
		}
	}

	return collapseSpaces(b.String())
}

// StripTrailingYearJunk truncates everything after the first "(yyyy)".
// "Movie (2010) 1080p BluRay-GRP" becomes "Movie (2010)".
func StripTrailingYearJunk(title string) string {
	loc := yearJunkRegex.FindStringIndex(title)
	if loc == nil {
		return title
	}
	return title[:loc[1]]
}

// KeyName is the case-folded, separator-free form of a name used inside
// identity keys. "Show.Name" and "show name" produce the same KeyName.
func KeyName(name string) string {
	name = separatorReplacer.Replace(name)
	return cases.Fold().String(Sanitize(name))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
