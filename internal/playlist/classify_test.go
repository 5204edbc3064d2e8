package playlist

import (
	"testing"

	"github.com/Nomadcxx/strmsync/internal/config"
)

func testClassifier() *Classifier {
	return NewClassifier(config.KeywordConfig{
		TV:          []string{"TV", "series"},
		Documentary: []string{"docu"},
		Movie:       []string{"movie"},
	})
}

func TestKindOf(t *testing.T) {
	c := testClassifier()
	tests := []struct {
		hint     string
		expected Kind
	}{
		{"US | TV SHOWS", Show},
		{"Netflix Series", Show},
		{"Documentaries", Documentary},
		{"TV Documentaries", Show}, // TV wins over documentary
		{"Movies", Movie},
		{"Something Else", Movie},
		{"", Movie},
	}

	for _, tt := range tests {
		if got := c.KindOf(tt.hint); got != tt.expected {
			t.Errorf("KindOf(%q) = %v, want %v", tt.hint, got, tt.expected)
		}
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		raw      string
		kind     Kind
		expected string
	}{
		{"The Great Show (2019) S1E5 1080p WEB-DL", Show, "the great show s1e5"},
		{"Show Name S01E02", Show, "show name s01e02"},
		{"Show Without Marker (2019) extra", Show, "Show Without Marker (2019)"},
		{"Nova: Inside the Volcano (2021)", Movie, "Nova Inside the Volcano (2021)"},
		{"Old Movie (2010) 1080p BluRay-GRP", Movie, "Old Movie (2010)"},
		{"Movie (tt0111161) (1994)", Documentary, "Movie (1994)"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := Title(tt.raw, tt.kind); got != tt.expected {
				t.Errorf("Title(%q, %v) = %q, want %q", tt.raw, tt.kind, got, tt.expected)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	c := testClassifier()
	raw := []RawEntry{
		{Title: "The Great Show (2019) S1E5 1080p WEB-DL", URL: "http://x/1", CategoryHint: "US | TV SHOWS"},
		{Title: "Old Movie (2010)", URL: "http://x/2", CategoryHint: "Movies"},
		{Title: "Old Movie (2010) 720p", URL: "http://x/3", CategoryHint: "Movies"},
		{Title: "No Url (2000)", URL: " ", CategoryHint: "Movies"},
		{Title: "!!!", URL: "http://x/4", CategoryHint: "Movies"},
		{Title: "Planet (2006)", URL: "http://x/5", CategoryHint: "Docu"},
	}

	entries, stats := c.Classify(raw)

	expected := []ClassifiedEntry{
		{Title: "the great show s1e5", URL: "http://x/1", Kind: Show},
		{Title: "Old Movie (2010)", URL: "http://x/2", Kind: Movie},
		{Title: "Planet (2006)", URL: "http://x/5", Kind: Documentary},
	}

	if len(entries) != len(expected) {
		t.Fatalf("expected %d entries, got %d: %+v", len(expected), len(entries), entries)
	}
	for i, want := range expected {
		if entries[i] != want {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want)
		}
	}

	if stats.Duplicates != 1 || stats.NoURL != 1 || stats.NoTitle != 1 || stats.Raw != 6 || stats.Classified != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestClassifyEmptyURLDoesNotClaimTitle(t *testing.T) {
	c := testClassifier()
	entries, _ := c.Classify([]RawEntry{
		{Title: "Film (2001)", URL: "", CategoryHint: "Movies"},
		{Title: "Film (2001)", URL: "http://x/1", CategoryHint: "Movies"},
	})
	if len(entries) != 1 || entries[0].URL != "http://x/1" {
		t.Errorf("expected the entry with a URL to survive, got %+v", entries)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{Movie, Show, Documentary} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("podcast"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
