package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Nomadcxx/strmsync/internal/progress"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte("test content"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

func TestIsVideoFile(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"movie.mkv", true},
		{"movie.MP4", true},
		{"movie.m2ts", true},
		{"movie.srt", false},
		{"movie.strm", false},
		{"movie", false},
	}

	for _, tt := range tests {
		if got := isVideoFile(tt.path); got != tt.expected {
			t.Errorf("isVideoFile(%q) = %v, want %v", tt.path, got, tt.expected)
		}
	}
}

func TestScanMovies(t *testing.T) {
	tmpDir := t.TempDir()
	touch(t, filepath.Join(tmpDir, "Old Movie (2010)", "Old.Movie.2010.1080p.BluRay.mkv"))
	touch(t, filepath.Join(tmpDir, "Inception (2010)", "Inception (2010).mkv"))
	touch(t, filepath.Join(tmpDir, "Loose.Film.1999.720p.mp4"))
	touch(t, filepath.Join(tmpDir, "Old Movie (2010)", "Old Movie (2010).srt"))

	s := New(nil)
	keys, stats, err := s.Scan(context.Background(), Root{Category: "movies", Path: tmpDir, Mode: ModeMovies})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	for _, want := range []string{"old movie (2010)", "inception (2010)", "loose film (1999)"} {
		if !keys.Has(want) {
			t.Errorf("expected key %q, got %v", want, keys.Sorted())
		}
	}
	if stats.Files != 3 {
		t.Errorf("expected 3 video files, got %d", stats.Files)
	}
}

func TestScanEpisodes(t *testing.T) {
	tmpDir := t.TempDir()
	touch(t, filepath.Join(tmpDir, "Breaking Bad (2008)", "Season 01", "Breaking.Bad.S01E01.1080p.mkv"))
	touch(t, filepath.Join(tmpDir, "Breaking Bad (2008)", "Season 01", "S01E02.mkv"))
	touch(t, filepath.Join(tmpDir, "The Great Show", "the great show 1x05.mkv"))
	touch(t, filepath.Join(tmpDir, "The Great Show", "Behind the scenes.mkv"))

	s := New(nil)
	keys, stats, err := s.Scan(context.Background(), Root{Category: "tv", Path: tmpDir, Mode: ModeEpisodes})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	for _, want := range []string{"breaking bad s01 e01", "breaking bad s01 e02", "the great show s01 e05"} {
		if !keys.Has(want) {
			t.Errorf("expected key %q, got %v", want, keys.Sorted())
		}
	}
	if stats.Skipped != 1 {
		t.Errorf("expected 1 skipped file, got %d", stats.Skipped)
	}
	if keys.Len() != 3 {
		t.Errorf("expected 3 keys, got %v", keys.Sorted())
	}
}

func TestScanTVSegmentForcesEpisodes(t *testing.T) {
	tmpDir := t.TempDir()
	touch(t, filepath.Join(tmpDir, "TV Shows", "Some Show", "Season 1", "Some Show S01E03.mkv"))
	touch(t, filepath.Join(tmpDir, "TV Shows", "Some Show", "Extras.mkv"))
	touch(t, filepath.Join(tmpDir, "Films", "Some Film (2001).mkv"))

	s := New(nil)
	keys, _, err := s.Scan(context.Background(), Root{Category: "movies", Path: tmpDir, Mode: ModeMovies})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if !keys.Has("some show s01 e03") {
		t.Errorf("expected episode key, got %v", keys.Sorted())
	}
	if keys.Has("extras") {
		t.Error("files under a TV segment without a marker must not become movie keys")
	}
	if !keys.Has("some film (2001)") {
		t.Errorf("expected movie key, got %v", keys.Sorted())
	}
}

func TestScanMissingRoot(t *testing.T) {
	s := New(nil)
	keys, stats, err := s.Scan(context.Background(), Root{Category: "movies", Path: filepath.Join(t.TempDir(), "missing")})
	if err != nil {
		t.Fatalf("missing root should not fail: %v", err)
	}
	if keys.Len() != 0 {
		t.Errorf("expected empty set, got %v", keys.Sorted())
	}
	if stats.Missing != 1 {
		t.Errorf("expected missing root to be counted, got %d", stats.Missing)
	}
}

func TestScanFollowsSymlinksWithoutLooping(t *testing.T) {
	tmpDir := t.TempDir()
	elsewhere := t.TempDir()
	touch(t, filepath.Join(elsewhere, "Linked Movie (2005)", "Linked Movie (2005).mkv"))
	touch(t, filepath.Join(tmpDir, "Local (2001)", "Local (2001).mkv"))

	if err := os.Symlink(elsewhere, filepath.Join(tmpDir, "linked")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	// Cycle back to the root
	if err := os.Symlink(tmpDir, filepath.Join(tmpDir, "Local (2001)", "loop")); err != nil {
		t.Fatal(err)
	}

	s := New(nil)
	keys, _, err := s.Scan(context.Background(), Root{Category: "movies", Path: tmpDir, Mode: ModeMovies})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !keys.Has("linked movie (2005)") || !keys.Has("local (2001)") {
		t.Errorf("unexpected keys: %v", keys.Sorted())
	}
}

func TestScanCancelled(t *testing.T) {
	tmpDir := t.TempDir()
	touch(t, filepath.Join(tmpDir, "a", "Movie (2000).mkv"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(nil)
	if _, _, err := s.Scan(ctx, Root{Category: "movies", Path: tmpDir}); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestScanAll(t *testing.T) {
	movies := t.TempDir()
	tv := t.TempDir()
	touch(t, filepath.Join(movies, "Old Movie (2010)", "Old Movie (2010).mkv"))
	touch(t, filepath.Join(tv, "Some Show", "Season 1", "Some Show S01E01.mkv"))

	roots := []Root{
		{Category: "movies", Path: movies, Mode: ModeMovies},
		{Category: "tv", Path: tv, Mode: ModeEpisodes},
		{Category: "standup", Path: filepath.Join(movies, "missing"), Mode: ModeMovies},
	}

	for _, workers := range []int{1, 2, 8} {
		ch := make(chan progress.Event, 16)
		s := New(nil)
		keys, stats, err := s.ScanAll(context.Background(), roots, workers, progress.NewReporter(ch))
		if err != nil {
			t.Fatalf("ScanAll(workers=%d) failed: %v", workers, err)
		}
		if keys.Len() != 2 || !keys.Has("old movie (2010)") || !keys.Has("some show s01 e01") {
			t.Errorf("workers=%d: unexpected keys %v", workers, keys.Sorted())
		}
		if stats.Roots != 3 || stats.Missing != 1 || stats.Keys != 2 {
			t.Errorf("workers=%d: unexpected stats %+v", workers, stats)
		}
	}
}

func TestHasTVSegment(t *testing.T) {
	markers := append([]string{}, defaultTVMarkers...)
	tests := []struct {
		path     string
		expected bool
	}{
		{"/media/TV Shows/Show/Season 1/x.mkv", true},
		{"/media/tv/Show/x.mkv", true},
		{"/media/Movies/Show/x.mkv", false},
		{"/media/tvrips/x.mkv", false},
	}

	for _, tt := range tests {
		if got := hasTVSegment(tt.path, markers); got != tt.expected {
			t.Errorf("hasTVSegment(%q) = %v, want %v", tt.path, got, tt.expected)
		}
	}
}

func TestKeySet(t *testing.T) {
	a := NewKeySet("b", "a", "")
	if a.Len() != 2 {
		t.Errorf("expected empty key to be ignored, got %v", a.Sorted())
	}

	b := NewKeySet("c", "a")
	a.Union(b)

	got := a.Sorted()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Sorted() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sorted() = %v, want %v", got, want)
		}
	}

	var nilSet KeySet
	if nilSet.Has("a") {
		t.Error("nil set should have no keys")
	}
}
