package test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/daemon"
	"github.com/Nomadcxx/strmsync/internal/genre"
	"github.com/Nomadcxx/strmsync/internal/reporter"
)

const playlistV1 = `#EXTM3U
#EXTINF:-1 tvg-name="Heat" group-title="VOD | Movies",Heat (1995)
http://example.com/vod/heat.mkv
#EXTINF:-1 group-title="VOD | Movies",Old Movie (1999)
http://example.com/vod/old.mkv
#EXTINF:-1 group-title="Series | Drama",The Great Show S01E05
http://example.com/series/great-105.mkv
#EXTINF:-1 group-title="Series | Drama",The Great Show S01E06
http://example.com/series/great-106.mkv
`

const playlistV2 = `#EXTM3U
#EXTINF:-1 group-title="VOD | Movies",Heat (1995)
http://example.com/vod/heat.mkv
#EXTINF:-1 group-title="Series | Drama",The Great Show S01E05
http://example.com/series/great-105-v2.mkv
`

type workspace struct {
	root string
	cfg  *config.Config
}

func newWorkspace(t *testing.T, playlist string) workspace {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.StateDir = filepath.Join(root, "state")
	cfg.Output.Dir = filepath.Join(root, "strm")
	cfg.Playlist.Source = filepath.Join(root, "playlist.m3u")
	cfg.Libraries.Movies.Paths = []string{filepath.Join(root, "media", "movies")}
	cfg.Libraries.TV.Paths = []string{filepath.Join(root, "media", "tv")}

	w := workspace{root: root, cfg: cfg}
	w.writePlaylist(t, playlist)
	createTestFile(t, filepath.Join(root, "media", "tv", "The Great Show", "Season 1", "The Great Show S01E06.mkv"))
	return w
}

func (w workspace) writePlaylist(t *testing.T, content string) {
	t.Helper()
	if err := os.WriteFile(w.cfg.Playlist.Source, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func (w workspace) run(t *testing.T) daemon.Result {
	t.Helper()
	d := daemon.New(w.cfg, nil, daemon.WithLookup(genre.Disabled()))
	res, err := d.RunSync(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	return res
}

func (w workspace) pointers(t *testing.T) []string {
	t.Helper()
	var found []string
	err := filepath.WalkDir(w.cfg.Output.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".strm") {
			rel, _ := filepath.Rel(w.cfg.Output.Dir, path)
			found = append(found, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(found)
	return found
}

// TestFullSyncWorkflow runs the pipeline across playlist changes and a
// library that grows between runs
func TestFullSyncWorkflow(t *testing.T) {
	w := newWorkspace(t, playlistV1)

	res := w.run(t)
	want := []string{
		"Movies/Heat (1995)/Heat (1995).strm",
		"Movies/Old Movie (1999)/Old Movie (1999).strm",
		"TV Shows/the great show/Season 1/the great show S01E05.strm",
	}
	if got := w.pointers(t); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("pointer tree after first run:\n%s", strings.Join(got, "\n"))
	}
	if res.Report.Reconcile.Created != 3 || res.Report.Reconcile.SkippedInLibrary != 1 {
		t.Errorf("unexpected reconcile counts: %+v", res.Report.Reconcile)
	}

	// The library picks up Heat and the playlist drops Old Movie
	createTestFile(t, filepath.Join(w.root, "media", "movies", "Heat (1995)", "Heat.1995.1080p.BluRay.x264.mkv"))
	w.writePlaylist(t, playlistV2)

	res = w.run(t)
	want = []string{
		"TV Shows/the great show/Season 1/the great show S01E05.strm",
	}
	if got := w.pointers(t); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("pointer tree after second run:\n%s", strings.Join(got, "\n"))
	}
	cl := res.Report.Cleanup
	if cl.StaleRemoved+cl.SupersededRemoved != 2 {
		t.Errorf("expected two removals, got %+v", cl)
	}
	if _, err := os.Stat(filepath.Join(w.cfg.MoviesDir(), "Old Movie (1999)")); !os.IsNotExist(err) {
		t.Error("empty movie folder was not pruned")
	}

	// The changed URL of S01E05 is rewritten in place
	data, err := os.ReadFile(filepath.Join(w.cfg.TVDir(), "the great show", "Season 1", "the great show S01E05.strm"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "http://example.com/series/great-105-v2.mkv" {
		t.Errorf("pointer not updated: %q", data)
	}
}

// TestReportGeneration checks the JSON and text reports a run leaves behind
func TestReportGeneration(t *testing.T) {
	w := newWorkspace(t, playlistV1)
	res := w.run(t)

	report := loadReport(t, res.ReportPath)
	if report.RunID == "" || report.RunID != res.Report.RunID {
		t.Errorf("report run id = %q, want %q", report.RunID, res.Report.RunID)
	}
	if report.Playlist.Raw != 4 {
		t.Errorf("expected 4 parsed entries, got %d", report.Playlist.Raw)
	}
	if report.Scan.Roots != 2 || report.Scan.Files != 1 {
		t.Errorf("unexpected scan summary: %+v", report.Scan)
	}

	text, err := os.ReadFile(res.TextPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(text), "STRMSYNC RUN REPORT") {
		t.Error("text report missing header")
	}

	latest, err := reporter.Latest(w.cfg.ReportsDir())
	if err != nil || latest != res.ReportPath {
		t.Errorf("Latest = %q (%v), want %q", latest, err, res.ReportPath)
	}
}

// TestContextCancellation checks a cancelled run touches nothing but still
// reports
func TestContextCancellation(t *testing.T) {
	w := newWorkspace(t, playlistV1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := daemon.New(w.cfg, nil, daemon.WithLookup(genre.Disabled()))
	res, err := d.RunSync(ctx, nil)
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
	if got := w.pointers(t); len(got) != 0 {
		t.Errorf("cancelled run wrote pointers: %v", got)
	}
	if !res.Report.Interrupted {
		t.Error("report should be marked interrupted")
	}
}

func createTestFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("fake video content"), 0644); err != nil {
		t.Fatal(err)
	}
}

func loadReport(t *testing.T, path string) reporter.Report {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	var report reporter.Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("Failed to parse report: %v", err)
	}
	return report
}
