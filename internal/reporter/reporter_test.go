package reporter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Nomadcxx/strmsync/internal/cleaner"
	"github.com/Nomadcxx/strmsync/internal/playlist"
	"github.com/Nomadcxx/strmsync/internal/reconcile"
)

func sampleReport(ts time.Time) Report {
	return Report{
		RunID:          "run-1",
		Timestamp:      ts,
		DurationMillis: 1500,
		PlaylistSource: "http://example.com/list.m3u",
		OutputDir:      "/media/strm",
		LibraryPaths:   []string{"/media/movies", "/media/tv"},
		Scan:           ScanSummary{Roots: 2, Files: 120, ScanKeys: 100, CachedKeys: 110},
		Playlist:       playlist.Stats{Raw: 50, Classified: 45, NoURL: 2, Duplicates: 3},
		Reconcile: reconcile.Result{
			Entries:          45,
			Created:          10,
			SkippedUnchanged: 30,
			SkippedInLibrary: 5,
		},
		Cleanup: cleaner.CleanResult{
			StaleRemoved:  4,
			FoldersPruned: 2,
			Errors:        []error{errors.New("failed to delete /media/strm/x")},
		},
	}
}

func TestGenerateAndLoad(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	report := sampleReport(ts)
	jsonPath, txtPath, err := Generate(&report, dir)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if filepath.Base(jsonPath) != "20260304_050607.json" {
		t.Errorf("unexpected json report name %s", jsonPath)
	}
	if filepath.Base(txtPath) != "20260304_050607.txt" {
		t.Errorf("unexpected text report name %s", txtPath)
	}

	loaded, err := Load(jsonPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.RunID != "run-1" || loaded.Reconcile.Created != 10 || loaded.Cleanup.StaleRemoved != 4 {
		t.Errorf("unexpected loaded report: %+v", loaded)
	}
	if len(loaded.Errors) != 1 || len(report.Errors) != 1 {
		t.Errorf("expected cleanup error to be carried into the report, got %v", loaded.Errors)
	}
	if loaded.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v", loaded.Duration())
	}

	text, err := os.ReadFile(txtPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"STRMSYNC RUN REPORT", "Pointers created", "Deleted: removed from playlist", "ERRORS"} {
		if !strings.Contains(string(text), want) {
			t.Errorf("text report missing %q", want)
		}
	}
}

func TestBuildTextFlags(t *testing.T) {
	report := sampleReport(time.Now())
	report.DryRun = true
	report.Interrupted = true

	text := BuildText(report)
	if !strings.Contains(text, "DRY RUN") {
		t.Error("expected dry run marker")
	}
	if !strings.Contains(text, "INTERRUPTED") {
		t.Error("expected interrupted marker")
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleReport(time.Now()))
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r[0]] = r[1]
	}

	tests := map[string]string{
		"Pointers created":                        "10",
		"Skipped: unchanged":                      "30",
		"Library keys (this run / cached)":        "100 / 110",
		"Dropped (no URL / no title / duplicate)": "2 / 0 / 3",
		"Folders pruned":                          "2",
	}
	for label, want := range tests {
		if got := values[label]; got != want {
			t.Errorf("row %q = %q, want %q", label, got, want)
		}
	}
}

func TestSummaryTable(t *testing.T) {
	out := SummaryTable(sampleReport(time.Now()))
	if !strings.Contains(out, "Metric") || !strings.Contains(out, "Pointers created") {
		t.Errorf("unexpected table:\n%s", out)
	}
}

func TestListAndLatest(t *testing.T) {
	dir := t.TempDir()

	if paths, err := List(filepath.Join(dir, "missing")); err != nil || len(paths) != 0 {
		t.Fatalf("List(missing) = %v, %v", paths, err)
	}
	if _, err := Latest(dir); err == nil {
		t.Error("expected error for empty report directory")
	}

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	for _, ts := range []time.Time{older, newer} {
		report := sampleReport(ts)
		if _, _, err := Generate(&report, dir); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 json reports, got %v", paths)
	}

	latest, err := Latest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(latest) != newer.Format(timestampLayout)+".json" {
		t.Errorf("Latest() = %s", latest)
	}
}
