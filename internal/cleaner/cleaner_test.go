package cleaner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/Nomadcxx/strmsync/internal/cache"
	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/layout"
	"github.com/Nomadcxx/strmsync/internal/playlist"
	"github.com/Nomadcxx/strmsync/internal/reconcile"
	"github.com/Nomadcxx/strmsync/internal/scanner"
)

func setup(t *testing.T) (*config.Config, layout.Layout, *cache.PlaylistCache) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Output.Dir = t.TempDir()
	cfg.StateDir = t.TempDir()
	cfg.Playlist.Source = "/tmp/playlist.m3u"

	l := layout.FromConfig(cfg)
	for _, root := range l.Roots() {
		if err := os.MkdirAll(root, 0755); err != nil {
			t.Fatal(err)
		}
	}
	return cfg, l, cache.NewPlaylistCache(cfg.PlaylistCachePath(), nil)
}

// writePointer creates the pointer for title and records it when pc is set
func writePointer(t *testing.T, l layout.Layout, pc *cache.PlaylistCache, title string, kind playlist.Kind) string {
	t.Helper()
	dir, path, err := l.Target(title, kind)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	url := "http://x/" + strings.ReplaceAll(title, " ", "_")
	if err := os.WriteFile(path, []byte(url+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if pc != nil {
		pc.Set(title, cache.PointerRecord(url, path, kind))
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func pointersUnder(t *testing.T, root string) []string {
	t.Helper()
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && layout.IsPointer(path) {
			rel, _ := filepath.Rel(root, path)
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

func TestIsProtectedPath(t *testing.T) {
	protected := []string{"/usr", "/etc", "/home"}

	tests := []struct {
		path     string
		expected bool
	}{
		{"/usr/bin/something", true},
		{"/etc/config", true},
		{"/home/user/file", true},
		{"/home", true},
		{"/usrlocal/file", false},
		{"/mnt/storage/file", false},
		{"/tmp/file", false},
	}

	for _, tt := range tests {
		result := isProtectedPath(tt.path, protected)
		if result != tt.expected {
			t.Errorf("isProtectedPath(%q) = %v, want %v", tt.path, result, tt.expected)
		}
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/media/out/Movies/Heat/Heat.strm", false},
		{"relative/path.strm", true},
		{"/media/out/../../etc", false}, // cleaned to /etc before the check
		{"/media/out/..hidden/file.strm", false},
	}
	for _, tt := range tests {
		err := validatePath(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("validatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
	}
}

func TestRemoveSupersededOldMovie(t *testing.T) {
	cfg, l, pc := setup(t)
	oldPath := writePointer(t, l, pc, "Old Movie (2010)", playlist.Movie)
	siblingPath := writePointer(t, l, pc, "Other Movie (2011)", playlist.Movie)

	c := New(FromConfig(cfg), l, nil)
	if err := c.RemoveSuperseded(context.Background(), pc, scanner.NewKeySet("old movie (2010)")); err != nil {
		t.Fatalf("RemoveSuperseded returned error: %v", err)
	}

	if exists(oldPath) {
		t.Error("superseded pointer still exists")
	}
	if !exists(siblingPath) {
		t.Error("sibling pointer was removed")
	}
	if _, ok := pc.Get("Old Movie (2010)"); ok {
		t.Error("superseded cache record was kept")
	}
	if _, ok := pc.Get("Other Movie (2011)"); !ok {
		t.Error("sibling cache record was dropped")
	}
	if res := c.Finish(); res.SupersededRemoved != 1 {
		t.Errorf("expected 1 superseded removal, got %+v", res)
	}
}

func TestPruneEmptySeasonAndShow(t *testing.T) {
	cfg, l, pc := setup(t)
	path := writePointer(t, l, pc, "Some Show s1e1", playlist.Show)
	keep := writePointer(t, l, pc, "Kept Show s2e1", playlist.Show)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	c := New(FromConfig(cfg), l, nil)
	if err := c.PruneEmpty(context.Background()); err != nil {
		t.Fatalf("PruneEmpty returned error: %v", err)
	}

	showDir := filepath.Join(l.TV, "Some Show")
	if exists(filepath.Join(showDir, "Season 1")) || exists(showDir) {
		t.Error("empty season and show folders should be pruned")
	}
	if !exists(keep) {
		t.Error("pointer in another show was removed")
	}
	for _, root := range l.Roots() {
		if !exists(root) {
			t.Errorf("root %s must never be pruned", root)
		}
	}
	if res := c.Finish(); res.FoldersPruned != 2 {
		t.Errorf("expected 2 folders pruned, got %d", res.FoldersPruned)
	}
}

func TestPruneKeepsShowWithOtherSeason(t *testing.T) {
	cfg, l, pc := setup(t)
	s1 := writePointer(t, l, pc, "Some Show s1e1", playlist.Show)
	s2 := writePointer(t, l, pc, "Some Show s2e1", playlist.Show)
	os.Remove(s1)

	// Folders without pointers go even when they hold other files
	art := filepath.Join(l.Movies, "Gone (2000)")
	os.MkdirAll(art, 0755)
	os.WriteFile(filepath.Join(art, "poster.jpg"), []byte("x"), 0644)

	c := New(FromConfig(cfg), l, nil)
	if err := c.PruneEmpty(context.Background()); err != nil {
		t.Fatal(err)
	}

	if exists(filepath.Dir(s1)) {
		t.Error("empty Season 1 should be pruned")
	}
	if !exists(s2) {
		t.Error("Season 2 pointer must stay")
	}
	if exists(art) {
		t.Error("folder without pointers should be pruned")
	}
}

func TestRemoveStale(t *testing.T) {
	cfg, l, pc := setup(t)
	moviePath := writePointer(t, l, pc, "Heat (1995)", playlist.Movie)
	episodePath := writePointer(t, l, pc, "the great show s1e1", playlist.Show)
	keptPath := writePointer(t, l, pc, "the great show s1e2", playlist.Show)

	current := scanner.NewKeySet("the great show s01 e02")
	c := New(FromConfig(cfg), l, nil)
	if err := c.RemoveStale(context.Background(), pc, current); err != nil {
		t.Fatalf("RemoveStale returned error: %v", err)
	}

	if exists(filepath.Dir(moviePath)) {
		t.Error("stale movie folder should be removed with its pointer")
	}
	if exists(episodePath) {
		t.Error("stale episode pointer should be removed")
	}
	if !exists(filepath.Dir(episodePath)) {
		t.Error("shared season folder is left for pruning")
	}
	if !exists(keptPath) {
		t.Error("current episode was removed")
	}
	if pc.Len() != 1 {
		t.Errorf("expected 1 cache record left, got %d", pc.Len())
	}
}

func TestRemoveStaleRefusesEmptyPlaylist(t *testing.T) {
	cfg, l, pc := setup(t)
	path := writePointer(t, l, pc, "Heat (1995)", playlist.Movie)

	c := New(FromConfig(cfg), l, nil)
	err := c.RemoveStale(context.Background(), pc, scanner.NewKeySet())
	if !errors.Is(err, ErrNoEntries) {
		t.Fatalf("expected ErrNoEntries, got %v", err)
	}
	if !exists(path) || pc.Len() != 1 {
		t.Error("nothing may be removed for an empty playlist")
	}

	// Run carries on with the other passes
	if _, err := c.Run(context.Background(), pc, scanner.NewKeySet(), scanner.NewKeySet()); err != nil {
		t.Errorf("Run returned error: %v", err)
	}
	if !exists(path) {
		t.Error("Run removed a pointer for an empty playlist")
	}
}

func TestRemoveStaleCap(t *testing.T) {
	cfg, l, pc := setup(t)
	for _, title := range []string{"A (2001)", "B (2002)", "C (2003)"} {
		writePointer(t, l, pc, title, playlist.Movie)
	}
	cfg.Cleanup.MaxRemovals = 2

	c := New(FromConfig(cfg), l, nil)
	if err := c.RemoveStale(context.Background(), pc, scanner.NewKeySet("unrelated (1999)")); err != nil {
		t.Fatal(err)
	}
	res := c.Finish()
	if res.StaleRemoved != 2 || !res.CapReached {
		t.Errorf("expected cap at 2 removals, got %+v", res)
	}
	if pc.Len() != 1 {
		t.Errorf("expected 1 record left for the next run, got %d", pc.Len())
	}
}

func TestLegacyRecordsSkipped(t *testing.T) {
	cfg, l, pc := setup(t)
	pc.Set("Heat (1995)", cache.LegacyRecord("http://x/heat"))

	c := New(FromConfig(cfg), l, nil)
	res, err := c.Run(context.Background(), pc, scanner.NewKeySet("other (2000)"), scanner.NewKeySet("heat (1995)"))
	if err != nil {
		t.Fatal(err)
	}
	if res.LegacySkipped != 1 || res.Deleted() != 0 {
		t.Errorf("expected legacy record to be skipped once, got %+v", res)
	}
	if _, ok := pc.Get("Heat (1995)"); !ok {
		t.Error("legacy record must be kept")
	}
}

func TestRemoveOrphans(t *testing.T) {
	cfg, l, pc := setup(t)
	uncached := writePointer(t, l, nil, "the great show s1e5", playlist.Show)
	cached := writePointer(t, l, pc, "Heat (1995)", playlist.Movie)
	other := writePointer(t, l, pc, "Alien (1979)", playlist.Movie)

	library := scanner.NewKeySet("the great show s01 e05", "heat (1995)")
	c := New(FromConfig(cfg), l, nil)
	if err := c.RemoveOrphans(context.Background(), pc, library); err != nil {
		t.Fatal(err)
	}

	if exists(uncached) || exists(cached) {
		t.Error("owned pointers should be removed")
	}
	if !exists(other) {
		t.Error("unowned pointer was removed")
	}
	if _, ok := pc.Get("Heat (1995)"); ok {
		t.Error("record of removed pointer should be dropped")
	}
	if res := c.Finish(); res.OrphansRemoved != 2 {
		t.Errorf("expected 2 orphans removed, got %d", res.OrphansRemoved)
	}
}

func TestDryRunTouchesNothing(t *testing.T) {
	cfg, l, pc := setup(t)
	cfg.DryRun = true
	path := writePointer(t, l, pc, "Heat (1995)", playlist.Movie)

	c := New(FromConfig(cfg), l, nil)
	res, err := c.Run(context.Background(), pc, scanner.NewKeySet("other (2000)"), scanner.NewKeySet())
	if err != nil {
		t.Fatal(err)
	}
	if !exists(path) {
		t.Error("dry run deleted a pointer")
	}
	if res.StaleRemoved != 1 {
		t.Errorf("expected the stale removal to be reported, got %+v", res)
	}
	if exists(cfg.OperationLogPath()) {
		t.Error("dry run must not write the operation log")
	}
}

func TestOperationLog(t *testing.T) {
	cfg, l, pc := setup(t)
	path := writePointer(t, l, pc, "the great show s1e1", playlist.Show)

	c := New(FromConfig(cfg), l, nil)
	if _, err := c.Run(context.Background(), pc, scanner.NewKeySet("other (2000)"), scanner.NewKeySet()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(cfg.OperationLogPath())
	if err != nil {
		t.Fatalf("read operation log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected delete plus two prunes, got %q", lines)
	}
	parts := strings.Split(lines[0], "|")
	if len(parts) != 3 || parts[1] != "delete" || parts[2] != path {
		t.Errorf("unexpected log line %q", lines[0])
	}
}

func TestProtectedPathRefused(t *testing.T) {
	cfg, l, pc := setup(t)
	path := writePointer(t, l, pc, "Heat (1995)", playlist.Movie)
	cfg.Cleanup.ProtectedPaths = []string{l.Movies}

	c := New(FromConfig(cfg), l, nil)
	if err := c.RemoveSuperseded(context.Background(), pc, scanner.NewKeySet("heat (1995)")); err != nil {
		t.Fatal(err)
	}
	if !exists(path) {
		t.Error("protected pointer was deleted")
	}
	if _, ok := pc.Get("Heat (1995)"); !ok {
		t.Error("record of a pointer that could not be deleted must be kept")
	}
	if res := c.Finish(); len(res.Errors) == 0 {
		t.Error("expected error for protected path")
	}
}

func TestConvergence(t *testing.T) {
	cfg, l, pc := setup(t)
	ctx := context.Background()
	engine := reconcile.New(cfg, nil, nil)

	run := func(entries []playlist.ClassifiedEntry) {
		t.Helper()
		if _, err := engine.Reconcile(ctx, entries, scanner.NewKeySet(), pc); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		c := New(FromConfig(cfg), l, nil)
		if _, err := c.Run(ctx, pc, PlaylistKeys(entries), scanner.NewKeySet()); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
	}

	p1 := []playlist.ClassifiedEntry{
		{Title: "Heat (1995)", URL: "http://x/1", Kind: playlist.Movie},
		{Title: "the great show s1e1", URL: "http://x/2", Kind: playlist.Show},
		{Title: "Planet (2001)", URL: "http://x/3", Kind: playlist.Documentary},
	}
	p2 := []playlist.ClassifiedEntry{
		{Title: "Alien (1979)", URL: "http://x/4", Kind: playlist.Movie},
		{Title: "other show s2e3", URL: "http://x/5", Kind: playlist.Show},
	}

	run(p1)
	if got := pointersUnder(t, cfg.Output.Dir); len(got) != 3 {
		t.Fatalf("expected 3 pointers after P1, got %v", got)
	}

	run(p2)
	got := pointersUnder(t, cfg.Output.Dir)
	want := []string{
		"Movies/Alien (1979)/Alien (1979).strm",
		"TV Shows/other show/Season 2/other show S2E3.strm",
	}
	if len(got) != len(want) {
		t.Fatalf("pointer set = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pointer %d = %q, want %q", i, got[i], want[i])
		}
	}
	if exists(filepath.Join(l.TV, "the great show")) {
		t.Error("show folder of P1 should be pruned")
	}
	if pc.Len() != 2 {
		t.Errorf("expected 2 cache records, got %d", pc.Len())
	}
}

func TestBareYearTitleConverges(t *testing.T) {
	tests := []struct {
		name        string
		library     scanner.KeySet
		wantPointer []string
	}{
		{
			name:        "owned by library",
			library:     scanner.NewKeySet("inception (2010)"),
			wantPointer: []string{"Movies/Other Film (2001)/Other Film (2001).strm"},
		},
		{
			name:    "not owned",
			library: scanner.NewKeySet(),
			wantPointer: []string{
				"Movies/Inception (2010)/Inception (2010).strm",
				"Movies/Other Film (2001)/Other Film (2001).strm",
			},
		},
	}

	entries := []playlist.ClassifiedEntry{
		{Title: "Inception 2010", URL: "http://x/inception", Kind: playlist.Movie},
		{Title: "Other Film (2001)", URL: "http://x/other", Kind: playlist.Movie},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, l, pc := setup(t)
			ctx := context.Background()
			engine := reconcile.New(cfg, nil, nil)

			for run := 1; run <= 3; run++ {
				rc, err := engine.Reconcile(ctx, entries, tt.library, pc)
				if err != nil {
					t.Fatalf("run %d: Reconcile: %v", run, err)
				}
				res, err := New(FromConfig(cfg), l, nil).Run(ctx, pc, PlaylistKeys(entries), tt.library)
				if err != nil {
					t.Fatalf("run %d: cleanup: %v", run, err)
				}
				if res.OrphansRemoved != 0 || res.SupersededRemoved != 0 || res.FoldersPruned != 0 {
					t.Errorf("run %d removed pointers it had just reconciled: %+v", run, res)
				}
				if run > 1 && rc.Created != 0 {
					t.Errorf("run %d created %d pointers, want 0", run, rc.Created)
				}
			}

			got := pointersUnder(t, cfg.Output.Dir)
			if strings.Join(got, "|") != strings.Join(tt.wantPointer, "|") {
				t.Errorf("pointer set = %v, want %v", got, tt.wantPointer)
			}
		})
	}
}

func TestRunCheckpointsAfterEachPass(t *testing.T) {
	cfg, l, pc := setup(t)
	stale := writePointer(t, l, pc, "Alien (1979)", playlist.Movie)
	owned := writePointer(t, l, pc, "Heat (1995)", playlist.Movie)
	writePointer(t, l, pc, "Planet (2001)", playlist.Documentary)
	if err := pc.Save(); err != nil {
		t.Fatal(err)
	}

	var onDisk []int
	checkpoint := func() error {
		if err := pc.Save(); err != nil {
			return err
		}
		saved, err := cache.LoadPlaylistCache(cfg.PlaylistCachePath(), l.KindOf, nil)
		if err != nil {
			return err
		}
		onDisk = append(onDisk, saved.Len())
		return nil
	}

	current := scanner.NewKeySet("heat (1995)", "planet (2001)")
	library := scanner.NewKeySet("heat (1995)")
	c := New(FromConfig(cfg), l, nil, WithCheckpoint(checkpoint))
	res, err := c.Run(context.Background(), pc, current, library)
	if err != nil {
		t.Fatal(err)
	}

	if exists(stale) || exists(owned) {
		t.Fatal("expected stale and superseded pointers to be removed")
	}
	want := []int{2, 1, 1}
	if len(onDisk) != len(want) {
		t.Fatalf("checkpoints = %v, want %v", onDisk, want)
	}
	for i := range want {
		if onDisk[i] != want[i] {
			t.Errorf("checkpoint %d saw %d records, want %d", i, onDisk[i], want[i])
		}
	}
	if len(res.Errors) != 0 {
		t.Errorf("unexpected errors: %v", res.Errors)
	}
}

func TestRunReportsCheckpointFailure(t *testing.T) {
	cfg, l, pc := setup(t)
	writePointer(t, l, pc, "Alien (1979)", playlist.Movie)

	failing := func() error { return errors.New("disk full") }
	c := New(FromConfig(cfg), l, nil, WithCheckpoint(failing))
	res, err := c.Run(context.Background(), pc, scanner.NewKeySet("other (2000)"), scanner.NewKeySet())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 3 {
		t.Errorf("expected one error per pointer pass, got %v", res.Errors)
	}
}
