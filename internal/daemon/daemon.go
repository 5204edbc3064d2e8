// Package daemon runs complete sync passes: scan the libraries, read the
// playlist, reconcile the pointer tree, converge it and write a report.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/Nomadcxx/strmsync/internal/cache"
	"github.com/Nomadcxx/strmsync/internal/cleaner"
	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/genre"
	"github.com/Nomadcxx/strmsync/internal/layout"
	"github.com/Nomadcxx/strmsync/internal/logging"
	"github.com/Nomadcxx/strmsync/internal/playlist"
	"github.com/Nomadcxx/strmsync/internal/progress"
	"github.com/Nomadcxx/strmsync/internal/reconcile"
	"github.com/Nomadcxx/strmsync/internal/reporter"
	"github.com/Nomadcxx/strmsync/internal/scanner"
	"github.com/Nomadcxx/strmsync/internal/workers"
)

// ErrLocked is returned when another run holds the state directory lock
var ErrLocked = errors.New("another strmsync run is in progress")

// Daemon represents the sync service
type Daemon struct {
	config       *config.Config
	logger       *slog.Logger
	lookup       genre.Lookup
	headlessMode bool
}

// Option configures a Daemon
type Option func(*Daemon)

// WithLookup replaces the genre lookup built from the config
func WithLookup(l genre.Lookup) Option {
	return func(d *Daemon) {
		d.lookup = l
	}
}

// New creates a new daemon instance
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Daemon {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		config:       cfg,
		logger:       logger.With("component", "daemon"),
		headlessMode: detectHeadlessMode(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.lookup == nil {
		d.lookup = genre.FromConfig(cfg, logger)
	}
	return d
}

// detectHeadlessMode checks if running in a headless environment (no display available)
func detectHeadlessMode() bool {
	return os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == ""
}

// IsHeadless returns whether the daemon is running in headless mode
func (d *Daemon) IsHeadless() bool {
	return d.headlessMode
}

// Result is the outcome of a full sync run
type Result struct {
	Report     reporter.Report
	ReportPath string // JSON report, empty when it could not be written
	TextPath   string
}

// Changed reports whether the run created or removed anything
func (r Result) Changed() bool {
	return r.Report.Reconcile.Created > 0 || r.Report.Cleanup.Deleted() > 0 || r.Report.Cleanup.FoldersPruned > 0
}

// acquire takes the run lock. The state directory is created first.
func (d *Daemon) acquire() (*flock.Flock, error) {
	if err := os.MkdirAll(d.config.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	lock := flock.New(d.config.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return lock, nil
}

func (d *Daemon) release(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		d.logger.Warn("failed to release run lock", "path", d.config.LockPath(), "error", err)
	}
}

// RunSync executes a complete sync run and writes its report. Startup
// failures (lock held, output root refused, cache or playlist unreadable)
// abort before anything is written. Cancellation stops the run early but
// caches and the report are still saved; the returned error is then the
// context error.
func (d *Daemon) RunSync(ctx context.Context, pr *progress.Reporter) (Result, error) {
	var res Result
	start := time.Now()

	lock, err := d.acquire()
	if err != nil {
		return res, err
	}
	defer d.release(lock)

	cfg := d.config
	runID := uuid.NewString()
	logger := d.logger.With("run_id", runID)
	logger.Info("sync started",
		"playlist", cfg.Playlist.Source,
		"output", cfg.Output.Dir,
		"dry_run", cfg.DryRun)

	for _, root := range cfg.OutputRoots() {
		if err := scanner.ValidatePathDepth(root, "write pointers"); err != nil {
			return res, err
		}
	}

	l := layout.FromConfig(cfg)
	pc, libraryKeys, err := d.loadCaches(l, logger)
	if err != nil {
		return res, err
	}

	pr.Start(progress.StageParsing, 0, "Reading playlist...")
	raw, err := playlist.Open(ctx, cfg.Playlist.Source, cfg.PlaylistTimeout())
	if err != nil {
		return res, fmt.Errorf("read playlist: %w", err)
	}

	report := reporter.Report{
		RunID:          runID,
		Timestamp:      start,
		DryRun:         cfg.DryRun,
		PlaylistSource: cfg.Playlist.Source,
		OutputDir:      cfg.Output.Dir,
		LibraryPaths:   cfg.GetAllPaths(),
	}

	var runErr error
	keys, summary, err := d.scan(ctx, libraryKeys, logger, pr)
	report.Scan = summary
	if err != nil {
		runErr = err
	}

	var entries []playlist.ClassifiedEntry
	if runErr == nil {
		entries, report.Playlist = playlist.NewClassifier(cfg.Keywords).Classify(raw)
		logger.Info("playlist classified",
			"raw", report.Playlist.Raw,
			"classified", report.Playlist.Classified,
			"duplicates", report.Playlist.Duplicates)

		engine := reconcile.New(cfg, d.lookup, logger, reconcile.WithProgress(pr))
		report.Reconcile, runErr = engine.Reconcile(ctx, entries, keys, pc)
		if err := pc.Save(); err != nil {
			logger.Error("failed to save playlist cache", "path", pc.Path(), "error", err)
			report.AddError(err)
		}
	}

	if runErr == nil && cfg.Cleanup.Enabled {
		pr.Start(progress.StageCleaning, 0, "Removing stale pointers...")
		cl := cleaner.New(cleaner.FromConfig(cfg), l, logger, cleaner.WithCheckpoint(pc.Save))
		report.Cleanup, runErr = cl.Run(ctx, pc, cleaner.PlaylistKeys(entries), keys)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			report.Interrupted = true
			logger.Warn("sync interrupted, saving progress", "error", runErr)
		} else {
			logger.Error("sync failed", "error", runErr)
			report.AddError(runErr)
		}
	}

	if err := pc.Save(); err != nil {
		logger.Error("failed to save playlist cache", "path", pc.Path(), "error", err)
		report.AddError(err)
	}

	report.DurationMillis = time.Since(start).Milliseconds()
	res.ReportPath, res.TextPath, err = reporter.Generate(&report, cfg.ReportsDir())
	res.Report = report
	if err != nil {
		logger.Error("failed to write report", "error", err)
	} else if _, err := CleanupOldReports(cfg.ReportsDir(), cfg.Daemon.ReportRetentionDays); err != nil {
		logger.Warn("failed to remove old reports", "error", err)
	}

	rc := report.Reconcile
	logger.Info("sync finished",
		"entries", report.Playlist.Raw,
		"classified", report.Playlist.Classified,
		"created", rc.Created,
		"skipped_unchanged", rc.SkippedUnchanged,
		"skipped_in_library", rc.SkippedInLibrary,
		"skipped_ignored", rc.SkippedIgnored,
		"skipped_no_key", rc.SkippedNoKey,
		"deleted", report.Cleanup.Deleted(),
		"pruned", report.Cleanup.FoldersPruned,
		"errors", len(report.Errors)+rc.Failed,
		"duration", report.Duration().Round(time.Millisecond),
		"report", res.ReportPath)
	pr.Complete("Sync complete")

	return res, runErr
}

// ScanLibraries refreshes the library key cache without touching the
// pointer tree.
func (d *Daemon) ScanLibraries(ctx context.Context, pr *progress.Reporter) (reporter.ScanSummary, error) {
	lock, err := d.acquire()
	if err != nil {
		return reporter.ScanSummary{}, err
	}
	defer d.release(lock)

	cached, err := cache.LoadLibraryKeys(d.config.LibraryCachePath())
	if err != nil {
		return reporter.ScanSummary{}, err
	}
	_, summary, err := d.scan(ctx, cached, d.logger, pr)
	pr.Complete("Scan complete")
	return summary, err
}

// Clean runs only the convergence passes against the current playlist
func (d *Daemon) Clean(ctx context.Context, pr *progress.Reporter) (cleaner.CleanResult, error) {
	lock, err := d.acquire()
	if err != nil {
		return cleaner.CleanResult{}, err
	}
	defer d.release(lock)

	cfg := d.config
	l := layout.FromConfig(cfg)
	pc, keys, err := d.loadCaches(l, d.logger)
	if err != nil {
		return cleaner.CleanResult{}, err
	}

	pr.Start(progress.StageParsing, 0, "Reading playlist...")
	raw, err := playlist.Open(ctx, cfg.Playlist.Source, cfg.PlaylistTimeout())
	if err != nil {
		return cleaner.CleanResult{}, fmt.Errorf("read playlist: %w", err)
	}
	entries, _ := playlist.NewClassifier(cfg.Keywords).Classify(raw)

	pr.Start(progress.StageCleaning, 0, "Removing stale pointers...")
	result, runErr := cleaner.New(cleaner.FromConfig(cfg), l, d.logger, cleaner.WithCheckpoint(pc.Save)).Run(ctx, pc, cleaner.PlaylistKeys(entries), keys)
	if err := pc.Save(); err != nil {
		result.Errors = append(result.Errors, err)
	}
	pr.Complete("Cleanup complete")
	return result, runErr
}

// loadCaches reads both persisted caches. A dry run never writes them back.
func (d *Daemon) loadCaches(l layout.Layout, logger *slog.Logger) (*cache.PlaylistCache, scanner.KeySet, error) {
	pc, err := cache.LoadPlaylistCache(d.config.PlaylistCachePath(), l.KindOf, logger)
	if err != nil {
		return nil, nil, err
	}
	pc.ReadOnly = d.config.DryRun

	keys, err := cache.LoadLibraryKeys(d.config.LibraryCachePath())
	if err != nil {
		return nil, nil, err
	}
	return pc, keys, nil
}

// scan walks every library root and unions the result into cached. The
// cache grows only: titles deleted from the library stay known until the
// cache file is removed.
func (d *Daemon) scan(ctx context.Context, cached scanner.KeySet, logger *slog.Logger, pr *progress.Reporter) (scanner.KeySet, reporter.ScanSummary, error) {
	cfg := d.config
	s := scanner.New(logger, cfg.Output.TVFolder)
	found, stats, err := s.ScanAll(ctx, scanner.RootsFromConfig(cfg), workers.Size(cfg.Workers.Max), pr)
	summary := reporter.ScanSummary{
		Roots:   stats.Roots,
		Missing: stats.Missing,
		Files:   stats.Files,
		Skipped: stats.Skipped,
	}
	if err != nil {
		summary.CachedKeys = cached.Len()
		return cached, summary, err
	}

	summary.ScanKeys = found.Len()
	cached.Union(found)
	summary.CachedKeys = cached.Len()

	logger.Info("library scan complete",
		"roots", stats.Roots,
		"missing", stats.Missing,
		"files", stats.Files,
		"keys", summary.ScanKeys,
		"cached_keys", summary.CachedKeys)

	if !cfg.DryRun {
		if err := cache.SaveLibraryKeys(cfg.LibraryCachePath(), cached); err != nil {
			logger.Error("failed to save library cache", "error", err)
		}
	}
	return cached, summary, nil
}

// CleanupOldReports removes reports in dir older than days and returns how
// many files were deleted. days <= 0 keeps everything.
func CleanupOldReports(dir string, days int) (int, error) {
	if days <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read report directory: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	deleted := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".txt") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, name)); err == nil {
				deleted++
			}
		}
	}

	return deleted, nil
}
