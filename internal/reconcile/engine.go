// Package reconcile turns classified playlist entries into pointer files,
// skipping what the library already has and what earlier runs already wrote.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Nomadcxx/strmsync/internal/cache"
	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/genre"
	"github.com/Nomadcxx/strmsync/internal/layout"
	"github.com/Nomadcxx/strmsync/internal/logging"
	"github.com/Nomadcxx/strmsync/internal/normalize"
	"github.com/Nomadcxx/strmsync/internal/playlist"
	"github.com/Nomadcxx/strmsync/internal/progress"
	"github.com/Nomadcxx/strmsync/internal/scanner"
	"github.com/Nomadcxx/strmsync/internal/workers"
)

// Result counts what a reconciliation did
type Result struct {
	Entries      int `json:"entries"`
	Created      int `json:"created"`
	Replaced     int `json:"replaced"`     // pointer moved to a new path
	Upgraded     int `json:"upgraded"`     // legacy records now structured
	Reclassified int `json:"reclassified"` // movies placed as documentaries
	Failed       int `json:"failed"`
	GenreErrors  int `json:"genre_errors"`
	Cancelled    int `json:"cancelled"` // dropped before processing

	SkippedIgnored   int `json:"skipped_ignored"`
	SkippedUnchanged int `json:"skipped_unchanged"`
	SkippedNoKey     int `json:"skipped_no_key"`
	SkippedInLibrary int `json:"skipped_in_library"`
	SkippedCorrupt   int `json:"skipped_corrupt"` // unreadable cache value kept as is
}

// Skipped is the total of every skip reason
func (r Result) Skipped() int {
	return r.SkippedIgnored + r.SkippedUnchanged + r.SkippedNoKey + r.SkippedInLibrary + r.SkippedCorrupt
}

// Engine reconciles one run's entries against the caches
type Engine struct {
	layout   layout.Layout
	ignore   map[playlist.Kind][]string
	lookup   genre.Lookup
	logger   *slog.Logger
	progress *progress.Reporter

	workers int
	dryRun  bool
	timeout time.Duration
}

// Option configures an Engine
type Option func(*Engine)

// WithProgress reports per-entry progress to pr
func WithProgress(pr *progress.Reporter) Option {
	return func(e *Engine) {
		e.progress = pr
	}
}

// WithWorkers overrides the pool size derived from workers.max
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New creates an engine. A nil lookup disables genre reclassification.
func New(cfg *config.Config, lookup genre.Lookup, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if lookup == nil {
		lookup = genre.Disabled()
	}
	e := &Engine{
		layout: layout.FromConfig(cfg),
		ignore: map[playlist.Kind][]string{
			playlist.Movie:       lowerAll(cfg.Ignore.Movie),
			playlist.Show:        lowerAll(cfg.Ignore.Show),
			playlist.Documentary: lowerAll(cfg.Ignore.Documentary),
		},
		lookup:  lookup,
		logger:  logger.With("component", "reconcile"),
		workers: workers.Size(cfg.Workers.Max),
		dryRun:  cfg.DryRun,
		timeout: cfg.TMDBTimeout(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
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

// job is an entry that passed every cheap check and needs I/O
type job struct {
	entry playlist.ClassifiedEntry
	name  string // movie name for the genre lookup
	year  string
	prev  cache.Record
	had   bool
}

// outcome is what a worker reports back to the cache owner
type outcome struct {
	job          job
	kind         playlist.Kind
	path         string
	reclassified bool
	genreErr     bool
	err          error
}

// Reconcile processes entries and records every pointer written in pc. The
// cache is only touched from the calling goroutine. On cancellation entries
// already handed to workers finish, the rest are counted as cancelled and
// the context error is returned alongside the partial result.
func (e *Engine) Reconcile(ctx context.Context, entries []playlist.ClassifiedEntry, keys scanner.KeySet, pc *cache.PlaylistCache) (Result, error) {
	res := Result{Entries: len(entries)}

	jobs := e.plan(entries, keys, pc, &res)

	e.progress.Start(progress.StageReconciling, len(jobs), fmt.Sprintf("Reconciling %d entries...", len(jobs)))
	if len(jobs) == 0 {
		return res, ctx.Err()
	}

	n := e.workers
	if n > len(jobs) {
		n = len(jobs)
	}

	jobCh := make(chan job)
	outCh := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				if ctx.Err() != nil {
					continue
				}
				outCh <- e.process(ctx, j)
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, j := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobCh <- j:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outCh)
	}()

	done := 0
	for out := range outCh {
		done++
		e.record(out, pc, &res)
		e.progress.Increment(out.job.entry.Title)
	}

	res.Cancelled = len(jobs) - done
	if res.Cancelled > 0 {
		e.logger.Warn("reconciliation interrupted", "processed", done, "dropped", res.Cancelled)
	}

	e.logger.Info("reconciliation finished",
		"entries", res.Entries,
		"created", res.Created,
		"skipped", res.Skipped(),
		"failed", res.Failed,
		"dry_run", e.dryRun)

	return res, ctx.Err()
}

// plan runs the checks that need neither network nor disk writes, in entry
// order: ignore list, unchanged cache pair, identity key, library membership.
func (e *Engine) plan(entries []playlist.ClassifiedEntry, keys scanner.KeySet, pc *cache.PlaylistCache, res *Result) []job {
	jobs := make([]job, 0, len(entries))

	for _, entry := range entries {
		if e.ignored(entry) {
			res.SkippedIgnored++
			e.logger.Debug("ignored by keyword", "title", entry.Title, "kind", entry.Kind.String())
			continue
		}

		prev, had := pc.Get(entry.Title)
		if had && prev.Variant == cache.VariantUnknown {
			res.SkippedCorrupt++
			e.logger.Warn("unreadable cache value, leaving entry untouched", "title", entry.Title)
			continue
		}
		if had && prev.URL == entry.URL {
			if prev.Variant == cache.VariantLegacy {
				e.upgradeLegacy(entry, pc, res)
			}
			res.SkippedUnchanged++
			continue
		}

		key, ok := normalize.TitleKey(entry.Title, entry.Kind == playlist.Show)
		if !ok {
			res.SkippedNoKey++
			e.logger.Info("no identity key, skipping", "title", entry.Title, "kind", entry.Kind.String())
			continue
		}

		if keys.Has(key) {
			res.SkippedInLibrary++
			e.logger.Debug("already in library", "title", entry.Title, "key", key)
			continue
		}

		j := job{entry: entry, prev: prev, had: had}
		if entry.Kind == playlist.Movie {
			j.name, j.year = normalize.ExtractMovieYear(entry.Title)
		}
		jobs = append(jobs, j)
	}

	return jobs
}

func (e *Engine) ignored(entry playlist.ClassifiedEntry) bool {
	title := strings.ToLower(entry.Title)
	for _, word := range e.ignore[entry.Kind] {
		if strings.Contains(title, word) {
			return true
		}
	}
	return false
}

// upgradeLegacy turns a bare-URL record into a structured one when its
// pointer can be found where this run would have written it.
func (e *Engine) upgradeLegacy(entry playlist.ClassifiedEntry, pc *cache.PlaylistCache, res *Result) {
	kinds := []playlist.Kind{entry.Kind}
	if entry.Kind == playlist.Movie {
		kinds = append(kinds, playlist.Documentary)
	}

	for _, kind := range kinds {
		_, path, err := e.layout.Target(entry.Title, kind)
		if err != nil {
			return
		}
		if _, err := os.Stat(path); err == nil {
			pc.Set(entry.Title, cache.PointerRecord(entry.URL, path, kind))
			res.Upgraded++
			e.logger.Debug("upgraded legacy cache record", "title", entry.Title, "path", path)
			return
		}
	}
	e.logger.Debug("legacy record without a locatable pointer", "title", entry.Title)
}

// process does the genre lookup and the write for one entry. It runs on a
// worker and never touches the cache.
func (e *Engine) process(ctx context.Context, j job) outcome {
	out := outcome{job: j, kind: j.entry.Kind}

	if j.entry.Kind == playlist.Movie && j.name != "" {
		isDoc, err := e.isDocumentary(ctx, j.name, j.year)
		if err != nil {
			out.genreErr = !errors.Is(err, genre.ErrDisabled)
		} else if isDoc {
			out.kind = playlist.Documentary
			out.reclassified = true
		}
	}

	dir, path, err := e.layout.Target(j.entry.Title, out.kind)
	if err != nil {
		out.err = err
		return out
	}
	out.path = path

	if e.dryRun {
		e.logger.Info("[DRY RUN] would create pointer", "path", path, "url", j.entry.URL)
		return out
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		out.err = fmt.Errorf("create folder %s: %w", dir, err)
		return out
	}
	if err := os.WriteFile(path, []byte(j.entry.URL+"\n"), 0o644); err != nil {
		out.err = fmt.Errorf("write pointer %s: %w", path, err)
		return out
	}
	return out
}

// isDocumentary asks the genre lookup with a per-call timeout
func (e *Engine) isDocumentary(ctx context.Context, name, year string) (bool, error) {
	lctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	genres, err := e.lookup.Genres(lctx, name, year)
	if err != nil {
		if errors.Is(err, genre.ErrDisabled) {
			return false, err
		}
		e.logger.Warn("genre lookup failed, placing as movie", "name", name, "year", year, "error", err)
		return false, err
	}
	return genre.IsDocumentary(genres), nil
}

// record applies a worker outcome to the cache. Failed writes leave the
// cache alone so the entry is retried next run.
func (e *Engine) record(out outcome, pc *cache.PlaylistCache, res *Result) {
	if out.genreErr {
		res.GenreErrors++
	}
	if out.err != nil {
		res.Failed++
		e.logger.Error("failed to create pointer", "title", out.job.entry.Title, "error", out.err)
		return
	}

	if out.reclassified {
		res.Reclassified++
		e.logger.Info("placed as documentary by genre", "title", out.job.entry.Title)
	}

	prev := out.job.prev
	if out.job.had && prev.IsPointer() && prev.Path != out.path {
		e.removeReplaced(prev.Path)
		res.Replaced++
	}

	pc.Set(out.job.entry.Title, cache.PointerRecord(out.job.entry.URL, out.path, out.kind))
	res.Created++
	if !e.dryRun {
		e.logger.Debug("created pointer", "title", out.job.entry.Title, "path", out.path)
	}
}

// removeReplaced deletes the pointer a title used to have. Empty folders are
// left for the prune pass.
func (e *Engine) removeReplaced(path string) {
	if e.dryRun {
		e.logger.Info("[DRY RUN] would remove replaced pointer", "path", path)
		return
	}
	if err := scanner.ValidatePathInRoots(path, e.layout.Roots()); err != nil {
		e.logger.Warn("not removing replaced pointer outside output roots", "path", path, "error", err)
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("failed to remove replaced pointer", "path", path, "error", err)
	}
}
