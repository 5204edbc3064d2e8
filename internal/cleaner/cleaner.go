// Package cleaner converges the output tree after reconciliation: it removes
// pointers that left the playlist or are now owned, and prunes empty folders.
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nomadcxx/strmsync/internal/cache"
	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/layout"
	"github.com/Nomadcxx/strmsync/internal/logging"
	"github.com/Nomadcxx/strmsync/internal/normalize"
	"github.com/Nomadcxx/strmsync/internal/playlist"
	"github.com/Nomadcxx/strmsync/internal/scanner"
)

// ErrNoEntries is returned by RemoveStale when the playlist produced nothing
var ErrNoEntries = errors.New("playlist produced no entries")

// CleanResult represents the result of the cleanup passes
type CleanResult struct {
	StaleRemoved      int         `json:"stale_removed"`
	SupersededRemoved int         `json:"superseded_removed"`
	OrphansRemoved    int         `json:"orphans_removed"`
	FoldersPruned     int         `json:"folders_pruned"`
	LegacySkipped     int         `json:"legacy_skipped"`
	CapReached        bool        `json:"cap_reached"`
	Errors            []error     `json:"-"`
	Operations        []Operation `json:"-"`
	DryRun            bool        `json:"dry_run"`
}

// Deleted is the number of pointers removed by every pass
func (r CleanResult) Deleted() int {
	return r.StaleRemoved + r.SupersededRemoved + r.OrphansRemoved
}

// Operation represents a single filesystem operation
type Operation struct {
	Type      string // "delete", "delete_folder", "prune"
	Path      string
	Timestamp time.Time
	Completed bool
}

// Config holds cleaner configuration
type Config struct {
	DryRun         bool
	MaxRemovals    int // cap on stale removals per run, 0 means unlimited
	ProtectedPaths []string
	LogPath        string // append-only operation log
}

// DefaultProtectedPaths are never deleted from, whatever the output roots say
var DefaultProtectedPaths = []string{
	// System directories
	"/usr", "/etc", "/bin", "/sbin", "/boot",
	"/sys", "/proc", "/dev", "/run",
	"/lib", "/lib32", "/lib64", "/libx32",
	"/opt", "/srv",
	// Windows system paths (for cross-platform safety)
	"C:\\Windows", "C:\\Program Files", "C:\\Program Files (x86)",
}

// FromConfig derives the cleaner configuration from [cleanup]
func FromConfig(cfg *config.Config) Config {
	protected := append([]string{}, DefaultProtectedPaths...)
	protected = append(protected, cfg.Cleanup.ProtectedPaths...)
	return Config{
		DryRun:         cfg.DryRun,
		MaxRemovals:    cfg.Cleanup.MaxRemovals,
		ProtectedPaths: protected,
		LogPath:        cfg.OperationLogPath(),
	}
}

// Cleaner runs the cleanup passes against one output tree. Passes may run
// alone or in any order; Run executes all of them. A Cleaner is used by one
// goroutine, the one owning the playlist cache.
type Cleaner struct {
	config Config
	layout layout.Layout
	logger *slog.Logger
	result CleanResult

	legacySeen map[string]bool
	checkpoint func() error
}

// Option configures a Cleaner
type Option func(*Cleaner)

// WithCheckpoint sets a function Run calls after each pass that can change
// the playlist cache, usually the cache's Save.
func WithCheckpoint(fn func() error) Option {
	return func(c *Cleaner) {
		c.checkpoint = fn
	}
}

// New creates a cleaner for the output tree described by l
func New(cfg Config, l layout.Layout, logger *slog.Logger, opts ...Option) *Cleaner {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Cleaner{
		config: cfg,
		layout: l,
		logger: logger.With("component", "cleaner"),
		result: CleanResult{DryRun: cfg.DryRun},

		legacySeen: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlaylistKeys returns the identity keys of a run's classified entries
func PlaylistKeys(entries []playlist.ClassifiedEntry) scanner.KeySet {
	keys := make(scanner.KeySet, len(entries))
	for _, e := range entries {
		if key, ok := normalize.TitleKey(e.Title, e.Kind == playlist.Show); ok {
			keys.Add(key)
		}
	}
	return keys
}

// Run executes every pass in order (stale, superseded, orphans, prune) and
// writes the operation log. A refused stale pass does not stop the others.
// The checkpoint runs after each pointer pass, also when the pass failed.
func (c *Cleaner) Run(ctx context.Context, pc *cache.PlaylistCache, current, library scanner.KeySet) (CleanResult, error) {
	err := c.RemoveStale(ctx, pc, current)
	c.save("stale")
	if err != nil {
		if !errors.Is(err, ErrNoEntries) {
			return c.Finish(), err
		}
		c.logger.Warn("skipping removed-entry cleanup", "reason", err)
	}
	err = c.RemoveSuperseded(ctx, pc, library)
	c.save("superseded")
	if err != nil {
		return c.Finish(), err
	}
	err = c.RemoveOrphans(ctx, pc, library)
	c.save("orphans")
	if err != nil {
		return c.Finish(), err
	}
	if err := c.PruneEmpty(ctx); err != nil {
		return c.Finish(), err
	}

	res := c.Finish()
	c.logger.Info("cleanup finished",
		"stale", res.StaleRemoved,
		"superseded", res.SupersededRemoved,
		"orphans", res.OrphansRemoved,
		"pruned", res.FoldersPruned,
		"errors", len(res.Errors),
		"dry_run", res.DryRun)
	return res, nil
}

func (c *Cleaner) save(pass string) {
	if c.checkpoint == nil {
		return
	}
	if err := c.checkpoint(); err != nil {
		c.logger.Error("checkpoint failed", "pass", pass, "error", err)
		c.result.Errors = append(c.result.Errors, fmt.Errorf("checkpoint after %s pass: %w", pass, err))
	}
}

// Finish writes completed operations to the operation log and returns the
// accumulated result.
func (c *Cleaner) Finish() CleanResult {
	if !c.config.DryRun && c.config.LogPath != "" && len(c.result.Operations) > 0 {
		if err := writeOperationLog(c.result.Operations, c.config.LogPath); err != nil {
			c.result.Errors = append(c.result.Errors,
				fmt.Errorf("failed to write operation log: %w", err))
		}
		c.result.Operations = c.result.Operations[:0:0]
	}
	return c.result
}

// RemoveStale removes the pointers of cached titles whose key is not in
// current. Movie and documentary pointers go with their own folder; episode
// pointers are removed alone since their season folder is shared.
func (c *Cleaner) RemoveStale(ctx context.Context, pc *cache.PlaylistCache, current scanner.KeySet) error {
	if current.Len() == 0 {
		return ErrNoEntries
	}

	for _, title := range pc.Titles() {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, _ := pc.Get(title)
		if !c.usable(title, rec) {
			continue
		}

		key, ok := normalize.TitleKey(title, rec.Kind == playlist.Show)
		if ok && current.Has(key) {
			continue
		}

		if c.config.MaxRemovals > 0 && c.result.StaleRemoved >= c.config.MaxRemovals {
			c.result.CapReached = true
			c.logger.Warn("removal cap reached, leaving remaining stale pointers for the next run",
				"max_removals", c.config.MaxRemovals)
			return nil
		}

		if c.removePointer(rec) {
			pc.Delete(title)
			c.result.StaleRemoved++
			c.logger.Info("removed stale pointer", "title", title, "path", rec.Path)
		}
	}
	return nil
}

// RemoveSuperseded removes the pointers of cached titles the library now owns
func (c *Cleaner) RemoveSuperseded(ctx context.Context, pc *cache.PlaylistCache, library scanner.KeySet) error {
	for _, title := range pc.Titles() {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, _ := pc.Get(title)
		if !c.usable(title, rec) {
			continue
		}

		key, ok := normalize.TitleKey(title, rec.Kind == playlist.Show)
		if !ok || !library.Has(key) {
			continue
		}

		if c.deleteFile(rec.Path) {
			pc.Delete(title)
			c.result.SupersededRemoved++
			c.logger.Info("removed pointer superseded by library", "title", title, "key", key, "path", rec.Path)
		}
	}
	return nil
}

// RemoveOrphans walks the output roots and deletes every pointer whose file
// name derives a key the library owns, whether or not it is cached. Records
// pointing at removed files are dropped.
func (c *Cleaner) RemoveOrphans(ctx context.Context, pc *cache.PlaylistCache, library scanner.KeySet) error {
	byPath := make(map[string]string)
	if pc != nil {
		for _, title := range pc.Titles() {
			if rec, _ := pc.Get(title); rec.IsPointer() {
				byPath[filepath.Clean(rec.Path)] = title
			}
		}
	}

	for _, root := range c.layout.Roots() {
		if _, err := os.Stat(root); err != nil {
			continue
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				c.logger.Warn("cannot read output folder", "path", path, "error", err)
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || !layout.IsPointer(path) {
				return nil
			}

			key, ok := c.layout.PointerKey(path)
			if !ok || !library.Has(key) {
				return nil
			}

			if c.deleteFile(path) {
				c.result.OrphansRemoved++
				c.logger.Info("removed pointer owned by library", "path", path, "key", key)
				if title, cached := byPath[filepath.Clean(path)]; cached {
					pc.Delete(title)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// PruneEmpty removes, leaves first, every folder under the output roots
// whose subtree holds no pointer. The roots themselves stay.
func (c *Cleaner) PruneEmpty(ctx context.Context) error {
	for _, root := range c.layout.Roots() {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		if _, err := c.prune(ctx, root, true); err != nil {
			return err
		}
	}
	return nil
}

// prune reports whether dir still holds a pointer after its children were
// pruned
func (c *Cleaner) prune(ctx context.Context, dir string, isRoot bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return true, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		c.logger.Warn("cannot read output folder", "path", dir, "error", err)
		return true, nil
	}

	hasPointer := false
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			childHas, err := c.prune(ctx, path, false)
			if err != nil {
				return true, err
			}
			hasPointer = hasPointer || childHas
			continue
		}
		if layout.IsPointer(path) {
			hasPointer = true
		}
	}

	if hasPointer || isRoot {
		return hasPointer, nil
	}

	if !c.removeFolder(dir, "prune") {
		return true, nil
	}
	c.result.FoldersPruned++
	c.logger.Debug("pruned empty folder", "path", dir)
	return false, nil
}

// usable reports whether a record can be acted on. Legacy and unreadable
// records have no known pointer path and are left alone.
func (c *Cleaner) usable(title string, rec cache.Record) bool {
	if rec.IsPointer() {
		return true
	}
	if rec.Variant == cache.VariantLegacy && !c.legacySeen[title] {
		c.legacySeen[title] = true
		c.result.LegacySkipped++
		c.logger.Warn("legacy cache record without pointer path, skipping", "title", title)
	}
	return false
}

// removePointer deletes a pointer and, for movies and documentaries, the
// folder named after it
func (c *Cleaner) removePointer(rec cache.Record) bool {
	dir := filepath.Dir(rec.Path)
	stem := strings.TrimSuffix(filepath.Base(rec.Path), filepath.Ext(rec.Path))

	if rec.Kind != playlist.Show && filepath.Base(dir) == stem {
		return c.removeFolder(dir, "delete_folder")
	}
	return c.deleteFile(rec.Path)
}

// deleteFile removes one pointer file. A file already gone counts as removed.
func (c *Cleaner) deleteFile(path string) bool {
	if err := c.checkTarget(path); err != nil {
		c.result.Errors = append(c.result.Errors, err)
		c.logger.Error("refusing to delete", "path", path, "error", err)
		return false
	}

	op := Operation{Type: "delete", Path: path, Timestamp: time.Now()}

	if c.config.DryRun {
		c.logger.Info("[DRY RUN] would delete pointer", "path", path)
		op.Completed = true
		c.result.Operations = append(c.result.Operations, op)
		return true
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.result.Errors = append(c.result.Errors, fmt.Errorf("failed to delete %s: %w", path, err))
		c.logger.Error("failed to delete pointer", "path", path, "error", err)
		c.result.Operations = append(c.result.Operations, op)
		return false
	}

	op.Completed = true
	c.result.Operations = append(c.result.Operations, op)
	return true
}

// removeFolder removes dir and everything below it
func (c *Cleaner) removeFolder(dir, opType string) bool {
	if err := c.checkTarget(dir); err != nil {
		c.result.Errors = append(c.result.Errors, err)
		c.logger.Error("refusing to delete folder", "path", dir, "error", err)
		return false
	}

	op := Operation{Type: opType, Path: dir, Timestamp: time.Now()}

	if c.config.DryRun {
		c.logger.Info("[DRY RUN] would delete folder", "path", dir)
		op.Completed = true
		c.result.Operations = append(c.result.Operations, op)
		return true
	}

	if err := os.RemoveAll(dir); err != nil {
		c.result.Errors = append(c.result.Errors, fmt.Errorf("failed to delete %s: %w", dir, err))
		c.logger.Error("failed to delete folder", "path", dir, "error", err)
		c.result.Operations = append(c.result.Operations, op)
		return false
	}

	op.Completed = true
	c.result.Operations = append(c.result.Operations, op)
	return true
}

// checkTarget refuses paths outside the output roots and protected paths
func (c *Cleaner) checkTarget(path string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	if isProtectedPath(path, c.config.ProtectedPaths) {
		return fmt.Errorf("refusing to delete protected path: %s", path)
	}
	return scanner.ValidatePathInRoots(path, c.layout.Roots())
}

// validatePath sanitizes and validates a file path for safety
func validatePath(path string) error {
	cleaned := filepath.Clean(path)

	// Check for path traversal attempts
	for _, part := range strings.Split(filepath.ToSlash(cleaned), "/") {
		if part == ".." {
			return fmt.Errorf("invalid path: contains path traversal (..) sequence")
		}
	}

	// Ensure path is absolute for safety
	if !filepath.IsAbs(cleaned) {
		return fmt.Errorf("invalid path: must be absolute path")
	}

	return nil
}

// isProtectedPath checks if path is, or lies below, a protected path
func isProtectedPath(path string, protected []string) bool {
	cleaned := filepath.Clean(path)
	for _, p := range protected {
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		if cleaned == p || strings.HasPrefix(cleaned, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// writeOperationLog appends completed operations to the log as
// timestamp|type|path lines
func writeOperationLog(ops []Operation, logPath string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return err
	}

	// Open log file (append mode) with user-only permissions for security
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, op := range ops {
		if !op.Completed {
			continue
		}

		line := fmt.Sprintf("%s|%s|%s\n",
			op.Timestamp.Format(time.RFC3339),
			op.Type,
			op.Path)

		if _, err := f.WriteString(line); err != nil {
			return err
		}
	}

	return nil
}
