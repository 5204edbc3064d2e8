// Package scanner walks local media libraries and produces the set of identity
// keys for content that physically exists.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/logging"
)

// Mode selects how files under a root are turned into keys
type Mode int

const (
	ModeMovies Mode = iota
	ModeEpisodes
)

func (m Mode) String() string {
	if m == ModeEpisodes {
		return "episodes"
	}
	return "movies"
}

// Root is one library directory to scan
type Root struct {
	Category string
	Path     string
	Mode     Mode
}

// Stats summarises a scan
type Stats struct {
	Roots      int
	Missing    int // roots that do not exist
	Files      int // video files visited
	Keys       int // distinct keys produced
	Skipped    int // video files that yielded no key
	Unreadable int // directories that could not be listed
}

func (s *Stats) add(o Stats) {
	s.Roots += o.Roots
	s.Missing += o.Missing
	s.Files += o.Files
	s.Skipped += o.Skipped
	s.Unreadable += o.Unreadable
}

// RootsFromConfig expands the configured library categories into roots
func RootsFromConfig(cfg *config.Config) []Root {
	var roots []Root
	for _, cat := range cfg.LibraryCategories() {
		mode := ModeMovies
		if cat.Episodic {
			mode = ModeEpisodes
		}
		for _, p := range cat.Paths {
			roots = append(roots, Root{Category: cat.Name, Path: p, Mode: mode})
		}
	}
	return roots
}

// Scanner derives library keys. It holds no per-scan state, so one Scanner
// may scan many roots concurrently.
type Scanner struct {
	logger    *slog.Logger
	tvMarkers []string
}

// New creates a scanner. extraTVMarkers are additional folder names (such as
// the configured output TV folder) that force episode parsing.
func New(logger *slog.Logger, extraTVMarkers ...string) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	markers := append([]string{}, defaultTVMarkers...)
	for _, m := range extraTVMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}
	return &Scanner{
		logger:    logger.With("component", "scanner"),
		tvMarkers: markers,
	}
}

// Scan walks one root following symlinks. A missing root is a warning and
// yields an empty set. Only cancellation returns an error.
func (s *Scanner) Scan(ctx context.Context, root Root) (KeySet, Stats, error) {
	keys := make(KeySet)
	stats := Stats{Roots: 1}

	info, err := os.Stat(root.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("library root does not exist, skipping", "path", root.Path, "category", root.Category)
		} else {
			s.logger.Warn("library root not accessible, skipping", "path", root.Path, "error", err)
		}
		stats.Missing++
		return keys, stats, nil
	}
	if !info.IsDir() {
		s.logger.Warn("library root is not a directory, skipping", "path", root.Path)
		stats.Missing++
		return keys, stats, nil
	}

	w := &walker{
		scanner: s,
		root:    root,
		keys:    keys,
		stats:   &stats,
		visited: make(map[string]bool),
	}
	if err := w.walkDir(ctx, root.Path); err != nil {
		return nil, stats, err
	}

	stats.Keys = keys.Len()
	s.logger.Info("scanned library root",
		"path", root.Path,
		"category", root.Category,
		"mode", root.Mode.String(),
		"files", stats.Files,
		"keys", stats.Keys,
		"skipped", stats.Skipped)
	return keys, stats, nil
}

// walker is the state of one Scan call
type walker struct {
	scanner *Scanner
	root    Root
	keys    KeySet
	stats   *Stats
	visited map[string]bool // real paths of directories already walked
}

func (w *walker) walkDir(ctx context.Context, dir string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Symlinked directories can form cycles; walk each real directory once
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		realDir = dir
	}
	if w.visited[realDir] {
		return nil
	}
	w.visited[realDir] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.stats.Unreadable++
		w.scanner.logger.Warn("cannot read directory", "path", dir, "error", err)
		return nil
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				w.scanner.logger.Debug("skipping broken symlink", "path", path, "error", err)
				continue
			}
			isDir = target.IsDir()
		}

		if isDir {
			if err := w.walkDir(ctx, path); err != nil {
				return err
			}
			continue
		}

		if !isVideoFile(path) {
			continue
		}
		w.stats.Files++
		w.addFile(path)
	}

	return nil
}

func (w *walker) addFile(path string) {
	episodic := w.root.Mode == ModeEpisodes || hasTVSegment(path, w.scanner.tvMarkers)

	if episodic {
		key, ok := episodeKey(path)
		if !ok {
			w.stats.Skipped++
			w.scanner.logger.Debug("no episode marker, skipping", "path", path)
			return
		}
		w.keys.Add(key)
		return
	}

	keys := movieKeys(path)
	if len(keys) == 0 {
		w.stats.Skipped++
		w.scanner.logger.Debug("no usable title, skipping", "path", path)
		return
	}
	for _, k := range keys {
		w.keys.Add(k)
	}
}

// errorf wraps scan failures with the root they belong to
func errorf(root Root, err error) error {
	return fmt.Errorf("scan %s (%s): %w", root.Path, root.Category, err)
}
