package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/Nomadcxx/strmsync/internal/logging"
)

// PlaylistCache maps classified titles to the pointer they produced. It has a
// single owner during a run and is not safe for concurrent use.
type PlaylistCache struct {
	path    string
	logger  *slog.Logger
	entries map[string]Record

	// ReadOnly turns Save into a no-op (dry runs)
	ReadOnly bool
}

// NewPlaylistCache returns an empty in-memory cache that saves to path
func NewPlaylistCache(path string, logger *slog.Logger) *PlaylistCache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PlaylistCache{
		path:    path,
		logger:  logger.With("component", "cache"),
		entries: make(map[string]Record),
	}
}

// LoadPlaylistCache reads the cache at path. A missing or empty file is an
// empty cache. Values that are neither records nor bare URLs are kept as
// they are and logged. A file that is not a JSON object is an error.
func LoadPlaylistCache(path string, infer KindInferrer, logger *slog.Logger) (*PlaylistCache, error) {
	c := NewPlaylistCache(path, logger)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("no playlist cache found, starting empty", "path", path)
			return c, nil
		}
		return nil, fmt.Errorf("read playlist cache: %w", err)
	}
	if len(data) == 0 {
		return c, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse playlist cache %s: %w", path, err)
	}

	var legacy, unknown int
	for title, value := range raw {
		rec, err := decodeRecord(value, infer)
		if err != nil {
			unknown++
			c.logger.Warn("unrecognised playlist cache value, leaving untouched", "title", title, "error", err)
		} else if rec.Variant == VariantLegacy {
			legacy++
		}
		c.entries[title] = rec
	}

	c.logger.Debug("loaded playlist cache",
		"path", path,
		"entries", len(c.entries),
		"legacy", legacy,
		"unknown", unknown)
	return c, nil
}

// Get returns the record for title
func (c *PlaylistCache) Get(title string) (Record, bool) {
	rec, ok := c.entries[title]
	return rec, ok
}

// Set stores a record for title
func (c *PlaylistCache) Set(title string, rec Record) {
	c.entries[title] = rec
}

// Delete drops title
func (c *PlaylistCache) Delete(title string) {
	delete(c.entries, title)
}

// Len returns the number of records
func (c *PlaylistCache) Len() int {
	return len(c.entries)
}

// Titles returns every cached title in lexical order, so passes that delete
// while iterating see a stable sequence.
func (c *PlaylistCache) Titles() []string {
	titles := make([]string, 0, len(c.entries))
	for t := range c.entries {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles
}

// Path returns the backing file
func (c *PlaylistCache) Path() string {
	return c.path
}

// Save writes the cache atomically. Legacy and unknown values are written
// back in their original shape.
func (c *PlaylistCache) Save() error {
	if c.ReadOnly || c.path == "" {
		return nil
	}

	out := make(map[string]json.RawMessage, len(c.entries))
	for title, rec := range c.entries {
		value, err := rec.encode()
		if err != nil {
			return fmt.Errorf("encode %q: %w", title, err)
		}
		out[title] = value
	}

	// encoding/json sorts map keys, so output is deterministic
	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal playlist cache: %w", err)
	}

	if err := writeFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("persist playlist cache: %w", err)
	}

	c.logger.Debug("saved playlist cache", "path", c.path, "entries", len(c.entries))
	return nil
}

// writeFileAtomic writes via a temp file and rename
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
