package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all strmsync configuration
type Config struct {
	DryRun   bool   `toml:"dry_run"`
	StateDir string `toml:"state_dir"`

	Playlist  PlaylistConfig `toml:"playlist"`
	Output    OutputConfig   `toml:"output"`
	Libraries LibraryConfig  `toml:"libraries"`
	Keywords  KeywordConfig  `toml:"keywords"`
	Ignore    IgnoreConfig   `toml:"ignore"`
	Workers   WorkerConfig   `toml:"workers"`
	Cache     CacheConfig    `toml:"cache"`
	TMDB      TMDBConfig     `toml:"tmdb"`
	Cleanup   CleanupConfig  `toml:"cleanup"`
	Daemon    DaemonConfig   `toml:"daemon"`
	Logging   LoggingConfig  `toml:"logging"`
}

// PlaylistConfig points at the M3U source, a file path or an http(s) URL
type PlaylistConfig struct {
	Source         string `toml:"source"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// OutputConfig defines the generated pointer tree
type OutputConfig struct {
	Dir                 string `toml:"dir"`
	MoviesFolder        string `toml:"movies_folder"`
	TVFolder            string `toml:"tv_folder"`
	DocumentariesFolder string `toml:"documentaries_folder"`
}

// LibraryConfig defines media library paths per category
type LibraryConfig struct {
	Movies        LibraryPaths `toml:"movies"`
	TV            LibraryPaths `toml:"tv"`
	Documentaries LibraryPaths `toml:"documentaries"`
	Animation     LibraryPaths `toml:"animation"`
	Standup       LibraryPaths `toml:"standup"`
}

// LibraryPaths holds the paths of one library category
type LibraryPaths struct {
	Paths []string `toml:"paths"`
}

// LibraryCategory is a named library category with its paths
type LibraryCategory struct {
	Name     string
	Paths    []string
	Episodic bool // scanned for episode markers rather than movie titles
}

// KeywordConfig lists group-label substrings per kind, checked TV first
type KeywordConfig struct {
	TV          []string `toml:"tv"`
	Documentary []string `toml:"documentary"`
	Movie       []string `toml:"movie"`
}

// IgnoreConfig lists title substrings that are never materialized, per kind
type IgnoreConfig struct {
	Movie       []string `toml:"movie"`
	Show        []string `toml:"show"`
	Documentary []string `toml:"documentary"`
}

// WorkerConfig bounds the scan and reconcile pools
type WorkerConfig struct {
	Max int `toml:"max"`
}

// CacheConfig locates the persisted caches; empty means inside state_dir
type CacheConfig struct {
	PlaylistFile string `toml:"playlist_file"`
	LibraryFile  string `toml:"library_file"`
}

// TMDBConfig configures the genre lookup. Lookups are disabled without a key.
type TMDBConfig struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// CleanupConfig controls the convergence passes
type CleanupConfig struct {
	Enabled        bool     `toml:"enabled"`
	MaxRemovals    int      `toml:"max_removals"` // 0 means unlimited
	ProtectedPaths []string `toml:"protected_paths"`
}

// DaemonConfig holds daemon scheduling settings
type DaemonConfig struct {
	ScanFrequency       string `toml:"scan_frequency"` // hourly, daily, weekly
	StartupDelaySeconds int    `toml:"startup_delay_seconds"`
	ReportRetentionDays int    `toml:"report_retention_days"` // 0 keeps reports forever
	Notify              bool   `toml:"notify"`                // open the report in kitty after a run that changed the tree
}

// LoggingConfig selects log level, format and optional file
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console or json
	File   string `toml:"file"`
}

const (
	defaultTMDBBaseURL = "https://api.themoviedb.org/3"
	envTMDBKey         = "TMDB_API_KEY"
)

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		StateDir: defaultStateDir(),
		Playlist: PlaylistConfig{
			TimeoutSeconds: 60,
		},
		Output: OutputConfig{
			MoviesFolder:        "Movies",
			TVFolder:            "TV Shows",
			DocumentariesFolder: "Documentaries",
		},
		Libraries: LibraryConfig{
			Movies:        LibraryPaths{Paths: []string{}},
			TV:            LibraryPaths{Paths: []string{}},
			Documentaries: LibraryPaths{Paths: []string{}},
			Animation:     LibraryPaths{Paths: []string{}},
			Standup:       LibraryPaths{Paths: []string{}},
		},
		Keywords: KeywordConfig{
			TV:          []string{"tv", "series", "shows"},
			Documentary: []string{"documentar", "docu"},
			Movie:       []string{"movie", "film", "vod"},
		},
		Ignore: IgnoreConfig{
			Movie:       []string{},
			Show:        []string{},
			Documentary: []string{},
		},
		Workers: WorkerConfig{
			Max: 5,
		},
		TMDB: TMDBConfig{
			BaseURL:        defaultTMDBBaseURL,
			Language:       "en-US",
			TimeoutSeconds: 10,
		},
		Cleanup: CleanupConfig{
			Enabled:        true,
			ProtectedPaths: []string{},
		},
		Daemon: DaemonConfig{
			ScanFrequency:       "daily",
			StartupDelaySeconds: 30,
			ReportRetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "strmsync")
	}
	return filepath.Join(home, ".local", "share", "strmsync")
}

// ConfigPath returns the path to the default config file
func ConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}

	return filepath.Join(configDir, "strmsync", "config.toml"), nil
}

// Load reads the default config file, creating it with defaults if it doesn't exist
func Load() (*Config, error) {
	configFile, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configFile)
}

// LoadFrom reads the config at path, creating it with defaults if it doesn't
// exist. Secrets from a .env file next to the config (or in the working
// directory) and TMDB_API_KEY are applied afterwards.
func LoadFrom(path string) (*Config, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := DefaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := SaveTo(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")
	cfg.applyEnv()
	cfg.expandPaths()

	return cfg, nil
}

// loadDotEnv loads the first readable .env file. godotenv never overrides
// variables already present in the environment.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
}

func (c *Config) applyEnv() {
	if c.TMDB.APIKey == "" {
		c.TMDB.APIKey = strings.TrimSpace(os.Getenv(envTMDBKey))
	}
}

func (c *Config) expandPaths() {
	c.StateDir = expandHome(c.StateDir)
	c.Output.Dir = expandHome(c.Output.Dir)
	c.Cache.PlaylistFile = expandHome(c.Cache.PlaylistFile)
	c.Cache.LibraryFile = expandHome(c.Cache.LibraryFile)
	c.Logging.File = expandHome(c.Logging.File)
	if !strings.Contains(c.Playlist.Source, "://") {
		c.Playlist.Source = expandHome(c.Playlist.Source)
	}
	for _, lib := range []*LibraryPaths{&c.Libraries.Movies, &c.Libraries.TV, &c.Libraries.Documentaries, &c.Libraries.Animation, &c.Libraries.Standup} {
		for i, p := range lib.Paths {
			lib.Paths[i] = expandHome(p)
		}
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Save writes the config to the default location
func Save(cfg *Config) error {
	configFile, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, configFile)
}

// SaveTo writes the config to path
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	// The API key stays in the environment or .env, never in the TOML file
	out := *cfg
	out.TMDB.APIKey = ""

	if err := toml.NewEncoder(f).Encode(out); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Playlist.Source) == "" {
		return fmt.Errorf("playlist.source is required")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir is required")
	}
	if strings.TrimSpace(c.StateDir) == "" {
		return fmt.Errorf("state_dir is required")
	}

	folders := []string{c.Output.MoviesFolder, c.Output.TVFolder, c.Output.DocumentariesFolder}
	seen := make(map[string]bool)
	for _, f := range folders {
		if f == "" || strings.ContainsRune(f, filepath.Separator) {
			return fmt.Errorf("invalid output folder name: %q", f)
		}
		if seen[f] {
			return fmt.Errorf("output folder names must be distinct: %q", f)
		}
		seen[f] = true
	}

	if _, err := c.ScanInterval(); err != nil {
		return err
	}

	if c.Workers.Max < 1 {
		return fmt.Errorf("workers.max must be at least 1, got %d", c.Workers.Max)
	}
	if c.Cleanup.MaxRemovals < 0 {
		return fmt.Errorf("cleanup.max_removals must not be negative, got %d", c.Cleanup.MaxRemovals)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logging format: %s (must be console or json)", c.Logging.Format)
	}

	return nil
}

// ScanInterval converts daemon.scan_frequency to a duration
func (c *Config) ScanInterval() (time.Duration, error) {
	switch c.Daemon.ScanFrequency {
	case "hourly":
		return time.Hour, nil
	case "daily":
		return 24 * time.Hour, nil
	case "weekly":
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid scan frequency: %s (must be hourly, daily, or weekly)", c.Daemon.ScanFrequency)
	}
}

// MoviesDir is the output root for movie pointers
func (c *Config) MoviesDir() string {
	return filepath.Join(c.Output.Dir, c.Output.MoviesFolder)
}

// TVDir is the output root for episode pointers
func (c *Config) TVDir() string {
	return filepath.Join(c.Output.Dir, c.Output.TVFolder)
}

// DocumentariesDir is the output root for documentary pointers
func (c *Config) DocumentariesDir() string {
	return filepath.Join(c.Output.Dir, c.Output.DocumentariesFolder)
}

// OutputRoots returns the three output roots
func (c *Config) OutputRoots() []string {
	return []string{c.MoviesDir(), c.TVDir(), c.DocumentariesDir()}
}

// PlaylistCachePath returns the playlist cache file location
func (c *Config) PlaylistCachePath() string {
	if c.Cache.PlaylistFile != "" {
		return c.Cache.PlaylistFile
	}
	return filepath.Join(c.StateDir, "playlist_cache.json")
}

// LibraryCachePath returns the library key cache file location
func (c *Config) LibraryCachePath() string {
	if c.Cache.LibraryFile != "" {
		return c.Cache.LibraryFile
	}
	return filepath.Join(c.StateDir, "library_cache.json")
}

// ReportsDir returns where run reports are written
func (c *Config) ReportsDir() string {
	return filepath.Join(c.StateDir, "reports")
}

// LockPath returns the run lock file
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, "strmsync.lock")
}

// OperationLogPath returns the append-only cleanup operation log
func (c *Config) OperationLogPath() string {
	return filepath.Join(c.StateDir, "operations.log")
}

// PlaylistTimeout returns the playlist fetch timeout
func (c *Config) PlaylistTimeout() time.Duration {
	if c.Playlist.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Playlist.TimeoutSeconds) * time.Second
}

// TMDBTimeout returns the per-call genre lookup timeout
func (c *Config) TMDBTimeout() time.Duration {
	if c.TMDB.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TMDB.TimeoutSeconds) * time.Second
}

// LibraryCategories returns every library category in a fixed order.
// tv and animation are scanned for episodes.
func (c *Config) LibraryCategories() []LibraryCategory {
	return []LibraryCategory{
		{Name: "movies", Paths: c.Libraries.Movies.Paths},
		{Name: "tv", Paths: c.Libraries.TV.Paths, Episodic: true},
		{Name: "documentaries", Paths: c.Libraries.Documentaries.Paths},
		{Name: "animation", Paths: c.Libraries.Animation.Paths, Episodic: true},
		{Name: "standup", Paths: c.Libraries.Standup.Paths},
	}
}

// GetAllPaths returns all configured library paths
func (c *Config) GetAllPaths() []string {
	var all []string
	for _, cat := range c.LibraryCategories() {
		all = append(all, cat.Paths...)
	}
	return all
}

func (c *Config) libraryByName(category string) (*LibraryPaths, error) {
	switch category {
	case "movies":
		return &c.Libraries.Movies, nil
	case "tv":
		return &c.Libraries.TV, nil
	case "documentaries", "docs":
		return &c.Libraries.Documentaries, nil
	case "animation":
		return &c.Libraries.Animation, nil
	case "standup":
		return &c.Libraries.Standup, nil
	default:
		return nil, fmt.Errorf("unknown library category: %s", category)
	}
}

// AddLibraryPath adds a path to a library category
func (c *Config) AddLibraryPath(category, path string) error {
	lib, err := c.libraryByName(category)
	if err != nil {
		return err
	}

	// Check if path exists
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Check if already exists
	for _, existing := range lib.Paths {
		if existing == path {
			return fmt.Errorf("path already configured: %s", path)
		}
	}

	lib.Paths = append(lib.Paths, path)
	return nil
}

// RemoveLibraryPath removes a path from a library category
func (c *Config) RemoveLibraryPath(category, path string) error {
	lib, err := c.libraryByName(category)
	if err != nil {
		return err
	}

	for i, existing := range lib.Paths {
		if existing == path {
			lib.Paths = append(lib.Paths[:i], lib.Paths[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("path not found: %s", path)
}
