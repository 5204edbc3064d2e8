package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/daemon"
	"github.com/Nomadcxx/strmsync/internal/logging"
)

const version = "0.1.0-dev"

func main() {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "strmsyncd",
		Short:         "Run strmsync on a schedule",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), cfgFile)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/strmsync/config.toml)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "strmsyncd: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if strings.TrimSpace(path) != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// logPath is the daemon log file, logging.file or daemon.log in the state dir
func logPath(cfg *config.Config) string {
	if cfg.Logging.File != "" {
		return cfg.Logging.File
	}
	return filepath.Join(cfg.StateDir, "daemon.log")
}

func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   logPath(cfg),
		Quiet:  true,
	})
}

func createTicker(cfg *config.Config) (*time.Ticker, error) {
	interval, err := cfg.ScanInterval()
	if err != nil {
		return nil, err
	}
	return time.NewTicker(interval), nil
}

func runDaemon(ctx context.Context, cfgFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	logger = logger.With("component", "strmsyncd")

	logger.Info("strmsyncd starting",
		"version", version,
		"frequency", cfg.Daemon.ScanFrequency,
		"playlist", cfg.Playlist.Source,
		"output", cfg.Output.Dir)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	ticker, err := createTicker(cfg)
	if err != nil {
		return err
	}
	defer ticker.Stop()

	// Initial sync after the startup delay to avoid boot load
	delay := time.Duration(cfg.Daemon.StartupDelaySeconds) * time.Second
	startup := time.NewTimer(delay)
	defer startup.Stop()
	logger.Info("daemon initialized, waiting for scheduled syncs", "startup_delay", delay)

	var running chan struct{}
	trigger := func(reason string) {
		if running != nil {
			select {
			case <-running:
			default:
				logger.Info("sync still running, skipping", "trigger", reason)
				return
			}
		}
		done := make(chan struct{})
		running = done
		runCfg := cfg
		go func() {
			defer close(done)
			logger.Info("starting sync", "trigger", reason)
			performSync(ctx, runCfg, logger)
		}()
	}

	for {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("received SIGHUP, reloading configuration")
				newCfg, err := loadConfig(cfgFile)
				if err != nil {
					logger.Error("failed to reload config, keeping the current one", "error", err)
					continue
				}
				newTicker, err := createTicker(newCfg)
				if err != nil {
					logger.Error("new configuration invalid", "error", err)
					continue
				}
				cfg = newCfg
				ticker.Stop()
				ticker = newTicker
				logger.Info("configuration reloaded", "frequency", cfg.Daemon.ScanFrequency)

			case syscall.SIGINT, syscall.SIGTERM:
				logger.Info("received shutdown signal, exiting", "signal", sig.String())
				cancel()
				if running != nil {
					<-running
				}
				return nil
			}

		case <-startup.C:
			trigger("startup")

		case <-ticker.C:
			trigger("schedule")

		case <-ctx.Done():
			if running != nil {
				<-running
			}
			return nil
		}
	}
}

// performSync runs one sync and opens the report for the user when the run
// changed the tree and a display is available
func performSync(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	d := daemon.New(cfg, logger)
	res, err := d.RunSync(ctx, nil)
	switch {
	case errors.Is(err, daemon.ErrLocked):
		logger.Info("another run holds the lock, skipping this sync")
		return
	case errors.Is(err, context.Canceled):
		logger.Warn("sync cancelled", "report", res.ReportPath)
		return
	case err != nil:
		logger.Error("sync failed", "error", err)
		if res.ReportPath == "" {
			return
		}
	}

	if !cfg.Daemon.Notify || !res.Changed() || res.ReportPath == "" {
		return
	}
	if d.IsHeadless() {
		logger.Info("headless session, report not opened", "report", res.ReportPath)
		return
	}
	if err := daemon.NotifyUser(res.ReportPath); err != nil {
		logger.Warn("failed to open report", "error", err)
	}
}
