package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/daemon"
	"github.com/Nomadcxx/strmsync/internal/logging"
	"github.com/Nomadcxx/strmsync/internal/progress"
	"github.com/Nomadcxx/strmsync/internal/reporter"
	"github.com/Nomadcxx/strmsync/internal/ui"
)

// Version information (set via -ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Run cancelled by user")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the persistent flags shared by every command
type app struct {
	cfgFile  string
	logLevel string
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "strmsync",
		Short:         "Keep a .strm pointer tree in sync with an IPTV playlist",
		Long:          getLongDescription(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runMenu,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/strmsync/config.toml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newScanCommand(a))
	rootCmd.AddCommand(newCleanCommand(a))
	rootCmd.AddCommand(newViewCommand(a))
	rootCmd.AddCommand(newConfigCommand(a))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func getLongDescription() string {
	return ui.FormatASCIIHeader() + "\n\n" +
		"strmsync mirrors the VOD entries of an M3U playlist as .strm pointer files\n" +
		"that Jellyfin or Plex can index, skipping titles already in your libraries\n" +
		"and removing pointers the playlist no longer carries."
}

// loadConfig reads the config from --config or the default location
func (a *app) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := strings.TrimSpace(a.cfgFile); path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	return cfg, nil
}

// loadValidConfig loads the config and rejects it when a run could not use it
func (a *app) loadValidConfig() (*config.Config, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the run logger. quiet keeps stdout free for the TUI.
func newLogger(cfg *config.Config, quiet bool) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Quiet:  quiet,
	})
}

// signalContext is cancelled on the first SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(cmd.Context())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nCancelling, saving progress...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// runMenu opens the interactive menu, or prints help without a terminal
func (a *app) runMenu(cmd *cobra.Command, args []string) error {
	if !isTerminal() {
		return cmd.Help()
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}

	model := ui.NewMenuModel(cfg, a.cfgFile, syncRunner(cfg, logger))
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}

// syncRunner builds the menu's sync runs on a copy of cfg so a dry run
// never leaks into the next real one
func syncRunner(cfg *config.Config, logger *slog.Logger) ui.Runner {
	return func(dryRun bool) ui.RunFunc {
		return func(ctx context.Context, pr *progress.Reporter) (reporter.Report, error) {
			if err := cfg.Validate(); err != nil {
				return reporter.Report{}, fmt.Errorf("invalid config: %w", err)
			}
			runCfg := *cfg
			runCfg.DryRun = cfg.DryRun || dryRun
			res, err := daemon.New(&runCfg, logger).RunSync(ctx, pr)
			return res.Report, err
		}
	}
}
