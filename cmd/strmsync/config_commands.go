package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/daemon"
	"github.com/Nomadcxx/strmsync/internal/scanner"
	"github.com/Nomadcxx/strmsync/internal/ui"
)

func newConfigCommand(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit the configuration",
	}

	configCmd.AddCommand(newConfigShowCommand(a))
	configCmd.AddCommand(newConfigCheckCommand(a))
	configCmd.AddCommand(newConfigAddPathCommand(a))
	configCmd.AddCommand(newConfigRemovePathCommand(a))
	configCmd.AddCommand(newConfigTimerCommand(a))

	return configCmd
}

// configPath is where config edits are saved
func (a *app) configPath() (string, error) {
	if path := strings.TrimSpace(a.cfgFile); path != "" {
		return path, nil
	}
	return config.ConfigPath()
}

func newConfigShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show configuration file location and contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configPath()
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration file: %s\n\n", path)
			fmt.Fprintf(out, "Playlist:  %s\n", cfg.Playlist.Source)
			fmt.Fprintf(out, "Output:    %s\n", cfg.Output.Dir)
			fmt.Fprintf(out, "State dir: %s\n", cfg.StateDir)
			if cfg.DryRun {
				fmt.Fprintln(out, "Dry run:   enabled")
			}

			for _, cat := range cfg.LibraryCategories() {
				fmt.Fprintf(out, "\n%s libraries (%d):\n", titleCase(cat.Name), len(cat.Paths))
				for _, p := range cat.Paths {
					fmt.Fprintf(out, "  - %s\n", p)
				}
			}

			fmt.Fprintf(out, "\nDaemon settings:\n")
			fmt.Fprintf(out, "  Sync frequency:   %s\n", cfg.Daemon.ScanFrequency)
			fmt.Fprintf(out, "  Report retention: %d days\n", cfg.Daemon.ReportRetentionDays)
			fmt.Fprintf(out, "  Cleanup:          %t (max removals %d)\n", cfg.Cleanup.Enabled, cfg.Cleanup.MaxRemovals)
			if cfg.TMDB.APIKey == "" {
				fmt.Fprintln(out, "  TMDB:             no API key, genre lookup disabled")
			} else {
				fmt.Fprintln(out, "  TMDB:             API key set")
			}
			return nil
		},
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func newConfigCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and check every configured path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(out, ui.FormatStatusFail(err.Error()))
				return fmt.Errorf("invalid config: %w", err)
			}
			fmt.Fprintln(out, ui.FormatStatusOK("Configuration valid"))

			failed := false
			for _, root := range cfg.OutputRoots() {
				if err := scanner.ValidatePathDepth(root, "write pointers"); err != nil {
					fmt.Fprintln(out, ui.FormatStatusFail(err.Error()))
					failed = true
				}
			}

			if paths := cfg.GetAllPaths(); len(paths) == 0 {
				fmt.Fprintln(out, ui.FormatStatusWarn("No library paths configured; every playlist title will get a pointer"))
			} else {
				report, _ := scanner.ValidateRoots(paths, false)
				printValidation(out, report)
			}

			if cfg.TMDB.APIKey == "" {
				fmt.Fprintln(out, ui.FormatStatusInfo("No TMDB API key; documentary placement uses group labels only"))
			}

			if failed {
				return fmt.Errorf("output paths rejected")
			}
			return nil
		},
	}
}

// printValidation lists the result of every library root. Missing roots are
// warnings since a run skips them.
func printValidation(out io.Writer, report *scanner.ValidationReport) {
	for _, r := range report.Results {
		if r.Accessible {
			fmt.Fprintln(out, ui.FormatStatusOK(fmt.Sprintf("%s (%d video files)", r.Path, r.VideoCount)))
			continue
		}
		fmt.Fprintln(out, ui.FormatStatusWarn(fmt.Sprintf("%s: %v", r.Path, r.Error)))
	}
	for _, w := range report.Warnings {
		fmt.Fprintln(out, ui.FormatStatusInfo(w))
	}
}

func newConfigAddPathCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add-path <category> <path>",
		Short: "Add a library path (movies, tv, documentaries, animation, standup)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			return a.editLibraries(cmd, func(cfg *config.Config) error {
				return cfg.AddLibraryPath(args[0], path)
			}, fmt.Sprintf("Added %s to %s", path, args[0]))
		},
	}
}

func newConfigRemovePathCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-path <category> <path>",
		Short: "Remove a library path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editLibraries(cmd, func(cfg *config.Config) error {
				return cfg.RemoveLibraryPath(args[0], args[1])
			}, fmt.Sprintf("Removed %s from %s", args[1], args[0]))
		},
	}
}

func (a *app) editLibraries(cmd *cobra.Command, edit func(*config.Config) error, done string) error {
	path, err := a.configPath()
	if err != nil {
		return err
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := edit(cfg); err != nil {
		return err
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.FormatStatusOK(done))
	return nil
}

func newConfigTimerCommand(a *app) *cobra.Command {
	var (
		install bool
		dir     string
	)

	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Print (or install) a systemd timer running `strmsync run` at the configured frequency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			bin, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locate strmsync binary: %w", err)
			}
			units, err := daemon.GenerateSystemdUnits(cfg.Daemon.ScanFrequency, bin, strings.TrimSpace(a.cfgFile))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !install {
				fmt.Fprintf(out, "# strmsync.service\n%s\n# strmsync.timer\n%s", units.Service, units.Timer)
				return nil
			}

			if dir == "" {
				configDir, err := os.UserConfigDir()
				if err != nil {
					return err
				}
				dir = filepath.Join(configDir, "systemd", "user")
			}
			written, err := daemon.InstallSystemdUnits(dir, units)
			if err != nil {
				return err
			}
			for _, p := range written {
				fmt.Fprintln(out, ui.FormatStatusOK("Wrote "+p))
			}
			fmt.Fprintln(out, "Enable it with: systemctl --user daemon-reload && systemctl --user enable --now strmsync.timer")
			return nil
		},
	}

	cmd.Flags().BoolVar(&install, "install", false, "write the unit files instead of printing them")
	cmd.Flags().StringVar(&dir, "dir", "", "unit directory (default is $XDG_CONFIG_HOME/systemd/user)")
	return cmd
}
