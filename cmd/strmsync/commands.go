package main

import (
	"errors"
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Nomadcxx/strmsync/internal/daemon"
	"github.com/Nomadcxx/strmsync/internal/reporter"
	"github.com/Nomadcxx/strmsync/internal/ui"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		dryRun bool
		useTUI bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync the pointer tree with the playlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadValidConfig()
			if err != nil {
				return err
			}
			if dryRun {
				cfg.DryRun = true
			}

			if useTUI {
				logger, err := newLogger(cfg, true)
				if err != nil {
					return err
				}
				title := "Run Sync"
				if cfg.DryRun {
					title = "Dry Run"
				}
				model := ui.NewRunModel(title, syncRunner(cfg, logger)(cfg.DryRun))
				final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
				if err != nil {
					return fmt.Errorf("run TUI: %w", err)
				}
				if rm, ok := final.(ui.RunModel); ok {
					return rm.Err()
				}
				return nil
			}

			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			res, err := daemon.New(cfg, logger).RunSync(ctx, nil)
			if res.Report.RunID != "" {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, reporter.SummaryTable(res.Report))
				if res.Report.DryRun {
					fmt.Fprintln(out, "Dry run: nothing was written or deleted.")
				}
				if res.ReportPath != "" {
					fmt.Fprintf(out, "Report saved to:\n  %s\n", res.ReportPath)
					fmt.Fprintf(out, "View it with: strmsync view %s\n", res.ReportPath)
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change without writing or deleting")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show live progress and the report in the TUI")
	return cmd
}

func newScanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Refresh the library key cache without touching the pointer tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadValidConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			summary, err := daemon.New(cfg, logger).ScanLibraries(ctx, nil)
			if err != nil {
				return err
			}

			n := strconv.Itoa
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Library", "Count"}, [][]string{
				{"Roots scanned", n(summary.Roots)},
				{"Roots missing", n(summary.Missing)},
				{"Video files", n(summary.Files)},
				{"Entries skipped", n(summary.Skipped)},
				{"Keys found", n(summary.ScanKeys)},
				{"Keys cached", n(summary.CachedKeys)},
			}))
			return nil
		},
	}
}

func newCleanCommand(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale, superseded and orphaned pointers without creating new ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadValidConfig()
			if err != nil {
				return err
			}
			if dryRun {
				cfg.DryRun = true
			}
			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			result, err := daemon.New(cfg, logger).Clean(ctx, nil)
			n := strconv.Itoa
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Cleanup", "Count"}, [][]string{
				{"Removed from playlist", n(result.StaleRemoved)},
				{"Superseded by library", n(result.SupersededRemoved)},
				{"Orphans", n(result.OrphansRemoved)},
				{"Folders pruned", n(result.FoldersPruned)},
				{"Errors", n(len(result.Errors))},
			}))
			if result.CapReached {
				fmt.Fprintln(out, "Removal cap reached; the rest waits for the next run.")
			}
			if result.DryRun {
				fmt.Fprintln(out, "Dry run: nothing was deleted.")
			}
			if err != nil {
				return err
			}
			return errors.Join(result.Errors...)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be deleted without deleting")
	return cmd
}

func newViewCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "view [report-file]",
		Short: "View a run report in the TUI (latest when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.reportPath(args)
			if err != nil {
				return err
			}
			report, err := reporter.Load(path)
			if err != nil {
				return fmt.Errorf("load report: %w", err)
			}

			if !isTerminal() {
				fmt.Fprint(cmd.OutOrStdout(), reporter.BuildText(report))
				return nil
			}
			if _, err := tea.NewProgram(ui.NewModel(report), tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("run TUI: %w", err)
			}
			return nil
		},
	}
}

// reportPath resolves the report argument, defaulting to the newest report
func (a *app) reportPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return "", err
	}
	return reporter.Latest(cfg.ReportsDir())
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "strmsync %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
		},
	}
}

func renderTable(headers []string, rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = v
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}
