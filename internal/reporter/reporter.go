// Package reporter persists a summary of every sync run as JSON and text.
package reporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Nomadcxx/strmsync/internal/cleaner"
	"github.com/Nomadcxx/strmsync/internal/playlist"
	"github.com/Nomadcxx/strmsync/internal/reconcile"
)

const timestampLayout = "20060102_150405"

// ScanSummary describes the library side of a run
type ScanSummary struct {
	Roots      int `json:"roots"`
	Missing    int `json:"missing"`
	Files      int `json:"files"`
	Skipped    int `json:"skipped"`
	ScanKeys   int `json:"scan_keys"`   // keys found this run
	CachedKeys int `json:"cached_keys"` // keys in the library cache after union
}

// Report represents one sync run
type Report struct {
	RunID          string    `json:"run_id"`
	Timestamp      time.Time `json:"timestamp"`
	DurationMillis int64     `json:"duration_ms"`
	DryRun         bool      `json:"dry_run"`
	Interrupted    bool      `json:"interrupted"`

	PlaylistSource string   `json:"playlist_source"`
	OutputDir      string   `json:"output_dir"`
	LibraryPaths   []string `json:"library_paths"`

	Scan      ScanSummary         `json:"scan"`
	Playlist  playlist.Stats      `json:"playlist"`
	Reconcile reconcile.Result    `json:"reconcile"`
	Cleanup   cleaner.CleanResult `json:"cleanup"`

	Errors []string `json:"errors,omitempty"`
}

// Duration returns the run duration
func (r Report) Duration() time.Duration {
	return time.Duration(r.DurationMillis) * time.Millisecond
}

// AddError records a non-fatal problem
func (r *Report) AddError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

// Generate folds cleanup errors into report.Errors, writes
// <dir>/<timestamp>.json and <dir>/<timestamp>.txt and returns both paths
func Generate(report *Report, dir string) (string, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create report directory: %w", err)
	}

	for _, err := range report.Cleanup.Errors {
		report.AddError(err)
	}
	report.Cleanup.Errors = nil

	base := filepath.Join(dir, report.Timestamp.Format(timestampLayout))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode report: %w", err)
	}
	jsonPath := base + ".json"
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write report: %w", err)
	}

	txtPath := base + ".txt"
	if err := os.WriteFile(txtPath, []byte(BuildText(*report)), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write report: %w", err)
	}

	return jsonPath, txtPath, nil
}

// Load reads a JSON report
func Load(path string) (Report, error) {
	var report Report
	data, err := os.ReadFile(path)
	if err != nil {
		return report, fmt.Errorf("failed to read report: %w", err)
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return report, nil
}

// List returns the JSON reports in dir, newest first
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	// Timestamped names sort chronologically
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

// Latest returns the newest JSON report in dir
func Latest(dir string) (string, error) {
	paths, err := List(dir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("no reports found in %s", dir)
	}
	return paths[0], nil
}

// BuildText generates the human readable report
func BuildText(report Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("STRMSYNC RUN REPORT\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("Run: %s\n", report.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n", report.Timestamp.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("Duration: %s\n", report.Duration().Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Playlist: %s\n", report.PlaylistSource))
	sb.WriteString(fmt.Sprintf("Output: %s\n", report.OutputDir))
	sb.WriteString(fmt.Sprintf("Library Paths: %s\n", strings.Join(report.LibraryPaths, ", ")))
	if report.DryRun {
		sb.WriteString("Mode: DRY RUN (nothing was written or deleted)\n")
	}
	if report.Interrupted {
		sb.WriteString("Status: INTERRUPTED (partial run)\n")
	}
	sb.WriteString("\n")

	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(SummaryTable(report))
	sb.WriteString("\n\n")

	if len(report.Errors) > 0 {
		sb.WriteString("ERRORS\n")
		sb.WriteString(strings.Repeat("=", 80) + "\n")
		for i, e := range report.Errors {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, e))
		}
	}

	return sb.String()
}

// Rows returns the summary as label/value pairs in display order
func Rows(report Report) [][]string {
	rc := report.Reconcile
	cl := report.Cleanup
	n := strconv.Itoa

	return [][]string{
		{"Library files scanned", n(report.Scan.Files)},
		{"Library keys (this run / cached)", n(report.Scan.ScanKeys) + " / " + n(report.Scan.CachedKeys)},
		{"Library roots missing", n(report.Scan.Missing)},
		{"Playlist entries parsed", n(report.Playlist.Raw)},
		{"Entries classified", n(report.Playlist.Classified)},
		{"Dropped (no URL / no title / duplicate)", n(report.Playlist.NoURL) + " / " + n(report.Playlist.NoTitle) + " / " + n(report.Playlist.Duplicates)},
		{"Pointers created", n(rc.Created)},
		{"Placed as documentary by genre", n(rc.Reclassified)},
		{"Skipped: unchanged", n(rc.SkippedUnchanged)},
		{"Skipped: in library", n(rc.SkippedInLibrary)},
		{"Skipped: ignored", n(rc.SkippedIgnored)},
		{"Skipped: no key", n(rc.SkippedNoKey)},
		{"Skipped: unreadable cache value", n(rc.SkippedCorrupt)},
		{"Legacy records upgraded", n(rc.Upgraded)},
		{"Write failures", n(rc.Failed)},
		{"Deleted: removed from playlist", n(cl.StaleRemoved)},
		{"Deleted: superseded by library", n(cl.SupersededRemoved)},
		{"Deleted: orphans", n(cl.OrphansRemoved)},
		{"Folders pruned", n(cl.FoldersPruned)},
		{"Errors", n(len(report.Errors))},
	}
}

// SummaryTable renders Rows as a table
func SummaryTable(report Report) string {
	return renderTable([]string{"Metric", "Count"}, Rows(report))
}

func renderTable(headers []string, rows [][]string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	// Counts are right aligned
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: columns, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}
