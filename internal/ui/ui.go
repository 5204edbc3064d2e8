package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Nomadcxx/strmsync/internal/reporter"
)

// ViewMode represents the current report view
type ViewMode int

const (
	ViewSummary ViewMode = iota
	ViewFullText
	ViewErrors
)

// Model is the report viewer
type Model struct {
	report   reporter.Report
	mode     ViewMode
	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

// NewModel creates a viewer for a run report
func NewModel(report reporter.Report) Model {
	return Model{
		report: report,
		mode:   ViewSummary,
	}
}

// Init initializes the TUI
func (m Model) Init() tea.Cmd {
	return nil
}

// Mode returns the active view
func (m Model) Mode() ViewMode {
	return m.mode
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "esc":
			if m.mode != ViewSummary {
				return m.switchTo(ViewSummary), nil
			}
			return m, tea.Quit

		case "f1":
			return m.switchTo(ViewSummary), nil

		case "f2":
			return m.switchTo(ViewFullText), nil

		case "f3":
			return m.switchTo(ViewErrors), nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if !m.ready {
			// Leave room for header/footer
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.SetContent(m.content())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		return m, nil
	}

	// Handle viewport updates (scrolling)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) switchTo(mode ViewMode) Model {
	m.mode = mode
	if m.ready {
		m.viewport.SetContent(m.content())
		m.viewport.GotoTop()
	}
	return m
}

func (m Model) content() string {
	switch m.mode {
	case ViewFullText:
		return reporter.BuildText(m.report)
	case ViewErrors:
		return m.renderErrors()
	default:
		return m.renderSummary()
	}
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var header string
	switch m.mode {
	case ViewSummary:
		header = FormatHeader("STRMSYNC RUN SUMMARY")
	case ViewFullText:
		header = FormatHeader("FULL REPORT")
	case ViewErrors:
		header = FormatHeader(fmt.Sprintf("ERRORS (%d)", len(m.report.Errors)))
	}

	scrollInfo := fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100))
	footer := FormatFooter(
		FormatKeybinding("F1", "Summary"),
		FormatKeybinding("F2", "Full Report"),
		FormatKeybinding("F3", "Errors"),
		FormatKeybinding("↑↓", "Scroll"),
		FormatKeybinding("Esc", "Back/Exit"),
		MutedStyle.Render(scrollInfo),
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		m.viewport.View(),
		footer,
	)
}

// renderSummary renders the summary view
func (m Model) renderSummary() string {
	r := m.report
	var sb strings.Builder

	sb.WriteString(FormatASCIIHeader() + "\n\n")

	sb.WriteString(InfoStyle.Render("Run: ") + ContentStyle.Render(r.RunID) + "\n")
	sb.WriteString(InfoStyle.Render("Generated: ") + ContentStyle.Render(r.Timestamp.Format("2006-01-02 15:04:05")) + "\n")
	sb.WriteString(InfoStyle.Render("Duration: ") + ContentStyle.Render(r.Duration().Round(time.Millisecond).String()) + "\n")
	sb.WriteString(InfoStyle.Render("Playlist: ") + ContentStyle.Render(r.PlaylistSource) + "\n")
	sb.WriteString(InfoStyle.Render("Output: ") + ContentStyle.Render(r.OutputDir) + "\n")
	if r.DryRun {
		sb.WriteString(WarningStyle.Render("DRY RUN: nothing was written or deleted") + "\n")
	}
	if r.Interrupted {
		sb.WriteString(ErrorStyle.Render("INTERRUPTED: the run stopped early") + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString(TitleStyle.Render("LIBRARY") + "\n")
	sb.WriteString(FormatStat("Files scanned", r.Scan.Files) + "\n")
	sb.WriteString(FormatStat("Keys found this run", r.Scan.ScanKeys) + "\n")
	sb.WriteString(FormatStat("Keys known", r.Scan.CachedKeys) + "\n")
	if r.Scan.Missing > 0 {
		sb.WriteString(WarningStyle.Render(fmt.Sprintf("%d library root(s) missing", r.Scan.Missing)) + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString(TitleStyle.Render("PLAYLIST") + "\n")
	sb.WriteString(FormatStat("Entries parsed", r.Playlist.Raw) + "\n")
	sb.WriteString(FormatStat("Entries classified", r.Playlist.Classified) + "\n")
	sb.WriteString(FormatStat("Duplicates dropped", r.Playlist.Duplicates) + "\n\n")

	rc := r.Reconcile
	sb.WriteString(TitleStyle.Render("POINTERS") + "\n")
	sb.WriteString(SuccessStyle.Render(fmt.Sprintf("Created: %d", rc.Created)) + "\n")
	sb.WriteString(FormatStat("Placed as documentary", rc.Reclassified) + "\n")
	sb.WriteString(FormatStat("Legacy records upgraded", rc.Upgraded) + "\n")
	sb.WriteString(FormatStat("Skipped (unchanged)", rc.SkippedUnchanged) + "\n")
	sb.WriteString(FormatStat("Skipped (in library)", rc.SkippedInLibrary) + "\n")
	sb.WriteString(FormatStat("Skipped (ignored)", rc.SkippedIgnored) + "\n")
	sb.WriteString(FormatStat("Skipped (no key)", rc.SkippedNoKey) + "\n")
	if rc.Failed > 0 {
		sb.WriteString(ErrorStyle.Render(fmt.Sprintf("Write failures: %d", rc.Failed)) + "\n")
	}
	sb.WriteString("\n")

	cl := r.Cleanup
	sb.WriteString(TitleStyle.Render("CLEANUP") + "\n")
	sb.WriteString(FormatStat("Removed from playlist", cl.StaleRemoved) + "\n")
	sb.WriteString(FormatStat("Superseded by library", cl.SupersededRemoved) + "\n")
	sb.WriteString(FormatStat("Orphans", cl.OrphansRemoved) + "\n")
	sb.WriteString(FormatStat("Folders pruned", cl.FoldersPruned) + "\n")
	if cl.CapReached {
		sb.WriteString(WarningStyle.Render("Removal cap reached, the rest waits for the next run") + "\n")
	}

	if len(r.Errors) > 0 {
		sb.WriteString("\n" + ErrorStyle.Render(fmt.Sprintf("%d error(s), press F3 to review", len(r.Errors))) + "\n")
	}

	return sb.String()
}

// renderErrors renders the error list
func (m Model) renderErrors() string {
	if len(m.report.Errors) == 0 {
		return SuccessStyle.Render("✓ No errors") + "\n"
	}

	var sb strings.Builder
	for i, e := range m.report.Errors {
		sb.WriteString(fmt.Sprintf("%s %s\n",
			WarningStyle.Render(fmt.Sprintf("%d.", i+1)),
			ContentStyle.Render(e)))
	}
	return sb.String()
}
