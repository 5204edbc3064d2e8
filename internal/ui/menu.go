package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/reporter"
)

// MenuItem represents a menu option
type MenuItem struct {
	title string
	desc  string
}

func (i MenuItem) Title() string       { return i.title }
func (i MenuItem) Description() string { return i.desc }
func (i MenuItem) FilterValue() string { return i.title }

// Runner builds the run behind "Run Sync" and "Dry Run"
type Runner func(dryRun bool) RunFunc

// Menu entries
const (
	itemRunSync    = "Run Sync"
	itemDryRun     = "Dry Run"
	itemLastReport = "View Last Report"
	itemFrequency  = "Configure Frequency"
	itemExit       = "Exit"
)

// MenuModel represents the main menu TUI
type MenuModel struct {
	list       list.Model
	config     *config.Config
	configPath string
	runner     Runner
	width      int
	height     int
	status     string
	showStatus bool // Show config status popup
}

// newList builds a list with RAMA theme styling
func newList(title string, items []list.Item) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = lipgloss.NewStyle().
		Foreground(RAMABackground).
		Background(RAMARed).
		Bold(true)
	delegate.Styles.SelectedDesc = lipgloss.NewStyle().
		Foreground(RAMABackground).
		Background(RAMAFireRed)
	delegate.Styles.NormalTitle = lipgloss.NewStyle().
		Foreground(RAMAForeground)
	delegate.Styles.NormalDesc = lipgloss.NewStyle().
		Foreground(RAMAMuted)

	l := list.New(items, delegate, 0, 0)
	l.Title = title
	l.Styles.Title = TitleStyle
	return l
}

// listHeight leaves room for the ASCII header (6), spacing and footer
func listHeight(height int) int {
	h := height - 14
	if h < 8 {
		h = 8
	}
	return h
}

// NewMenuModel creates the main menu. configPath is where frequency changes
// are saved; empty means the default location.
func NewMenuModel(cfg *config.Config, configPath string, runner Runner) MenuModel {
	items := []list.Item{
		MenuItem{title: itemRunSync, desc: "Sync the pointer tree with the playlist now"},
		MenuItem{title: itemDryRun, desc: "Show what a sync would change without touching anything"},
		MenuItem{title: itemLastReport, desc: "View the most recent run report"},
		MenuItem{title: itemFrequency, desc: "Set the daemon sync frequency (hourly/daily/weekly)"},
		MenuItem{title: itemExit, desc: "Quit strmsync"},
	}

	return MenuModel{
		list:       newList("STRMSYNC MAIN MENU", items),
		config:     cfg,
		configPath: configPath,
		runner:     runner,
	}
}

// Init initializes the menu
func (m MenuModel) Init() tea.Cmd {
	return nil
}

// Update handles menu messages
func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "i", "s":
			// Toggle status popup with 'i' (info) or 's' (status)
			m.showStatus = !m.showStatus
			return m, nil

		case "esc":
			if m.showStatus {
				m.showStatus = false
				return m, nil
			}

		case "enter":
			selected, ok := m.list.SelectedItem().(MenuItem)
			if !ok {
				return m, nil
			}
			return m.handleSelection(selected.title)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, listHeight(msg.Height))
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSelection processes menu selections
func (m MenuModel) handleSelection(title string) (tea.Model, tea.Cmd) {
	switch title {
	case itemRunSync, itemDryRun:
		dryRun := title == itemDryRun
		runModel := NewRunModel(title, m.runner(dryRun))
		runModel.width = m.width
		runModel.height = m.height
		return runModel, runModel.Init()

	case itemLastReport:
		path, err := reporter.Latest(m.config.ReportsDir())
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		report, err := reporter.Load(path)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		return m.sized(NewModel(report))

	case itemFrequency:
		freqModel := NewFrequencyMenuModel(m)
		freqModel.list.SetSize(m.width-4, listHeight(m.height))
		return freqModel, nil

	case itemExit:
		return m, tea.Quit
	}

	return m, nil
}

// sized hands the current window size to the next model
func (m MenuModel) sized(next tea.Model) (tea.Model, tea.Cmd) {
	if m.width == 0 {
		return next, nil
	}
	width, height := m.width, m.height
	return next, func() tea.Msg {
		return tea.WindowSizeMsg{Width: width, Height: height}
	}
}

// Status returns the last message shown under the menu
func (m MenuModel) Status() string {
	return m.status
}

// View renders the menu
func (m MenuModel) View() string {
	var content strings.Builder

	content.WriteString(FormatASCIIHeaderWithSubtext("playlist to pointer tree sync"))
	content.WriteString("\n\n")
	content.WriteString(m.list.View())
	content.WriteString("\n\n")

	if m.status != "" {
		content.WriteString(FormatStatusInfo(m.status) + "\n")
	}

	// Footer help text
	footer := MutedStyle.Render("↑/↓: Navigate  •  Enter: Select  •  I/S: Status  •  Q/Ctrl+C: Quit")
	content.WriteString(footer)

	mainStyle := lipgloss.NewStyle().
		Padding(1, 2).
		Width(max(m.width-4, 0))

	mainView := mainStyle.Render(content.String())

	if m.showStatus {
		return m.renderWithStatusPopup(mainView)
	}
	return mainView
}

// renderWithStatusPopup overlays the configuration status on the main view
func (m MenuModel) renderWithStatusPopup(baseView string) string {
	var popup strings.Builder
	cfg := m.config

	popup.WriteString(TitleStyle.Render("CONFIGURATION STATUS") + "\n\n")

	popup.WriteString(InfoStyle.Render("Playlist: ") + ContentStyle.Render(cfg.Playlist.Source) + "\n")
	popup.WriteString(InfoStyle.Render("Output: ") + ContentStyle.Render(cfg.Output.Dir) + "\n\n")

	popup.WriteString(InfoStyle.Render("Libraries:") + "\n")
	for _, cat := range cfg.LibraryCategories() {
		popup.WriteString(fmt.Sprintf("  %s paths: %s\n", cat.Name, StatStyle.Render(fmt.Sprintf("%d", len(cat.Paths)))))
	}
	popup.WriteString("\n")

	popup.WriteString(InfoStyle.Render("Daemon:") + "\n")
	popup.WriteString(fmt.Sprintf("  Sync frequency: %s\n", SuccessStyle.Render(cfg.Daemon.ScanFrequency)))
	cleanup := "enabled"
	if !cfg.Cleanup.Enabled {
		cleanup = "disabled"
	}
	popup.WriteString(fmt.Sprintf("  Cleanup: %s\n", SuccessStyle.Render(cleanup)))
	if cfg.TMDB.APIKey == "" {
		popup.WriteString("  " + FormatStatusWarn("no TMDB key, genre lookup disabled") + "\n")
	}

	popupStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(RAMARed).
		Background(RAMABackground).
		Padding(2, 4)

	popupBox := popupStyle.Render(popup.String())

	closeHelp := MutedStyle.Render("Press I/S or Esc to close")
	popupWithHelp := popupBox + "\n" + lipgloss.NewStyle().Align(lipgloss.Center).Width(lipgloss.Width(popupBox)).Render(closeHelp)

	if m.width == 0 || m.height == 0 {
		return baseView + "\n" + popupWithHelp
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, popupWithHelp)
}

// FrequencyMenuModel handles sync frequency configuration
type FrequencyMenuModel struct {
	list   list.Model
	parent MenuModel
}

// NewFrequencyMenuModel creates frequency selection menu
func NewFrequencyMenuModel(parent MenuModel) FrequencyMenuModel {
	items := []list.Item{
		MenuItem{title: "Hourly", desc: "Sync every hour"},
		MenuItem{title: "Daily", desc: "Sync once a day"},
		MenuItem{title: "Weekly", desc: "Sync once a week"},
		MenuItem{title: "Back", desc: "Return to main menu"},
	}

	return FrequencyMenuModel{
		list:   newList("SET SYNC FREQUENCY", items),
		parent: parent,
	}
}

func (m FrequencyMenuModel) Init() tea.Cmd {
	return nil
}

func (m FrequencyMenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m.parent, nil

		case "enter":
			selected, ok := m.list.SelectedItem().(MenuItem)
			if !ok {
				return m, nil
			}
			return m.apply(strings.ToLower(selected.title))
		}

	case tea.WindowSizeMsg:
		m.parent.width = msg.Width
		m.parent.height = msg.Height
		m.list.SetSize(msg.Width-4, listHeight(msg.Height))
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// apply stores the chosen frequency and returns to the main menu
func (m FrequencyMenuModel) apply(freq string) (tea.Model, tea.Cmd) {
	parent := m.parent
	if freq == "back" {
		return parent, nil
	}

	previous := parent.config.Daemon.ScanFrequency
	parent.config.Daemon.ScanFrequency = freq

	var err error
	if parent.configPath != "" {
		err = config.SaveTo(parent.config, parent.configPath)
	} else {
		err = config.Save(parent.config)
	}
	if err != nil {
		parent.config.Daemon.ScanFrequency = previous
		parent.status = fmt.Sprintf("Failed to save frequency: %v", err)
		return parent, nil
	}

	parent.status = fmt.Sprintf("Sync frequency set to %s (reload strmsyncd to apply)", freq)
	return parent, nil
}

func (m FrequencyMenuModel) View() string {
	var content strings.Builder
	content.WriteString(FormatASCIIHeader())
	content.WriteString("\n\n")
	content.WriteString(m.list.View())
	content.WriteString("\n\n")

	footer := MutedStyle.Render("↑/↓: Navigate  •  Enter: Select  •  Esc: Back  •  Q/Ctrl+C: Quit")
	content.WriteString(footer)

	mainStyle := lipgloss.NewStyle().
		Padding(1, 2).
		Width(max(m.parent.width-4, 0))

	return mainStyle.Render(content.String())
}
