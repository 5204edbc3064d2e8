package ui

import (
	"context"
	"fmt"
	"strings"

	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Nomadcxx/strmsync/internal/progress"
	"github.com/Nomadcxx/strmsync/internal/reporter"
)

// RunFunc performs a run, reporting progress on pr
type RunFunc func(ctx context.Context, pr *progress.Reporter) (reporter.Report, error)

// Custom messages for progress updates
type eventMsg progress.Event

type runDoneMsg struct {
	report reporter.Report
	err    error
}

const maxRunLog = 200

// RunModel shows live progress of a run and switches to the report viewer
// when the run produced a report
type RunModel struct {
	title string
	run   RunFunc

	ctx    context.Context
	cancel context.CancelFunc
	events chan progress.Event
	done   chan runDoneMsg

	spinner spinner.Model
	bar     progressbar.Model

	stage      progress.Stage
	message    string
	current    int
	total      int
	elapsed    int
	log        []string
	cancelling bool
	err        error

	width  int
	height int
}

// NewRunModel creates a progress view for run
func NewRunModel(title string, run RunFunc) RunModel {
	ctx, cancel := context.WithCancel(context.Background())

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(RAMARed)

	return RunModel{
		title:   title,
		run:     run,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan progress.Event, 64),
		done:    make(chan runDoneMsg, 1),
		spinner: s,
		bar: progressbar.New(
			progressbar.WithGradient(string(RAMAFireRed), string(ColorSuccess)),
			progressbar.WithWidth(60),
		),
	}
}

// Init starts the run
func (m RunModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start(), m.wait())
}

func (m RunModel) start() tea.Cmd {
	return func() tea.Msg {
		report, err := m.run(m.ctx, progress.NewReporter(m.events))
		m.done <- runDoneMsg{report: report, err: err}
		return nil
	}
}

// wait delivers the next progress event or the run result
func (m RunModel) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return eventMsg(ev)
		case d := <-m.done:
			return d
		}
	}
}

// Update handles messages
func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.stage = msg.Stage
		m.message = msg.Message
		m.current = msg.Current
		m.total = msg.Total
		m.elapsed = msg.ElapsedSeconds
		m.appendLog(fmt.Sprintf("%02d:%02d [%s] %s", msg.ElapsedSeconds/60, msg.ElapsedSeconds%60, msg.Stage, msg.Message))
		return m, tea.Batch(m.bar.SetPercent(msg.Percentage/100.0), m.wait())

	case runDoneMsg:
		if msg.report.RunID == "" && msg.err != nil {
			m.err = msg.err
			m.appendLog("ERROR: " + msg.err.Error())
			return m, nil
		}
		viewer := NewModel(msg.report)
		if m.width == 0 {
			return viewer, nil
		}
		width, height := m.width, m.height
		return viewer, func() tea.Msg {
			return tea.WindowSizeMsg{Width: width, Height: height}
		}

	case progressbar.FrameMsg:
		model, cmd := m.bar.Update(msg)
		m.bar = model.(progressbar.Model)
		return m, cmd

	case spinner.TickMsg:
		if m.err != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.err != nil {
				return m, tea.Quit
			}
			// Keep waiting: an interrupted run still saves caches and a report
			if !m.cancelling {
				m.cancelling = true
				m.cancel()
				m.appendLog("Cancelling, finishing in-flight work...")
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(60, max(10, msg.Width-10))
		return m, nil
	}

	return m, nil
}

func (m *RunModel) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxRunLog {
		m.log = m.log[len(m.log)-maxRunLog:]
	}
}

// Err returns the error that ended the run without a report
func (m RunModel) Err() error {
	return m.err
}

// View renders the progress view
func (m RunModel) View() string {
	var sb strings.Builder

	sb.WriteString(FormatASCIIHeader() + "\n\n")
	sb.WriteString(TitleStyle.Render(strings.ToUpper(m.title)) + "\n")

	switch {
	case m.err != nil:
		sb.WriteString(FormatStatusFail(m.err.Error()) + "\n")
	case m.stage == "":
		sb.WriteString(m.spinner.View() + " " + MutedStyle.Render("Starting...") + "\n")
	default:
		sb.WriteString(m.spinner.View() + " " + InfoStyle.Render(strings.ToUpper(string(m.stage))) + " " + ContentStyle.Render(m.message) + "\n")
	}

	sb.WriteString(m.bar.View() + "\n")
	if m.total > 0 {
		sb.WriteString(MutedStyle.Render(fmt.Sprintf("%d / %d  elapsed %ds", m.current, m.total, m.elapsed)) + "\n")
	}
	sb.WriteString("\n")

	start := 0
	if len(m.log) > 10 {
		start = len(m.log) - 10
	}
	for _, line := range m.log[start:] {
		sb.WriteString(MutedStyle.Render(line) + "\n")
	}

	if m.cancelling && m.err == nil {
		sb.WriteString("\n" + WarningStyle.Render("Cancelling, the run will save its progress") + "\n")
	}

	var footer string
	if m.err != nil {
		footer = FormatFooter(FormatKeybinding("Q", "Exit"))
	} else {
		footer = FormatFooter(FormatKeybinding("Ctrl+C", "Cancel Run"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sb.String(), footer)
}
