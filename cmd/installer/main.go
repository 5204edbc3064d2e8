package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Nomadcxx/strmsync/internal/config"
	"github.com/Nomadcxx/strmsync/internal/daemon"
	"github.com/Nomadcxx/strmsync/internal/ui"
)

var binaries = []string{"strmsync", "strmsyncd"}

type installStep int

const (
	stepWelcome installStep = iota
	stepConfigPrompt
	stepInstalling
	stepComplete
)

type taskStatus int

const (
	statusPending taskStatus = iota
	statusRunning
	statusComplete
	statusFailed
	statusSkipped
)

type installTask struct {
	name        string
	description string
	execute     func(*model) error
	optional    bool
	status      taskStatus
}

// target holds where the installer writes. The config belongs to the
// invoking user even under sudo.
type target struct {
	binDir     string
	unitDir    string
	configPath string
	stateDir   string
	uid, gid   int // -1 keeps the current owner
}

func defaultTarget() target {
	t := target{
		binDir:  "/usr/local/bin",
		unitDir: "/etc/systemd/system",
		uid:     -1,
		gid:     -1,
	}

	home, _ := os.UserHomeDir()
	if name := os.Getenv("SUDO_USER"); name != "" {
		if u, err := user.Lookup(name); err == nil {
			home = u.HomeDir
			t.uid, _ = strconv.Atoi(u.Uid)
			t.gid, _ = strconv.Atoi(u.Gid)
		}
	}
	t.configPath = filepath.Join(home, ".config", "strmsync", "config.toml")
	t.stateDir = filepath.Join(home, ".local", "share", "strmsync")
	return t
}

type model struct {
	target             target
	step               installStep
	tasks              []installTask
	currentTaskIndex   int
	width              int
	height             int
	spinner            spinner.Model
	errors             []string
	uninstallMode      bool
	selectedOption     int  // 0 = Install, 1 = Uninstall
	overrideConfig     bool // replace an existing config (after a backup)
	configPromptOption int  // 0 = Override, 1 = Keep existing
	binariesExist      bool
}

type taskCompleteMsg struct {
	index   int
	success bool
	error   string
}

func newModel(t target) model {
	s := spinner.New()
	s.Style = lipgloss.NewStyle().Foreground(ui.RAMAFireRed)
	s.Spinner = spinner.Dot

	return model{
		target:           t,
		step:             stepWelcome,
		currentTaskIndex: -1,
		spinner:          s,
		binariesExist:    binariesInstalled(t.binDir),
	}
}

// binariesInstalled reports whether every strmsync binary is in dir
func binariesInstalled(dir string) bool {
	for _, name := range binaries {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.step != stepInstalling {
				return m, tea.Quit
			}
		case "up", "k":
			if m.step == stepWelcome && m.selectedOption > 0 {
				m.selectedOption--
			}
			if m.step == stepConfigPrompt && m.configPromptOption > 0 {
				m.configPromptOption--
			}
		case "down", "j":
			if m.step == stepWelcome && m.selectedOption < 1 {
				m.selectedOption++
			}
			if m.step == stepConfigPrompt && m.configPromptOption < 1 {
				m.configPromptOption++
			}
		case "enter":
			switch m.step {
			case stepWelcome:
				m.uninstallMode = m.selectedOption == 1
				if !m.uninstallMode {
					if _, err := os.Stat(m.target.configPath); err == nil {
						m.step = stepConfigPrompt
						m.configPromptOption = 1
						return m, nil
					}
				}
				return m.begin()
			case stepConfigPrompt:
				m.overrideConfig = m.configPromptOption == 0
				return m.begin()
			case stepComplete:
				return m, tea.Quit
			}
		}

	case taskCompleteMsg:
		task := &m.tasks[msg.index]
		if msg.success {
			task.status = statusComplete
		} else if task.optional {
			task.status = statusSkipped
			m.errors = append(m.errors, fmt.Sprintf("%s (skipped): %s", task.name, msg.error))
		} else {
			task.status = statusFailed
			m.errors = append(m.errors, fmt.Sprintf("%s: %s", task.name, msg.error))
			m.step = stepComplete
			return m, nil
		}

		m.currentTaskIndex++
		if m.currentTaskIndex >= len(m.tasks) {
			m.step = stepComplete
			return m, nil
		}
		m.tasks[m.currentTaskIndex].status = statusRunning
		return m, executeTask(m.currentTaskIndex, &m)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// begin starts the first task
func (m model) begin() (tea.Model, tea.Cmd) {
	m.initTasks()
	m.step = stepInstalling
	m.currentTaskIndex = 0
	m.tasks[0].status = statusRunning
	return m, tea.Batch(m.spinner.Tick, executeTask(0, &m))
}

func (m *model) initTasks() {
	if m.uninstallMode {
		m.tasks = []installTask{
			{name: "Check privileges", description: "Checking root access", execute: checkPrivileges},
			{name: "Stop timer", description: "Stopping strmsync.timer", execute: stopServices, optional: true},
			{name: "Remove binaries", description: "Removing strmsync binaries", execute: removeBinaries},
			{name: "Remove systemd units", description: "Removing service and timer", execute: removeSystemdFiles},
		}
		return
	}
	m.tasks = []installTask{
		{name: "Check privileges", description: "Checking root access", execute: checkPrivileges},
		{name: "Build binaries", description: "Building strmsync and strmsyncd", execute: buildBinaries},
		{name: "Install binaries", description: "Installing to " + m.target.binDir, execute: installBinaries},
		{name: "Create config", description: "Writing the default configuration", execute: createConfig},
		{name: "Install systemd units", description: "Installing service and timer", execute: installSystemdFiles},
		{name: "Reload systemd", description: "Running systemctl daemon-reload", execute: reloadSystemd, optional: true},
	}
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var content strings.Builder

	title := "strmsync installer"
	if m.uninstallMode {
		title = "strmsync uninstaller"
	}
	content.WriteString(ui.FormatASCIIHeaderWithSubtext(title))
	content.WriteString("\n\n")

	var mainContent string
	switch m.step {
	case stepWelcome:
		mainContent = m.renderWelcome()
	case stepConfigPrompt:
		mainContent = m.renderConfigPrompt()
	case stepInstalling:
		mainContent = m.renderInstalling()
	case stepComplete:
		mainContent = m.renderComplete()
	}

	mainStyle := lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ui.RAMARed).
		Width(max(m.width-4, 0))
	content.WriteString(mainStyle.Render(mainContent))
	content.WriteString("\n")

	if help := m.getHelpText(); help != "" {
		content.WriteString("\n" + ui.MutedStyle.Italic(true).Render(help))
	}

	return lipgloss.NewStyle().
		Foreground(ui.RAMAForeground).
		Width(m.width).
		Height(m.height).
		Render(content.String())
}

func option(selected bool, label, desc string) string {
	prefix := "  "
	if selected {
		prefix = lipgloss.NewStyle().Foreground(ui.RAMARed).Render("▸ ")
	}
	return prefix + label + "\n    " + ui.MutedStyle.Render(desc) + "\n\n"
}

func (m model) renderWelcome() string {
	var b strings.Builder

	if m.binariesExist {
		b.WriteString(ui.FormatStatusOK("strmsync is already installed in " + m.target.binDir))
		b.WriteString("\n\n")
	}

	b.WriteString("Select an option:\n\n")
	b.WriteString(option(m.selectedOption == 0, "Install strmsync", "Builds the binaries and installs the systemd timer"))
	b.WriteString(option(m.selectedOption == 1, "Uninstall strmsync", "Removes the binaries and units, keeps config and state"))
	b.WriteString(ui.MutedStyle.Render("Requires root privileges"))

	return b.String()
}

func (m model) renderConfigPrompt() string {
	var b strings.Builder

	b.WriteString(ui.WarningStyle.Render("Existing configuration detected"))
	b.WriteString("\n\n")
	b.WriteString("A strmsync configuration already exists at:\n")
	b.WriteString(ui.MutedStyle.Render(m.target.configPath))
	b.WriteString("\n\n")
	b.WriteString(option(m.configPromptOption == 0, "Override with the default configuration", "The current file is copied to config.toml.backup"))
	b.WriteString(option(m.configPromptOption == 1, "Keep existing configuration", "Your current settings are preserved"))
	b.WriteString(ui.MutedStyle.Render("Binaries are updated either way"))

	return b.String()
}

func (m model) renderInstalling() string {
	var b strings.Builder

	for i, task := range m.tasks {
		switch task.status {
		case statusPending:
			b.WriteString(ui.MutedStyle.Render("  " + task.name))
		case statusRunning:
			b.WriteString(m.spinner.View() + " " + ui.InfoStyle.Render(task.description))
		case statusComplete:
			b.WriteString(ui.FormatStatusOK(task.name))
		case statusFailed:
			b.WriteString(ui.FormatStatusFail(task.name))
		case statusSkipped:
			b.WriteString(ui.FormatStatusWarn(task.name))
		}
		if i < len(m.tasks)-1 {
			b.WriteString("\n")
		}
	}

	if len(m.errors) > 0 {
		b.WriteString("\n\n")
		for _, err := range m.errors {
			b.WriteString(ui.WarningStyle.Render(err) + "\n")
		}
	}

	return b.String()
}

func (m model) failed() bool {
	for _, task := range m.tasks {
		if task.status == statusFailed {
			return true
		}
	}
	return false
}

func (m model) renderComplete() string {
	var b strings.Builder

	b.WriteString(m.renderInstalling())
	b.WriteString("\n\n")

	switch {
	case m.failed() && m.uninstallMode:
		b.WriteString(ui.ErrorStyle.Render("Uninstallation failed"))
	case m.failed():
		b.WriteString(ui.ErrorStyle.Render("Installation failed"))
	case m.uninstallMode:
		b.WriteString(ui.SuccessStyle.Render("Uninstallation complete"))
		b.WriteString("\n")
		b.WriteString(ui.MutedStyle.Render("Configuration and pointer tree preserved"))
	default:
		b.WriteString(ui.SuccessStyle.Render("Installation complete"))
		b.WriteString("\n\n")
		b.WriteString(ui.InfoStyle.Render("Next steps:") + "\n")
		b.WriteString("  Edit " + m.target.configPath + " (playlist.source, output.dir)\n")
		b.WriteString("  strmsync config check\n")
		b.WriteString("  sudo systemctl enable --now strmsync.timer\n")
		b.WriteString(ui.MutedStyle.Render("  strmsync              interactive menu") + "\n")
		b.WriteString(ui.MutedStyle.Render("  strmsync run --tui    sync now with live progress"))
	}

	b.WriteString("\n\nPress Enter to exit")
	return b.String()
}

func (m model) getHelpText() string {
	switch m.step {
	case stepWelcome, stepConfigPrompt:
		return "↑/↓: Navigate  •  Enter: Continue  •  Q/Ctrl+C: Quit"
	case stepComplete:
		return "Enter: Exit  •  Q/Ctrl+C: Quit"
	default:
		return "Installation in progress..."
	}
}

func executeTask(index int, m *model) tea.Cmd {
	task := m.tasks[index]
	snapshot := *m
	return func() tea.Msg {
		if err := task.execute(&snapshot); err != nil {
			return taskCompleteMsg{index: index, error: err.Error()}
		}
		return taskCompleteMsg{index: index, success: true}
	}
}

func checkPrivileges(m *model) error {
	if os.Geteuid() != 0 {
		return errors.New("installer must be run with sudo or as root")
	}
	return nil
}

func buildBinaries(m *model) error {
	for _, name := range binaries {
		cmd := exec.Command("go", "build", "-buildvcs=false", "-o", name, "./cmd/"+name+"/")
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to build %s: %s", name, strings.TrimSpace(string(output)))
		}
	}
	return nil
}

func installBinaries(m *model) error {
	for _, name := range binaries {
		dst := filepath.Join(m.target.binDir, name)
		if err := exec.Command("install", "-Dm755", name, dst).Run(); err != nil {
			return fmt.Errorf("failed to install %s: %w", name, err)
		}
	}
	return nil
}

// createConfig writes the default config unless one exists and is kept.
// An overridden config is backed up first.
func createConfig(m *model) error {
	path := m.target.configPath
	if _, err := os.Stat(path); err == nil {
		if !m.overrideConfig {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config: %w", err)
		}
		if err := os.WriteFile(path+".backup", data, 0644); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.StateDir = m.target.stateDir
	if err := config.SaveTo(cfg, path); err != nil {
		return err
	}

	if m.target.uid >= 0 {
		for _, p := range []string{filepath.Dir(path), path} {
			if err := os.Chown(p, m.target.uid, m.target.gid); err != nil {
				return fmt.Errorf("failed to set owner of %s: %w", p, err)
			}
		}
	}
	return nil
}

func installSystemdFiles(m *model) error {
	cfg, err := config.LoadFrom(m.target.configPath)
	if err != nil {
		return err
	}
	units, err := daemon.GenerateSystemdUnits(cfg.Daemon.ScanFrequency, filepath.Join(m.target.binDir, "strmsync"), m.target.configPath)
	if err != nil {
		return err
	}
	_, err = daemon.InstallSystemdUnits(m.target.unitDir, units)
	return err
}

func reloadSystemd(m *model) error {
	return exec.Command("systemctl", "daemon-reload").Run()
}

func stopServices(m *model) error {
	if err := exec.Command("systemctl", "disable", "--now", "strmsync.timer").Run(); err != nil {
		return fmt.Errorf("failed to stop strmsync.timer: %w", err)
	}
	return nil
}

func removeBinaries(m *model) error {
	for _, name := range binaries {
		path := filepath.Join(m.target.binDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

func removeSystemdFiles(m *model) error {
	for _, name := range []string{"strmsync.service", "strmsync.timer"} {
		path := filepath.Join(m.target.unitDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	// Best effort, the units are already gone
	_ = exec.Command("systemctl", "daemon-reload").Run()
	return nil
}

func main() {
	if _, err := exec.LookPath("go"); err != nil {
		fmt.Println("Error: Go is not installed or not in PATH")
		fmt.Println("Please install Go from https://go.dev/dl/")
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(defaultTarget()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
