package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/Rayus223/admin3/internal/keys"
	"github.com/Rayus223/admin3/internal/model"
	"github.com/Rayus223/admin3/internal/theme"
)

// ConfigMode represents the current state of the settings view.
type ConfigMode int

const (
	ModeSummary ConfigMode = iota // Show the effective settings
	ModeForm                      // Editing
)

// ConfigDoneMsg signals the settings view should close.
type ConfigDoneMsg struct{}

// ConfigSavedMsg carries the configuration that was written to disk.
type ConfigSavedMsg struct {
	Config *model.AppConfig
}

type configSavedInternalMsg struct {
	cfg *model.AppConfig
	err error
}

// Model is the settings view: a summary of the running configuration
// and a form that writes changes back to the config file.
type Model struct {
	mode ConfigMode
	path string
	cfg  *model.AppConfig
	form *huh.Form

	// Form field values (huh binds to these)
	formRealtimeURL    string
	formReconnectDelay string
	formAPIURL         string
	formPollInterval   string
	formMax            string
	formSoundEnabled   bool
	formSoundCommand   string

	statusMsg string

	keys          *keys.KeyMap
	width, height int
}

// New creates a settings view for cfg, saving to path.
func New(path string, cfg *model.AppConfig, k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:   ModeSummary,
		path:   path,
		cfg:    cfg,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetConfig replaces the configuration shown in the summary, e.g. after
// a hot reload.
func (m *Model) SetConfig(cfg *model.AppConfig) {
	m.cfg = cfg
}

// Editing reports whether the form is open.
func (m Model) Editing() bool {
	return m.mode == ModeForm
}

// Update handles messages for the settings view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case configSavedInternalMsg:
		m.mode = ModeSummary
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error saving settings: %v", msg.err)
			return m, nil
		}
		m.cfg = msg.cfg
		m.statusMsg = "Settings saved. Connection changes apply after restart."
		return m, func() tea.Msg { return ConfigSavedMsg{Config: msg.cfg} }

	case tea.KeyMsg:
		if m.mode == ModeSummary {
			switch {
			case key.Matches(msg, m.keys.Settings), msg.Type == tea.KeyEnter:
				m.mode = ModeForm
				m.statusMsg = ""
				m.fillForm()
				m.form = m.buildForm()
				return m, m.form.Init()
			case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Quit):
				return m, func() tea.Msg { return ConfigDoneMsg{} }
			}
			return m, nil
		}
	}

	if m.mode == ModeForm && m.form != nil {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m *Model) fillForm() {
	m.formRealtimeURL = m.cfg.Realtime.URL
	m.formReconnectDelay = m.cfg.Realtime.ReconnectDelay.String()
	m.formAPIURL = m.cfg.API.BaseURL
	m.formPollInterval = m.cfg.API.PollInterval.String()
	m.formMax = strconv.Itoa(m.cfg.Notifications.Max)
	m.formSoundEnabled = m.cfg.Sound.Enabled
	m.formSoundCommand = m.cfg.Sound.Command
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Live updates URL").
				Value(&m.formRealtimeURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Reconnect delay").
				Description("e.g. 5s").
				Value(&m.formReconnectDelay).
				Validate(validatePositiveDuration),
			huh.NewInput().
				Title("Scheduled calls API URL").
				Value(&m.formAPIURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Overdue scan interval").
				Description("0s scans only on startup and refresh").
				Value(&m.formPollInterval).
				Validate(validateDuration),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Notifications kept").
				Value(&m.formMax).
				Validate(validateCapacity),
			huh.NewConfirm().
				Title("Play a sound for new notifications?").
				Value(&m.formSoundEnabled),
			huh.NewInput().
				Title("Sound command").
				Description("Empty rings the terminal bell").
				Value(&m.formSoundCommand),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, m.keys.Back) {
		m.mode = ModeSummary
		return m, nil
	}

	f, cmd := m.form.Update(msg)
	if ff, ok := f.(*huh.Form); ok {
		m.form = ff
	}

	switch m.form.State {
	case huh.StateCompleted:
		cfg, err := m.applyForm()
		if err != nil {
			m.mode = ModeSummary
			m.statusMsg = err.Error()
			return m, nil
		}
		return m, m.save(cfg)
	case huh.StateAborted:
		m.mode = ModeSummary
		return m, nil
	}
	return m, cmd
}

// applyForm builds a validated copy of the configuration from the form.
func (m Model) applyForm() (*model.AppConfig, error) {
	cfg := *m.cfg
	cfg.Realtime.URL = strings.TrimSpace(m.formRealtimeURL)
	cfg.API.BaseURL = strings.TrimSpace(m.formAPIURL)
	cfg.Sound.Enabled = m.formSoundEnabled
	cfg.Sound.Command = strings.TrimSpace(m.formSoundCommand)

	var err error
	if cfg.Realtime.ReconnectDelay, err = time.ParseDuration(strings.TrimSpace(m.formReconnectDelay)); err != nil {
		return nil, fmt.Errorf("reconnect delay: %w", err)
	}
	if cfg.API.PollInterval, err = time.ParseDuration(strings.TrimSpace(m.formPollInterval)); err != nil {
		return nil, fmt.Errorf("scan interval: %w", err)
	}
	if cfg.Notifications.Max, err = strconv.Atoi(strings.TrimSpace(m.formMax)); err != nil {
		return nil, fmt.Errorf("notifications kept: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &cfg, nil
}

func (m Model) save(cfg *model.AppConfig) tea.Cmd {
	path := m.path
	return func() tea.Msg {
		return configSavedInternalMsg{cfg: cfg, err: model.SaveConfig(path, cfg)}
	}
}

// --- View ---

// View renders the settings view based on the current mode.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	if m.mode == ModeForm && m.form != nil {
		return style.Render(m.form.View())
	}
	return style.Render(m.viewSummary())
}

func (m Model) viewSummary() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	sound := "off"
	if m.cfg.Sound.Enabled {
		sound = "on"
		if m.cfg.Sound.Command != "" {
			sound += " (" + m.cfg.Sound.Command + ")"
		}
	}
	rows := [][2]string{
		{"Live updates", m.cfg.Realtime.URL},
		{"Reconnect delay", m.cfg.Realtime.ReconnectDelay.String()},
		{"Scheduled calls", m.cfg.API.BaseURL},
		{"Scan interval", m.cfg.API.PollInterval.String()},
		{"Notifications kept", strconv.Itoa(m.cfg.Notifications.Max)},
		{"Sound", sound},
		{"Store", m.cfg.Store.DSN},
		{"Config file", m.path},
	}
	label := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(20)
	for _, r := range rows {
		b.WriteString(label.Render(r[0]) + r[1] + "\n")
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true).
			Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render("e edit | esc back"))
	return b.String()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

// --- Validators ---

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., wss://example.com)")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not a duration (e.g. 30s, 5m)")
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validatePositiveDuration(s string) error {
	if err := validateDuration(s); err != nil {
		return err
	}
	if d, _ := time.ParseDuration(strings.TrimSpace(s)); d == 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateCapacity(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 1 || n > 100 {
		return fmt.Errorf("must be between 1 and 100")
	}
	return nil
}
