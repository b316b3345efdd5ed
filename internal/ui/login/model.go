package login

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/Rayus223/admin3/internal/theme"
)

// SaveFunc persists the entered token.
type SaveFunc func(token string) error

// Model prompts for the API token and saves it when the form completes.
type Model struct {
	form    *huh.Form
	token   string
	apiURL  string
	save    SaveFunc
	saved   bool
	aborted bool
	err     error
	width   int
}

// New creates a login form for the API at apiURL.
func New(apiURL string, save SaveFunc) *Model {
	m := &Model{apiURL: apiURL, save: save, width: 60}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API token").
				Description("Bearer token for " + m.apiURL).
				EchoMode(huh.EchoModePassword).
				Value(&m.token).
				Validate(validateToken),
		),
	).WithWidth(m.width)
}

func validateToken(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("token is required")
	}
	if strings.ContainsAny(s, " \t") {
		return errors.New("token must not contain spaces")
	}
	return nil
}

// Init starts the form.
func (m *Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update drives the form and saves the token once it completes.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyCtrlC {
		m.aborted = true
		return m, tea.Quit
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.err = m.save(strings.TrimSpace(m.token))
		m.saved = m.err == nil
		return m, tea.Quit
	case huh.StateAborted:
		m.aborted = true
		return m, tea.Quit
	}
	return m, cmd
}

// View renders the form.
func (m *Model) View() string {
	if m.saved {
		return lipgloss.NewStyle().Foreground(theme.ColorGreen).Render("Token saved.") + "\n"
	}
	title := theme.HeaderStyle.Render("admin3 login")
	return lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View())
}

// Result reports whether the token was saved, and the save error if any.
// An aborted form returns false and a nil error.
func (m *Model) Result() (bool, error) {
	return m.saved, m.err
}
