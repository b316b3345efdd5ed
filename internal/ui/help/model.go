package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/Rayus223/admin3/internal/keys"
	"github.com/Rayus223/admin3/internal/theme"
)

// Model is the help overlay: key bindings plus a few lines describing
// the running session.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	info   []string
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	h.Width = width - 4
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// SetInfo replaces the session lines shown below the shortcuts.
func (m *Model) SetInfo(lines ...string) {
	m.info = lines
}

// View renders the help overlay.
func (m Model) View() string {
	heading := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections := []string{
		heading.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
	}
	if len(m.info) > 0 {
		sections = append(sections,
			"",
			heading.Render("Session"),
			theme.HelpStyle.Render(strings.Join(m.info, "\n")),
		)
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
