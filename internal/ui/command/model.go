package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Rayus223/admin3/internal/theme"
)

// Name identifies a palette command.
type Name string

const (
	Read     Name = "read"
	Refresh  Name = "refresh"
	Complete Name = "complete"
	Delete   Name = "delete"
	Sound    Name = "sound"
	Settings Name = "settings"
	Quit     Name = "quit"
)

// Command is a parsed palette entry.
type Command struct {
	Name Name
	Arg  string
}

// CommandMsg is emitted when the user executes a valid command.
type CommandMsg Command

// ErrorMsg is emitted when the typed command cannot be parsed.
type ErrorMsg struct{ Err error }

var aliases = map[string]Name{
	"read":     Read,
	"r":        Read,
	"refresh":  Refresh,
	"complete": Complete,
	"done":     Complete,
	"delete":   Delete,
	"rm":       Delete,
	"sound":    Sound,
	"settings": Settings,
	"config":   Settings,
	"quit":     Quit,
	"q":        Quit,
}

// Parse turns palette input into a Command. complete and delete need a
// call id; sound takes "on" or "off".
func Parse(input string) (Command, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	name, ok := aliases[strings.ToLower(fields[0])]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	args := fields[1:]

	switch name {
	case Complete, Delete:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: %s <call-id>", name)
		}
		return Command{Name: name, Arg: args[0]}, nil
	case Sound:
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return Command{}, fmt.Errorf("usage: sound on|off")
		}
		return Command{Name: name, Arg: args[0]}, nil
	default:
		if len(args) != 0 {
			return Command{}, fmt.Errorf("%s takes no arguments", name)
		}
		return Command{Name: name}, nil
	}
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "read | refresh | complete <id> | delete <id> | sound on|off | settings | quit"
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEnter {
		raw := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if raw == "" {
			return m, nil
		}
		cmd, err := Parse(raw)
		if err != nil {
			return m, func() tea.Msg { return ErrorMsg{Err: err} }
		}
		return m, func() tea.Msg { return CommandMsg(cmd) }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Command")

	content := lipgloss.JoinVertical(lipgloss.Left, title, m.input.View())

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
