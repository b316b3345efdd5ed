package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rayus223/admin3/internal/keys"
	"github.com/Rayus223/admin3/internal/notify"
	"github.com/Rayus223/admin3/internal/realtime"
	appsync "github.com/Rayus223/admin3/internal/sync"
	"github.com/Rayus223/admin3/internal/theme"
	"github.com/Rayus223/admin3/internal/ui"
	"github.com/Rayus223/admin3/internal/ui/command"
	configview "github.com/Rayus223/admin3/internal/ui/config"
	helpview "github.com/Rayus223/admin3/internal/ui/help"
	"github.com/Rayus223/admin3/internal/ui/notifications"
)

// centerUpdatedMsg signals that the notification log changed.
type centerUpdatedMsg struct{}

// connectionMsg carries a realtime channel state transition.
type connectionMsg struct {
	state realtime.State
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewNotifications ViewState = iota
	ViewHelp
	ViewCommand
	ViewConfig
)

// Model is the root Bubble Tea model: the notification panel plus the
// help and command overlays.
type Model struct {
	currentView      ViewState
	layout           ui.Layout
	keys             *keys.KeyMap
	rt               *Runtime
	panel            notifications.Model
	helpView         helpview.Model
	commandView      command.Model
	configView       configview.Model
	connection       realtime.State
	statusMessage    string
	authErrorMessage string
	ready            bool
}

// New creates the root model over a wired Runtime. The runtime must
// already be started.
func New(rt *Runtime) Model {
	k := keys.DefaultKeyMap()
	panel := notifications.New(rt.Center, 80, 22, nil)
	panel.SetConnection(rt.Channel.State().String())
	return Model{
		currentView: ViewNotifications,
		layout:      ui.NewLayout(80, 24),
		keys:        k,
		rt:          rt,
		panel:       panel,
		helpView:    helpview.New(k, 80, 22),
		commandView: command.New(80, 22),
		configView:  configview.New(rt.ConfigPath, rt.Config, k, 80, 22),
		connection:  rt.Channel.State(),
	}
}

// Init starts the scheduled-calls poller and subscribes to notification
// and connection changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.rt.Poller.Start(),
		waitForCenter(m.rt.Center),
		waitForState(m.rt.States()),
	)
}

func waitForCenter(c *notify.Center) tea.Cmd {
	return func() tea.Msg {
		<-c.Updates()
		return centerUpdatedMsg{}
	}
}

func waitForState(states <-chan realtime.State) tea.Cmd {
	return func() tea.Msg {
		return connectionMsg{state: <-states}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.panel.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.configView.SetSize(w, h)
		return m, nil

	case centerUpdatedMsg:
		m.panel.Reload()
		return m, waitForCenter(m.rt.Center)

	case connectionMsg:
		m.connection = msg.state
		m.panel.SetConnection(msg.state.String())
		return m, waitForState(m.rt.States())

	case appsync.ScanResultMsg:
		switch {
		case msg.AuthError != nil:
			m.authErrorMessage = msg.AuthError.Message
		case msg.Error != nil:
			m.statusMessage = "scheduled calls unavailable"
		default:
			m.authErrorMessage = ""
			if msg.Emitted > 0 {
				m.statusMessage = fmt.Sprintf("%d new overdue call alert(s)", msg.Emitted)
			}
		}
		return m, m.rt.Poller.WaitForNextResult()

	case appsync.ResolveResultMsg:
		if msg.Error != nil {
			m.statusMessage = fmt.Sprintf("%s %s failed: %v", msg.Action, msg.CallID, msg.Error)
			return m, nil
		}
		m.statusMessage = fmt.Sprintf("call %s: %s done", msg.CallID, msg.Action)
		return m, m.rt.Poller.Refresh()

	case command.CommandMsg:
		m.currentView = ViewNotifications
		return m, m.executeCommand(command.Command(msg))

	case command.ErrorMsg:
		m.statusMessage = msg.Err.Error()
		return m, nil

	case configview.ConfigSavedMsg:
		m.rt.ApplyConfig(msg.Config)
		return m, nil

	case configview.ConfigDoneMsg:
		m.currentView = ViewNotifications
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveView(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.currentView {
	case ViewCommand:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = ViewNotifications
			return m, nil
		}
		return m.updateActiveView(msg)

	case ViewConfig:
		return m.updateActiveView(msg)

	case ViewHelp:
		switch {
		case key.Matches(msg, m.keys.Help), key.Matches(msg, m.keys.Back):
			m.currentView = ViewNotifications
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
		return m, nil
	}

	m.statusMessage = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.helpView.SetInfo(m.sessionInfo()...)
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.Command):
		m.currentView = ViewCommand
		return m, m.commandView.Focus()

	case key.Matches(msg, m.keys.Settings):
		return m, m.executeCommand(command.Command{Name: command.Settings})

	case key.Matches(msg, m.keys.MarkRead):
		return m, m.executeCommand(command.Command{Name: command.Read})

	case key.Matches(msg, m.keys.Refresh):
		return m, m.executeCommand(command.Command{Name: command.Refresh})

	case key.Matches(msg, m.keys.ToggleSound):
		arg := "on"
		if m.rt.Center.SoundEnabled() {
			arg = "off"
		}
		return m, m.executeCommand(command.Command{Name: command.Sound, Arg: arg})

	case key.Matches(msg, m.keys.Complete), key.Matches(msg, m.keys.Delete):
		sel, ok := m.panel.Selected()
		if !ok || sel.Call == nil {
			m.statusMessage = "select an overdue call notification first"
			return m, nil
		}
		name := command.Complete
		if key.Matches(msg, m.keys.Delete) {
			name = command.Delete
		}
		return m, m.executeCommand(command.Command{Name: name, Arg: sel.Call.CallID})
	}

	return m.updateActiveView(msg)
}

// updateActiveView forwards msg to the active sub-view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewNotifications:
		m.panel, cmd = m.panel.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	}
	return m, cmd
}

// executeCommand runs a palette command.
func (m *Model) executeCommand(cmd command.Command) tea.Cmd {
	switch cmd.Name {
	case command.Read:
		m.rt.Center.MarkAllAsRead()
		m.panel.Reload()
		return nil
	case command.Refresh:
		m.statusMessage = "refreshing scheduled calls…"
		return m.rt.Poller.Refresh()
	case command.Complete:
		m.statusMessage = "completing " + cmd.Arg + "…"
		return m.rt.Poller.Complete(cmd.Arg)
	case command.Delete:
		m.statusMessage = "deleting " + cmd.Arg + "…"
		return m.rt.Poller.Delete(cmd.Arg)
	case command.Sound:
		m.rt.Center.SetSoundEnabled(cmd.Arg == "on")
		m.statusMessage = "sound " + cmd.Arg
		return nil
	case command.Settings:
		if m.rt.ConfigPath == "" {
			m.statusMessage = "no config file to edit"
			return nil
		}
		m.currentView = ViewConfig
		return nil
	case command.Quit:
		return tea.Quit
	default:
		return nil
	}
}

func (m Model) sessionInfo() []string {
	sound := "off"
	if m.rt.Center.SoundEnabled() {
		sound = "on"
	}
	return []string{
		"Live updates: " + m.rt.Config.Realtime.URL + " (" + m.connection.String() + ")",
		"Scheduled calls: " + m.rt.Config.API.BaseURL,
		"Store: " + m.rt.Config.Store.DSN,
		"Sound: " + sound,
	}
}

// View renders the full terminal view.
func (m Model) View() string {
	if !m.ready {
		return "loading…"
	}

	header := m.layout.RenderHeader(
		"admin3 notifications",
		m.panel.Connection()+"  "+m.panel.Badge(),
	)
	statusBar := m.layout.RenderStatusBar(m.keyHints())
	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewConfig:
		return m.configView.View()
	default:
		return m.panel.View()
	}
}

// keyHints returns the status bar text.
func (m Model) keyHints() string {
	if m.authErrorMessage != "" && m.currentView == ViewNotifications {
		return theme.ErrorStyle.Render(m.authErrorMessage)
	}
	if m.statusMessage != "" {
		return m.statusMessage
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewConfig:
		if m.configView.Editing() {
			return "enter next | esc cancel"
		}
		return "e edit | esc back"
	default:
		return "q quit | ? help | m mark read | r refresh | c complete | x delete | e settings | : command"
	}
}
