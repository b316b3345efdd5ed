package notifications

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Rayus223/admin3/internal/model"
	"github.com/Rayus223/admin3/internal/theme"
)

// Source is the notification state the panel renders.
// *notify.Center satisfies it.
type Source interface {
	Notifications() []model.Notification
	UnreadCount() int
}

// Model is the notification panel: a bell with the unread badge, the
// connection indicator and the newest-first list.
type Model struct {
	list       list.Model
	source     Source
	unread     int
	connection string
	width      int
	height     int
}

// New creates a new notification panel. now drives relative
// timestamps; nil means time.Now.
func New(src Source, width, height int, now func() time.Time) Model {
	if now == nil {
		now = time.Now
	}
	l := list.New([]list.Item{}, ItemDelegate{now: now}, width, height-1)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(true)
	l.DisableQuitKeybindings()
	l.SetStatusBarItemName("notification", "notifications")

	m := Model{
		list:       l,
		source:     src,
		connection: "disconnected",
		width:      width,
		height:     height,
	}
	m.Reload()
	return m
}

// Reload refreshes the panel from the source, keeping the cursor on
// the same position where possible.
func (m *Model) Reload() {
	records := m.source.Notifications()
	items := make([]list.Item, len(records))
	for i, r := range records {
		items[i] = Item{Notification: r}
	}
	m.list.SetItems(items)
	m.unread = m.source.UnreadCount()
}

// SetConnection updates the connection indicator.
func (m *Model) SetConnection(state string) {
	m.connection = state
}

// Unread returns the unread count shown on the badge.
func (m Model) Unread() int { return m.unread }

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles cursor movement.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// Badge renders the bell with the unread count.
func (m Model) Badge() string {
	if m.unread == 0 {
		return "🔔"
	}
	count := fmt.Sprint(m.unread)
	if m.unread > 9 {
		count = "9+"
	}
	return "🔔 " + theme.BadgeStyle.Render(count)
}

// Connection renders the live-updates indicator.
func (m Model) Connection() string {
	return theme.ConnectionStyle(m.connection).Render("● " + m.connection)
}

// View renders the panel.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		empty := theme.HelpStyle.Render("No notifications yet.")
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, empty)
	}
	return m.list.View()
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-1)
}
