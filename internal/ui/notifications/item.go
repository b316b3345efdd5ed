package notifications

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/Rayus223/admin3/internal/model"
	"github.com/Rayus223/admin3/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title for the list.
func (i Item) Title() string { return i.Notification.Title }

// Description returns the notification body.
func (i Item) Description() string { return i.Notification.Description }

// kindLabels are the short badges shown before each notification.
var kindLabels = map[model.NotificationKind]string{
	model.KindNewApplication: "APP",
	model.KindOverdueCall:    "CALL",
	model.KindStatusUpdate:   "STAT",
}

// ItemDelegate renders one notification per line.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	fmt.Fprint(w, d.renderLine(it.Notification, index == m.Index(), m.Width()))
}

func (d ItemDelegate) renderLine(n model.Notification, selected bool, width int) string {
	marker := "●"
	if n.Read {
		marker = " "
	}

	label, ok := kindLabels[n.Kind]
	if !ok {
		label = "INFO"
	}
	badge := theme.KindStyle(string(n.Kind)).Render(fmt.Sprintf("%-4s", label))

	when := humanize.RelTime(n.Timestamp, d.now(), "ago", "from now")
	text := fmt.Sprintf("%s: %s", n.Title, n.Description)
	if width > 0 {
		// marker, badge, spacing and the timestamp take the rest.
		room := width - len(when) - 14
		if room > 3 && len([]rune(text)) > room {
			text = string([]rune(text)[:room-1]) + "…"
		}
	}

	line := strings.Join([]string{marker, badge, text, theme.HelpStyle.Render(when)}, " ")
	if n.Read {
		line = theme.DimmedStyle.Render(line)
	}
	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}
