package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Rayus223/admin3/internal/theme"
)

// Layout holds the terminal dimensions and splits them into a one-line
// header, the content area and a one-line status bar.
type Layout struct {
	Width  int
	Height int
}

// NewLayout creates a Layout for a terminal of the given size.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentWidth returns the width available to views.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left between header and status bar.
func (l Layout) ContentHeight() int {
	if h := l.Height - 2; h > 0 {
		return h
	}
	return 0
}

// RenderHeader renders title on the left and status (the bell badge and
// connection indicator) flush right.
func (l Layout) RenderHeader(title string, status string) string {
	return l.bar(theme.HeaderStyle, title, status)
}

// RenderStatusBar renders the bottom line of hints or messages.
func (l Layout) RenderStatusBar(hints string) string {
	return l.bar(theme.StatusBarStyle, hints, "")
}

// bar fills one full-width line with style, left and right aligned.
func (l Layout) bar(style lipgloss.Style, left, right string) string {
	leftR := style.Render(left)
	rightR := ""
	if right != "" {
		rightR = style.Render(right)
	}
	gap := l.Width - lipgloss.Width(leftR) - lipgloss.Width(rightR)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, leftR, filler, rightR)
}

// RenderWithFrame stacks header, content and status bar, padding the
// content so the status bar stays on the last line.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	body := lipgloss.Place(l.ContentWidth(), l.ContentHeight(), lipgloss.Left, lipgloss.Top, content)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, statusBar)
}
