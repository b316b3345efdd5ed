package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rayus223/admin3/internal/model"
	"github.com/Rayus223/admin3/internal/realtime"
	"github.com/Rayus223/admin3/internal/ui/command"
	"github.com/Rayus223/admin3/tests/testutil"
)

func newTestRuntime(t *testing.T, tweaks ...func(*model.AppConfig)) *Runtime {
	t.Helper()
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.Store.DSN = "memory://"
	cfg.Sound.Enabled = false
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	rt, err := NewRuntime(cfg, testutil.NewTestLogger(t), RuntimeOptions{Token: "secret", BellOut: io.Discard})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	got, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return got, cmd
}

func TestModelReloadsAndMarksRead(t *testing.T) {
	rt := newTestRuntime(t)
	m := New(rt)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	rt.Center.AddNotification(model.NotificationInput{
		Kind:  model.KindNewApplication,
		Title: "New Application",
	})
	m, cmd := update(t, m, centerUpdatedMsg{})
	if cmd == nil {
		t.Fatalf("expected the model to keep waiting for updates")
	}
	if m.panel.Unread() != 1 {
		t.Fatalf("expected 1 unread, got %d", m.panel.Unread())
	}
	if !strings.Contains(m.View(), "New Application") {
		t.Fatalf("expected the notification in the view")
	}

	m, _ = update(t, m, runeKey('m'))
	if rt.Center.UnreadCount() != 0 || m.panel.Unread() != 0 {
		t.Fatalf("expected everything read after m")
	}
}

func TestModelConnectionState(t *testing.T) {
	rt := newTestRuntime(t)
	m := New(rt)
	if m.panel.Connection() == "" {
		t.Fatalf("expected an initial connection indicator")
	}

	m, cmd := update(t, m, connectionMsg{state: realtime.StateOpen})
	if cmd == nil || m.connection != realtime.StateOpen {
		t.Fatalf("expected open state and a follow-up wait, got %v", m.connection)
	}
}

func TestModelCommandPalette(t *testing.T) {
	rt := newTestRuntime(t)
	m := New(rt)

	m, _ = update(t, m, runeKey(':'))
	if m.currentView != ViewCommand {
		t.Fatalf("expected command view, got %v", m.currentView)
	}

	m, _ = update(t, m, command.CommandMsg{Name: command.Sound, Arg: "on"})
	if m.currentView != ViewNotifications || !rt.Center.SoundEnabled() {
		t.Fatalf("expected sound on and the list view back")
	}

	_, cmd := update(t, m, command.CommandMsg{Name: command.Quit})
	if cmd == nil {
		t.Fatalf("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestModelResolveNeedsOverdueCall(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Center.AddNotification(model.NotificationInput{Title: "plain"})
	m := New(rt)

	m, cmd := update(t, m, runeKey('c'))
	if cmd != nil {
		t.Fatalf("expected no API call for a non-call notification")
	}
	if m.statusMessage == "" {
		t.Fatalf("expected a status hint")
	}
}

func TestModelHelpToggle(t *testing.T) {
	rt := newTestRuntime(t)
	m := New(rt)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m, _ = update(t, m, runeKey('?'))
	if m.currentView != ViewHelp || !strings.Contains(m.View(), "Session") {
		t.Fatalf("expected the help view with session info")
	}
	m, _ = update(t, m, runeKey('?'))
	if m.currentView != ViewNotifications {
		t.Fatalf("expected help to close")
	}
}

func TestRunHeadlessScansUntilCancelled(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"_id":"c1","contactName":"Ann","callDateTime":"2020-01-01T09:00:00Z"}]`))
	}))
	t.Cleanup(api.Close)

	rt := newTestRuntime(t, func(cfg *model.AppConfig) {
		cfg.API.BaseURL = api.URL
		cfg.Realtime.URL = "ws://127.0.0.1:1"
		cfg.Realtime.ReconnectDelay = time.Hour
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunHeadless(ctx, rt) }()

	deadline := time.Now().Add(3 * time.Second)
	for !rt.Center.HasAlerted("c1") {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("overdue call was never alerted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunHeadless: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RunHeadless did not return after cancel")
	}
	if rt.Center.UnreadCount() != 1 {
		t.Fatalf("expected 1 unread notification, got %d", rt.Center.UnreadCount())
	}
}
