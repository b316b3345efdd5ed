package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/Rayus223/admin3/internal/model"
	"github.com/Rayus223/admin3/tests/testutil"
)

// recordingSink is an AlertSink backed by a plain tracker.
type recordingSink struct {
	mu      sync.Mutex
	tracker *DedupTracker
	inputs  []model.NotificationInput
}

func newRecordingSink() *recordingSink {
	return &recordingSink{tracker: NewDedupTracker(nil)}
}

func (s *recordingSink) AlertOnce(id string, input model.NotificationInput) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracker.HasAlerted(id) {
		return false
	}
	s.inputs = append(s.inputs, input)
	s.tracker.MarkAlerted(id)
	return true
}

func TestScanSelectsOverdueCalls(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	past := now.Add(-2 * time.Hour).Format(time.RFC3339)
	future := now.Add(time.Hour).Format(time.RFC3339)

	tests := []struct {
		name string
		call model.ScheduledCall
		want bool
	}{
		{"overdue", model.ScheduledCall{ID: "c1", ContactName: "Bob", CallDateTime: past}, true},
		{"completed", model.ScheduledCall{ID: "c2", CallDateTime: past, IsCompleted: true}, false},
		{"future", model.ScheduledCall{ID: "c3", CallDateTime: future}, false},
		{"due exactly now", model.ScheduledCall{ID: "c4", CallDateTime: now.Format(time.RFC3339)}, false},
		{"missing due time", model.ScheduledCall{ID: "c5"}, false},
		{"malformed due time", model.ScheduledCall{ID: "c6", CallDateTime: "next tuesday"}, false},
		{"missing id", model.ScheduledCall{CallDateTime: past}, false},
		{"local layout", model.ScheduledCall{ID: "c7", CallDateTime: "2026-03-14T09:30"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newRecordingSink()
			s := NewOverdueScanner(sink, testutil.NewTestLogger(t))

			got := s.Scan([]model.ScheduledCall{tt.call}, now)
			if (len(got) == 1) != tt.want {
				t.Fatalf("expected emitted=%v, got %d inputs", tt.want, len(got))
			}
			if tt.want && !sink.tracker.HasAlerted(tt.call.ID) {
				t.Fatalf("expected %s to be marked alerted", tt.call.ID)
			}
		})
	}
}

func TestScanEmptyBatch(t *testing.T) {
	s := NewOverdueScanner(newRecordingSink(), testutil.NewTestLogger(t))
	if got := s.Scan(nil, time.Now()); len(got) != 0 {
		t.Fatalf("expected no emissions, got %d", len(got))
	}
}

func TestOverdueCallInput(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	due := now.Add(-2 * time.Hour)

	in := OverdueCallInput(model.ScheduledCall{ID: "c1", ContactName: "Bob"}, due, now)
	if in.Kind != model.KindOverdueCall || in.Title != "Overdue Scheduled Call" {
		t.Fatalf("unexpected input %+v", in)
	}
	if in.Description != "Call to Bob was due 2 hours ago." {
		t.Fatalf("unexpected description %q", in.Description)
	}
	if in.Call == nil || in.Call.CallID != "c1" || !in.Call.DueAt.Equal(due) {
		t.Fatalf("unexpected call details %+v", in.Call)
	}
}

func TestCenterScanAlertsOnce(t *testing.T) {
	f := newFixture(t, nil, Options{})
	c := f.center
	now := baseTime
	items := []model.ScheduledCall{{
		ID:           "c1",
		ContactName:  "Bob",
		CallDateTime: now.Add(-30 * time.Minute).Format(time.RFC3339),
	}}

	if got := c.Scan(items, now); len(got) != 1 {
		t.Fatalf("expected one emission, got %d", len(got))
	}
	if !c.HasAlerted("c1") {
		t.Fatalf("expected c1 to be alerted")
	}
	if got := c.Scan(items, now); len(got) != 0 {
		t.Fatalf("expected no emissions on rescan, got %d", len(got))
	}
	if n := len(c.Notifications()); n != 1 {
		t.Fatalf("expected one notification, got %d", n)
	}
}

func TestCenterScanAfterClearAlertsAgain(t *testing.T) {
	f := newFixture(t, nil, Options{})
	c := f.center
	now := baseTime
	items := []model.ScheduledCall{{
		ID:           "c1",
		CallDateTime: now.Add(-time.Hour).Format(time.RFC3339),
	}}

	c.Scan(items, now)
	c.ClearAlerted("c1")
	c.ClearAlerted("c1")
	if c.HasAlerted("c1") {
		t.Fatalf("expected c1 to be cleared")
	}

	if got := c.Scan(items, now); len(got) != 1 {
		t.Fatalf("expected the reappearing item to alert again, got %d", len(got))
	}
	if n := len(c.Notifications()); n != 2 {
		t.Fatalf("expected two notifications, got %d", n)
	}
}

func TestCenterScanDedupSurvivesEviction(t *testing.T) {
	f := newFixture(t, nil, Options{})
	c := f.center
	now := baseTime
	items := []model.ScheduledCall{{
		ID:           "c1",
		ContactName:  "Bob",
		CallDateTime: now.Add(-time.Hour).Format(time.RFC3339),
	}}

	if got := c.Scan(items, now); len(got) != 1 {
		t.Fatalf("expected one emission, got %d", len(got))
	}
	for i := 0; i < MaxNotifications; i++ {
		c.AddNotification(applicationNote())
	}
	for _, n := range c.Notifications() {
		if n.Kind == model.KindOverdueCall {
			t.Fatalf("expected the overdue notification to be evicted")
		}
	}

	if got := c.Scan(items, now); len(got) != 0 {
		t.Fatalf("expected no emissions after eviction, got %d", len(got))
	}
	if !c.HasAlerted("c1") {
		t.Fatalf("expected c1 to stay alerted")
	}
}
