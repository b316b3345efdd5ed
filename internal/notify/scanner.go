package notify

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/Rayus223/admin3/internal/model"
)

// AlertSink inserts a notification for an external item unless one was
// already raised for it. The check, the insertion and the marking must
// happen as one step; AlertOnce reports whether the notification was
// inserted.
type AlertSink interface {
	AlertOnce(id string, input model.NotificationInput) bool
}

// OverdueScanner turns a freshly fetched batch of scheduled calls into
// overdue-call notifications, at most one per call until the call is
// cleared.
type OverdueScanner struct {
	sink   AlertSink
	logger zerolog.Logger
}

func NewOverdueScanner(sink AlertSink, logger zerolog.Logger) *OverdueScanner {
	return &OverdueScanner{
		sink:   sink,
		logger: logger.With().Str("component", "scanner").Logger(),
	}
}

// Scan emits a notification for every call that is not completed, is
// strictly past due at now and has not been alerted before. Calls with a
// missing or unparseable due time are skipped with a warning.
func (s *OverdueScanner) Scan(items []model.ScheduledCall, now time.Time) []model.NotificationInput {
	var emitted []model.NotificationInput
	for _, item := range items {
		if item.IsCompleted {
			continue
		}
		due, ok := item.DueAt()
		if !ok {
			s.logger.Warn().
				Str("call_id", item.ID).
				Str("call_date_time", item.CallDateTime).
				Msg("skipping scheduled call with invalid due time")
			continue
		}
		if !due.Before(now) {
			continue
		}
		if item.ID == "" {
			s.logger.Warn().Str("contact", item.ContactName).Msg("skipping overdue call without id")
			continue
		}

		input := OverdueCallInput(item, due, now)
		if s.sink.AlertOnce(item.ID, input) {
			emitted = append(emitted, input)
		}
	}
	if len(emitted) > 0 {
		s.logger.Info().Int("count", len(emitted)).Msg("overdue calls alerted")
	}
	return emitted
}

// OverdueCallInput builds the notification raised for an overdue call.
func OverdueCallInput(call model.ScheduledCall, due, now time.Time) model.NotificationInput {
	contact := call.ContactName
	if contact == "" {
		contact = "an unnamed contact"
	}
	return model.NotificationInput{
		Kind:        model.KindOverdueCall,
		Title:       "Overdue Scheduled Call",
		Description: fmt.Sprintf("Call to %s was due %s.", contact, humanize.RelTime(due, now, "ago", "from now")),
		Call: &model.CallDetails{
			CallID:      call.ID,
			ContactName: call.ContactName,
			DueAt:       due,
		},
	}
}
