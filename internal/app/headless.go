package app

import (
	"context"

	"github.com/Rayus223/admin3/internal/model"
)

// RunHeadless runs the notification core without a terminal UI and logs
// every new notification until ctx is cancelled.
func RunHeadless(ctx context.Context, rt *Runtime) error {
	rt.Start(ctx)
	rt.Poller.Start()

	seen := make(map[string]bool)
	for _, n := range rt.Center.Notifications() {
		seen[n.ID] = true
	}
	rt.Logger.Info().
		Int("notifications", len(seen)).
		Int("unread", rt.Center.UnreadCount()).
		Msg("running headless")

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-rt.Center.Updates():
			logNew(rt, rt.Center.Notifications(), seen)

		case res := <-rt.Poller.Results():
			if res.Error != nil {
				rt.Logger.Warn().Err(res.Error).Msg("scheduled calls unavailable")
				continue
			}
			rt.Logger.Info().Int("calls", len(res.Calls)).Int("overdue_alerts", res.Emitted).Msg("scheduled calls checked")

		case st := <-rt.States():
			rt.Logger.Info().Str("state", st.String()).Msg("live updates")
		}
	}
}

func logNew(rt *Runtime, records []model.Notification, seen map[string]bool) {
	// Oldest first so the log reads in arrival order.
	for i := len(records) - 1; i >= 0; i-- {
		n := records[i]
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		rt.Logger.Info().
			Str("id", n.ID).
			Str("type", string(n.Kind)).
			Str("title", n.Title).
			Str("description", n.Description).
			Msg("notification")
	}
}
