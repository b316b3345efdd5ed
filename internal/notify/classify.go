package notify

import (
	"fmt"

	"github.com/Rayus223/admin3/internal/model"
	"github.com/Rayus223/admin3/internal/realtime"
)

// HandleMessage classifies one inbound message. Only new applications
// become notifications; status updates are accepted without effect and
// unknown types are logged.
func (c *Center) HandleMessage(msg realtime.Message) {
	switch m := msg.(type) {
	case realtime.NewApplication:
		c.AddNotification(applicationInput(m))
	case realtime.StatusUpdate:
		c.logger.Debug().RawJSON("data", rawOrNull(m.Data)).Msg("status update received")
	case realtime.Unrecognized:
		c.logger.Info().Str("type", m.Kind).Msg("ignoring message of unknown type")
	default:
		c.logger.Warn().Str("type", fmt.Sprintf("%T", msg)).Msg("ignoring unexpected message")
	}
}

func applicationInput(m realtime.NewApplication) model.NotificationInput {
	teacher := m.TeacherName
	if teacher == "" {
		teacher = "A teacher"
	}
	vacancy := m.VacancyTitle
	if vacancy == "" {
		vacancy = "a vacancy"
	}
	return model.NotificationInput{
		Kind:        model.KindNewApplication,
		Title:       "New Application",
		Description: fmt.Sprintf(`%s applied for "%s"`, teacher, vacancy),
		Application: &model.ApplicationDetails{
			TeacherName:  m.TeacherName,
			VacancyTitle: m.VacancyTitle,
		},
	}
}

func rawOrNull(b []byte) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
