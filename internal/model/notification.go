package model

import "time"

// NotificationKind tags a notification with the event that produced it.
// The set is open: kinds written by a newer build round-trip unchanged.
type NotificationKind string

const (
	KindNewApplication NotificationKind = "NEW_APPLICATION"
	KindOverdueCall    NotificationKind = "OVERDUE_CALL"
	KindStatusUpdate   NotificationKind = "STATUS_UPDATE"
	KindGeneric        NotificationKind = "GENERIC"
)

// DefaultNotificationTitle is used when a notification is added without one.
const DefaultNotificationTitle = "Notification"

// ApplicationDetails is the rendering payload of a NEW_APPLICATION notification.
type ApplicationDetails struct {
	TeacherName  string `json:"teacherName,omitempty"`
	VacancyTitle string `json:"vacancyTitle,omitempty"`
}

// CallDetails is the rendering payload of an OVERDUE_CALL notification.
type CallDetails struct {
	CallID      string    `json:"callId"`
	ContactName string    `json:"contactName,omitempty"`
	DueAt       time.Time `json:"dueAt"`
}

// Notification is a single user-facing alert kept in the local
// notification log.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// Kind identifies which event produced this notification.
	Kind NotificationKind `json:"type"`

	// Title and Description are the display strings.
	Title       string `json:"title"`
	Description string `json:"description"`

	// Application is set for NEW_APPLICATION notifications.
	Application *ApplicationDetails `json:"application,omitempty"`

	// Call is set for OVERDUE_CALL notifications.
	Call *CallDetails `json:"call,omitempty"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// Timestamp is when this notification was generated.
	Timestamp time.Time `json:"timestamp"`
}

// NotificationInput is what callers hand to the notification center.
// The center assigns ID, Timestamp and Read.
type NotificationInput struct {
	Kind        NotificationKind
	Title       string
	Description string
	Application *ApplicationDetails
	Call        *CallDetails
}
