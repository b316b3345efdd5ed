package notify

import "github.com/Rayus223/admin3/internal/model"

// MaxNotifications is the default capacity of the notification log.
const MaxNotifications = 10

// Log is a bounded, newest-first list of notifications. Inserting past
// capacity silently evicts the oldest record. Log is not safe for
// concurrent use; Center serializes access to it.
type Log struct {
	capacity int
	records  []model.Notification
}

// NewLog returns a log holding at most capacity records, seeded with
// records (assumed newest first). A non-positive capacity selects
// MaxNotifications. Seed records beyond capacity are dropped.
func NewLog(capacity int, records []model.Notification) *Log {
	if capacity <= 0 {
		capacity = MaxNotifications
	}
	l := &Log{capacity: capacity}
	if len(records) > capacity {
		records = records[:capacity]
	}
	l.records = append(make([]model.Notification, 0, capacity), records...)
	return l
}

// Insert prepends rec, trims the tail to capacity and returns a copy of
// the resulting sequence.
func (l *Log) Insert(rec model.Notification) []model.Notification {
	next := make([]model.Notification, 0, l.capacity)
	next = append(next, rec)
	next = append(next, l.records...)
	if len(next) > l.capacity {
		next = next[:l.capacity]
	}
	l.records = next
	return l.Records()
}

// MarkAllRead flags every record as read without changing order.
func (l *Log) MarkAllRead() []model.Notification {
	for i := range l.records {
		l.records[i].Read = true
	}
	return l.Records()
}

// UnreadCount counts records that have not been read.
func (l *Log) UnreadCount() int {
	n := 0
	for _, r := range l.records {
		if !r.Read {
			n++
		}
	}
	return n
}

// Records returns a copy of the log, newest first.
func (l *Log) Records() []model.Notification {
	out := make([]model.Notification, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records held.
func (l *Log) Len() int { return len(l.records) }
