package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ScheduledCall is a follow-up call fetched from the scheduled-calls API.
// CallDateTime is kept as the raw wire string so that a malformed value
// excludes the item from overdue evaluation instead of failing the whole
// batch decode.
type ScheduledCall struct {
	ID           string `json:"_id"`
	ContactName  string `json:"contactName"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	Notes        string `json:"notes,omitempty"`
	CallDateTime string `json:"callDateTime"`
	IsCompleted  bool   `json:"isCompleted"`
}

// UnmarshalJSON accepts either "_id" or "id" as the identifier.
func (c *ScheduledCall) UnmarshalJSON(data []byte) error {
	type alias ScheduledCall
	var raw struct {
		alias
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = ScheduledCall(raw.alias)
	if c.ID == "" {
		c.ID = raw.AltID
	}
	return nil
}

// callTimeLayouts are tried in order when parsing CallDateTime.
var callTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// DueAt parses CallDateTime. ok is false when the value is missing or
// unparseable.
func (c ScheduledCall) DueAt() (t time.Time, ok bool) {
	raw := strings.TrimSpace(c.CallDateTime)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range callTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
