package event

import "time"

type EventType string

const (
	EventTypeAlarmFired       EventType = "alarm_fired"
	EventTypeAlarmSnoozed     EventType = "alarm_snoozed"
	EventTypeAlarmDismissed   EventType = "alarm_dismissed"
	EventTypeSessionCompleted EventType = "session_completed"
	EventTypeAppStart         EventType = "app_start"
	EventTypeAppStop          EventType = "app_stop"
)

// Event structure to store in DB
type Event struct {
	ID        int64     `db:"id"`
	Timestamp time.Time `db:"timestamp"`
	Type      EventType `db:"type"`
	Subject   string    `db:"subject"` // Alarm ID, or session type for completions
	Label     string    `db:"label"`   // Alarm label
	Value     float64   `db:"value"`   // Seconds focused, snooze count
	Tag       string    `db:"tag"`     // Timer mode, "missed", "snooze"
	Notes     string    `db:"notes"`
}
