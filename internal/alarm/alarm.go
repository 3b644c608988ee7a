package alarm

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidAlarm    = errors.New("invalid alarm")
	ErrNotFound        = errors.New("alarm not found")
	ErrSnoozeDisabled  = errors.New("snooze is disabled for this alarm")
	ErrSnoozeLimit     = errors.New("snooze limit reached")
	ErrNoActiveTrigger = errors.New("no active alarm")
)

// Alarm is a time-of-day trigger with an optional weekly recurrence.
type Alarm struct {
	ID            string     `json:"id"`
	Label         string     `json:"label"`
	Hour          int        `json:"hour"`
	Minute        int        `json:"minute"`
	Enabled       bool       `json:"enabled"`
	Days          WeekdaySet `json:"days"`
	Sound         string     `json:"sound,omitempty"`
	Volume        float64    `json:"volume"`
	SnoozeEnabled bool       `json:"snooze_enabled"`
	SnoozeMinutes int        `json:"snooze_minutes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at,omitempty"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
}

// New returns an enabled alarm with a fresh id.
func New(label string, hour, minute int, days WeekdaySet, now time.Time) Alarm {
	return Alarm{
		ID:            uuid.NewString(),
		Label:         label,
		Hour:          hour,
		Minute:        minute,
		Enabled:       true,
		Days:          days,
		Volume:        1,
		SnoozeEnabled: true,
		SnoozeMinutes: 5,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (a Alarm) Validate() error {
	if a.Hour < 0 || a.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range 0-23", ErrInvalidAlarm, a.Hour)
	}
	if a.Minute < 0 || a.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range 0-59", ErrInvalidAlarm, a.Minute)
	}
	if a.Volume < 0 || a.Volume > 1 {
		return fmt.Errorf("%w: volume %.2f out of range 0-1", ErrInvalidAlarm, a.Volume)
	}
	if a.SnoozeEnabled && a.SnoozeMinutes < 1 {
		return fmt.Errorf("%w: snooze duration must be at least one minute", ErrInvalidAlarm)
	}
	return nil
}

func (a Alarm) Recurring() bool {
	return !a.Days.Empty()
}

func (a Alarm) TimeOfDay() string {
	return fmt.Sprintf("%02d:%02d", a.Hour, a.Minute)
}

// Reference is the instant from which a missed occurrence is measured: the
// latest of creation, last edit and last fire.
func (a Alarm) Reference() time.Time {
	ref := a.CreatedAt
	if a.UpdatedAt.After(ref) {
		ref = a.UpdatedAt
	}
	if a.LastTriggered != nil && a.LastTriggered.After(ref) {
		ref = *a.LastTriggered
	}
	return ref
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(v string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: time %q, expected HH:MM", ErrInvalidAlarm, v)
	}
	return t.Hour(), t.Minute(), nil
}

// ActiveTrigger is the alarm currently ringing or snoozed.
type ActiveTrigger struct {
	AlarmID     string     `json:"alarm_id"`
	Alarm       Alarm      `json:"alarm"`
	FiredAt     time.Time  `json:"fired_at"`
	Snoozing    bool       `json:"snoozing"`
	SnoozeUntil *time.Time `json:"snooze_until,omitempty"`
	SnoozeCount int        `json:"snooze_count"`
}
