package alarm

import "time"

// SnoozeManager computes snooze deadlines. The per-trigger counter lives on
// ActiveTrigger so that dismissing clears both in one step.
type SnoozeManager struct {
	// MaxSnoozes caps consecutive snoozes; zero means unlimited.
	MaxSnoozes int
}

func (SnoozeManager) SnoozeUntil(a Alarm, now time.Time) time.Time {
	return now.Add(time.Duration(a.SnoozeMinutes) * time.Minute)
}

// Snooze returns the trigger advanced by one snooze.
func (m SnoozeManager) Snooze(t ActiveTrigger, a Alarm, now time.Time) (ActiveTrigger, error) {
	if !a.SnoozeEnabled {
		return t, ErrSnoozeDisabled
	}
	if m.MaxSnoozes > 0 && t.SnoozeCount >= m.MaxSnoozes {
		return t, ErrSnoozeLimit
	}
	until := m.SnoozeUntil(a, now)
	t.Snoozing = true
	t.SnoozeUntil = &until
	t.SnoozeCount++
	return t, nil
}

// Wake turns a snoozed trigger back into a ringing one. The count is kept.
func (SnoozeManager) Wake(t ActiveTrigger, now time.Time) ActiveTrigger {
	t.Snoozing = false
	t.SnoozeUntil = nil
	t.FiredAt = now
	return t
}

// Dismiss clears the active trigger, and with it the snooze count, in one
// step. It returns the trigger that was dismissed.
func (SnoozeManager) Dismiss(active **ActiveTrigger) (ActiveTrigger, error) {
	if *active == nil {
		return ActiveTrigger{}, ErrNoActiveTrigger
	}
	t := **active
	*active = nil
	return t, nil
}
