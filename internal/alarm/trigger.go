package alarm

import "time"

// NextTrigger returns the next wall-clock instant the alarm should fire
// strictly after now. It is pure and never panics; ok is false only when the
// time of day is malformed.
//
// Days are added with time.Date so month ends and DST shifts keep the
// alarm's wall-clock time. A candidate equal to now counts as passed.
func NextTrigger(a Alarm, now time.Time) (time.Time, bool) {
	if a.Hour < 0 || a.Hour > 23 || a.Minute < 0 || a.Minute > 59 {
		return time.Time{}, false
	}

	if a.Days.Empty() {
		today := atDay(a, now, 0)
		if today.After(now) {
			return today, true
		}
		return atDay(a, now, 1), true
	}

	for offset := 0; offset < 7; offset++ {
		candidate := atDay(a, now, offset)
		if !a.Days.Has(candidate.Weekday()) {
			continue
		}
		if offset == 0 && !candidate.After(now) {
			continue
		}
		return candidate, true
	}
	// Only today's weekday enabled and already passed.
	return atDay(a, now, 7), true
}

func atDay(a Alarm, now time.Time, offset int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+offset, a.Hour, a.Minute, 0, 0, now.Location())
}
