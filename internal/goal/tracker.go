package goal

import (
	"time"

	"tickwise/internal/timer"
)

const dayLayout = "2006-01-02"

// State is the persisted goal record. Totals belong to LastActiveDay.
type State struct {
	LastActiveDay string `json:"last_active_day"`
	FocusSeconds  int    `json:"focus_seconds"`
	Sessions      int    `json:"sessions"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}

// Tracker accumulates qualifying completions into a State it does not own.
type Tracker struct {
	s           *State
	dailyTarget int
}

func NewTracker(s *State, dailyTarget int) *Tracker {
	return &Tracker{s: s, dailyTarget: dailyTarget}
}

func (t *Tracker) State() State { return *t.s }

func (t *Tracker) SetDailyTarget(n int) { t.dailyTarget = n }
func (t *Tracker) DailyTarget() int     { return t.dailyTarget }

// Qualifies reports whether a completed interval counts toward goals.
func Qualifies(st timer.SessionType) bool {
	return st == timer.TypeWork || st == timer.TypeMeditation
}

func DayKey(now time.Time) string {
	return now.Format(dayLayout)
}

// Rollover moves the record to now's day. The streak survives only if the
// previous active day was yesterday and had at least one session. A stored
// day later than today (clock set back) is left alone.
func (t *Tracker) Rollover(now time.Time) bool {
	today := DayKey(now)
	switch {
	case t.s.LastActiveDay == "":
		t.s.LastActiveDay = today
		return true
	case t.s.LastActiveDay >= today:
		return false
	}

	y, m, d := now.Date()
	yesterday := DayKey(time.Date(y, m, d-1, 12, 0, 0, 0, now.Location()))
	if t.s.LastActiveDay != yesterday || t.s.Sessions == 0 {
		t.s.CurrentStreak = 0
	}
	t.s.Sessions = 0
	t.s.FocusSeconds = 0
	t.s.LastActiveDay = today
	return true
}

// Record counts a completion. It returns false for non-qualifying types.
func (t *Tracker) Record(c timer.Completion) bool {
	if !Qualifies(c.Type) {
		return false
	}
	t.Rollover(c.At)
	if t.s.Sessions == 0 {
		t.s.CurrentStreak++
	}
	t.s.Sessions++
	t.s.FocusSeconds += c.Seconds
	if t.s.CurrentStreak > t.s.LongestStreak {
		t.s.LongestStreak = t.s.CurrentStreak
	}
	return true
}

// Progress is today's share of the daily session target, capped at 1.
func (t *Tracker) Progress() float64 {
	if t.dailyTarget <= 0 {
		return 0
	}
	p := float64(t.s.Sessions) / float64(t.dailyTarget)
	if p > 1 {
		p = 1
	}
	return p
}
