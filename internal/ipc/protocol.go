package ipc

import (
	"fmt"
	"time"

	"tickwise/internal/alarm"
	"tickwise/internal/goal"
	"tickwise/internal/timer"
)

const DefaultSocketPath = "/tmp/tickwise.sock"

// Command represents a command sent over the socket
type Command struct {
	Name string      `json:"name"`
	Args interface{} `json:"args,omitempty"`
}

// Response represents a response sent back over the socket
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// --- Command Names ---

const (
	CmdPing         = "ping"
	CmdStatus       = "status"
	CmdAlarmAdd     = "alarm_add"
	CmdAlarmUpdate  = "alarm_update"
	CmdAlarmDelete  = "alarm_delete"
	CmdAlarmToggle  = "alarm_toggle"
	CmdAlarmList    = "alarm_list"
	CmdAlarmSnooze  = "alarm_snooze"
	CmdAlarmDismiss = "alarm_dismiss"
	CmdTimerStart   = "timer_start"
	CmdTimerPause   = "timer_pause"
	CmdTimerResume  = "timer_resume"
	CmdTimerReset   = "timer_reset"
	CmdTimerSkip    = "timer_skip"
	CmdTimerMode    = "timer_mode"
	CmdGoals        = "goals"
)

// --- Command Argument Structs ---

// AlarmArgs carries a new alarm, or the fields to change on an existing
// one. Either Time (with Days) or Cron sets the schedule.
type AlarmArgs struct {
	ID            string   `json:"id,omitempty"`
	Label         string   `json:"label,omitempty"`
	Time          string   `json:"time,omitempty"` // HH:MM
	Days          *string  `json:"days,omitempty"` // "mon,wed", "daily", "once"
	Cron          string   `json:"cron,omitempty"`
	Sound         *string  `json:"sound,omitempty"`
	Volume        *float64 `json:"volume,omitempty"`
	SnoozeEnabled *bool    `json:"snooze_enabled,omitempty"`
	SnoozeMinutes *int     `json:"snooze_minutes,omitempty"`
	Enabled       *bool    `json:"enabled,omitempty"`
}

// Apply writes the set fields onto base.
func (a AlarmArgs) Apply(base alarm.Alarm) (alarm.Alarm, error) {
	if a.Cron != "" && (a.Time != "" || a.Days != nil) {
		return base, fmt.Errorf("%w: give either cron or time/days, not both", alarm.ErrInvalidAlarm)
	}
	if a.Label != "" {
		base.Label = a.Label
	}
	if a.Cron != "" {
		h, m, days, err := alarm.FromCron(a.Cron)
		if err != nil {
			return base, err
		}
		base.Hour, base.Minute, base.Days = h, m, days
	}
	if a.Time != "" {
		h, m, err := alarm.ParseTimeOfDay(a.Time)
		if err != nil {
			return base, err
		}
		base.Hour, base.Minute = h, m
	}
	if a.Days != nil {
		days, err := alarm.ParseWeekdays(*a.Days)
		if err != nil {
			return base, fmt.Errorf("%w: %v", alarm.ErrInvalidAlarm, err)
		}
		base.Days = days
	}
	if a.Sound != nil {
		base.Sound = *a.Sound
	}
	if a.Volume != nil {
		base.Volume = *a.Volume
	}
	if a.SnoozeEnabled != nil {
		base.SnoozeEnabled = *a.SnoozeEnabled
	}
	if a.SnoozeMinutes != nil {
		base.SnoozeMinutes = *a.SnoozeMinutes
	}
	if a.Enabled != nil {
		base.Enabled = *a.Enabled
	}
	return base, base.Validate()
}

type IDArgs struct {
	ID string `json:"id"`
}

type ToggleArgs struct {
	ID      string `json:"id"`
	Enabled *bool  `json:"enabled,omitempty"` // nil flips
}

type ModeArgs struct {
	Mode timer.Mode `json:"mode"`
}

// --- Response Data ---

type AlarmInfo struct {
	alarm.Alarm
	Next *time.Time `json:"next,omitempty"`
}

type TimerData struct {
	timer.Session
	Config timer.Config `json:"config"`
}

type GoalData struct {
	goal.State
	DailyTarget int     `json:"daily_target"`
	Progress    float64 `json:"progress"`
}

type StatusData struct {
	Now        time.Time            `json:"now"`
	Timer      TimerData            `json:"timer"`
	Active     *alarm.ActiveTrigger `json:"active,omitempty"`
	NextAlarm  *AlarmInfo           `json:"next_alarm,omitempty"`
	AlarmCount int                  `json:"alarm_count"`
	Goals      GoalData             `json:"goals"`
}
