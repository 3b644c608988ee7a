package store

import (
	"tickwise/internal/alarm"
	"tickwise/internal/timer"
)

// Action is one state transition request. The set is closed; Dispatch
// handles every variant.
type Action interface {
	action()
}

type AddAlarm struct{ Alarm alarm.Alarm }

// UpdateAlarm replaces the editable fields of an existing alarm. Identity,
// creation time and last fire are kept from the stored record.
type UpdateAlarm struct{ Alarm alarm.Alarm }

type DeleteAlarm struct{ ID string }

// ToggleAlarm sets Enabled, or flips it when Enabled is nil.
type ToggleAlarm struct {
	ID      string
	Enabled *bool
}

type SnoozeAlarm struct{}
type DismissAlarm struct{}

type StartTimer struct{}
type PauseTimer struct{}
type ResumeTimer struct{}
type ResetTimer struct{}
type SkipTimer struct{}
type SetTimerMode struct{ Mode timer.Mode }

func (AddAlarm) action()     {}
func (UpdateAlarm) action()  {}
func (DeleteAlarm) action()  {}
func (ToggleAlarm) action()  {}
func (SnoozeAlarm) action()  {}
func (DismissAlarm) action() {}
func (StartTimer) action()   {}
func (PauseTimer) action()   {}
func (ResumeTimer) action()  {}
func (ResetTimer) action()   {}
func (SkipTimer) action()    {}
func (SetTimerMode) action() {}
