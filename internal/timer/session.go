package timer

import (
	"errors"
	"fmt"
	"time"
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateExpired State = "expired"
)

type Mode string

const (
	ModePomodoro   Mode = "pomodoro"
	ModeCustom     Mode = "custom"
	ModeMeditation Mode = "meditation"
)

func ParseMode(v string) (Mode, error) {
	switch Mode(v) {
	case ModePomodoro, ModeCustom, ModeMeditation:
		return Mode(v), nil
	}
	return "", fmt.Errorf("unknown timer mode %q", v)
}

type SessionType string

const (
	TypeWork       SessionType = "work"
	TypeBreak      SessionType = "break"
	TypeLongBreak  SessionType = "longBreak"
	TypeMeditation SessionType = "meditation"
	TypeCustom     SessionType = "custom"
)

var ErrInvalidTransition = errors.New("invalid timer transition")

// Config holds interval lengths in minutes.
type Config struct {
	WorkMinutes            int
	BreakMinutes           int
	LongBreakMinutes       int
	SessionsUntilLongBreak int
	CustomMinutes          int
	MeditationMinutes      int
	// AutoStart keeps a pomodoro running into its next interval.
	AutoStart bool
}

func DefaultConfig() Config {
	return Config{
		WorkMinutes:            25,
		BreakMinutes:           5,
		LongBreakMinutes:       15,
		SessionsUntilLongBreak: 4,
		CustomMinutes:          30,
		MeditationMinutes:      10,
		AutoStart:              true,
	}
}

// Seconds is the full length of an interval of the given type.
func (c Config) Seconds(t SessionType) int {
	var minutes int
	switch t {
	case TypeWork:
		minutes = c.WorkMinutes
	case TypeBreak:
		minutes = c.BreakMinutes
	case TypeLongBreak:
		minutes = c.LongBreakMinutes
	case TypeMeditation:
		minutes = c.MeditationMinutes
	case TypeCustom:
		minutes = c.CustomMinutes
	}
	if minutes < 1 {
		minutes = 1
	}
	return minutes * 60
}

func firstType(m Mode) SessionType {
	switch m {
	case ModeCustom:
		return TypeCustom
	case ModeMeditation:
		return TypeMeditation
	default:
		return TypeWork
	}
}

// Session is the timer record kept in the state store.
type Session struct {
	Mode      Mode        `json:"mode"`
	Type      SessionType `json:"type"`
	Remaining int         `json:"remaining"`
	Total     int         `json:"total"`
	Index     int         `json:"index"`
	Completed int         `json:"completed"`
	State     State       `json:"state"`
}

func NewSession(mode Mode, cfg Config) Session {
	t := firstType(mode)
	total := cfg.Seconds(t)
	return Session{
		Mode:      mode,
		Type:      t,
		Remaining: total,
		Total:     total,
		Index:     1,
		State:     StateIdle,
	}
}

func (s Session) Running() bool { return s.State == StateRunning }
func (s Session) Paused() bool  { return s.State == StatePaused }

// Elapsed is the time spent in the current interval.
func (s Session) Elapsed() time.Duration {
	return time.Duration(s.Total-s.Remaining) * time.Second
}

// Completion is emitted once for every interval that reaches zero.
type Completion struct {
	Mode    Mode        `json:"mode"`
	Type    SessionType `json:"type"`
	Seconds int         `json:"seconds"`
	Index   int         `json:"index"`
	At      time.Time   `json:"at"`
}
