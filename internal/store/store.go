// Package store owns every domain record and applies actions to them. The
// scheduler, timer engine and goal tracker are built here over the store's
// own state. Nothing in this package locks; callers run it on the loop.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"tickwise/internal/alarm"
	"tickwise/internal/clock"
	"tickwise/internal/event"
	"tickwise/internal/goal"
	"tickwise/internal/scheduler"
	"tickwise/internal/storage"
	"tickwise/internal/timer"
)

var ErrDuplicateAlarm = errors.New("alarm already exists")

type State struct {
	Alarms []alarm.Alarm        `json:"alarms"`
	Active *alarm.ActiveTrigger `json:"active,omitempty"`
	Timer  timer.Session        `json:"timer"`
	Goals  goal.State           `json:"goals"`
}

// Clone returns a copy that shares no pointers with s.
func (s State) Clone() State {
	c := s
	c.Alarms = make([]alarm.Alarm, len(s.Alarms))
	for i, a := range s.Alarms {
		c.Alarms[i] = cloneAlarm(a)
	}
	if s.Active != nil {
		t := *s.Active
		t.Alarm = cloneAlarm(t.Alarm)
		if t.SnoozeUntil != nil {
			until := *t.SnoozeUntil
			t.SnoozeUntil = &until
		}
		c.Active = &t
	}
	return c
}

func cloneAlarm(a alarm.Alarm) alarm.Alarm {
	if a.LastTriggered != nil {
		last := *a.LastTriggered
		a.LastTriggered = &last
	}
	return a
}

type Options struct {
	MaxSleep    time.Duration
	Timer       timer.Config
	MaxSnoozes  int
	DailyTarget int
}

type Store struct {
	ctx   context.Context
	clock clock.Clock
	db    storage.Storage

	state  State
	snooze alarm.SnoozeManager
	sched  *scheduler.Scheduler
	engine *timer.Engine
	goals  *goal.Tracker
}

// Open loads the persisted records and wires the components. Nothing is
// armed until Start.
func Open(ctx context.Context, clk clock.Clock, db storage.Storage, opts Options) (*Store, error) {
	s := &Store{
		ctx:    ctx,
		clock:  clk,
		db:     db,
		snooze: alarm.SnoozeManager{MaxSnoozes: opts.MaxSnoozes},
	}

	if _, err := db.Get(ctx, storage.KeyAlarms, &s.state.Alarms); err != nil {
		return nil, fmt.Errorf("failed to load alarms: %w", err)
	}
	if _, err := db.Get(ctx, storage.KeyTimerSession, &s.state.Timer); err != nil {
		return nil, fmt.Errorf("failed to load timer session: %w", err)
	}
	if _, err := db.Get(ctx, storage.KeyGoals, &s.state.Goals); err != nil {
		return nil, fmt.Errorf("failed to load goals: %w", err)
	}

	for _, a := range s.state.Alarms {
		if err := a.Validate(); err != nil {
			log.Printf("Warning: stored alarm %s (%q) is invalid and will not be scheduled: %v", a.ID, a.Label, err)
		}
	}

	s.sched = scheduler.New(clk, s, opts.MaxSleep)
	s.engine = timer.NewEngine(clk, opts.Timer, &s.state.Timer)
	s.goals = goal.NewTracker(&s.state.Goals, opts.DailyTarget)

	s.sched.Subscribe(s.onFired)
	s.engine.Subscribe(s.onCompleted)

	log.Printf("Store opened: %d alarms, timer %s/%s %s", len(s.state.Alarms), s.state.Timer.Mode, s.state.Timer.Type, s.state.Timer.State)
	return s, nil
}

func (s *Store) Scheduler() *scheduler.Scheduler { return s.sched }
func (s *Store) Engine() *timer.Engine           { return s.engine }
func (s *Store) Goals() *goal.Tracker            { return s.goals }

// Alarm implements scheduler.AlarmSource.
func (s *Store) Alarm(id string) (alarm.Alarm, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return alarm.Alarm{}, false
	}
	return cloneAlarm(s.state.Alarms[i]), true
}

// Snapshot is a deep copy of the current state.
func (s *Store) Snapshot() State {
	return s.state.Clone()
}

// Alarms returns the alarms ordered by time of day.
func (s *Store) Alarms() []alarm.Alarm {
	out := s.state.Clone().Alarms
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Hour != out[j].Hour {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Minute < out[j].Minute
	})
	return out
}

// Reconfigure applies hot-reloaded settings.
func (s *Store) Reconfigure(opts Options) {
	s.engine.SetConfig(opts.Timer)
	s.goals.SetDailyTarget(opts.DailyTarget)
	s.snooze.MaxSnoozes = opts.MaxSnoozes
}

// Start rolls the goal day and runs the first recovery pass, which fires
// anything missed while the daemon was down and arms the rest.
func (s *Store) Start() {
	now := s.clock.Now()
	if s.goals.Rollover(now) {
		s.save(s.ctx, storage.KeyGoals, s.state.Goals)
	}
	n := s.sched.Recover(s.state.Alarms, now)
	log.Printf("Scheduler started: %d alarms armed, %d missed fired", s.sched.Len(), n)
}

// Maintain is the periodic pass: day rollover, recovery and a timer
// checkpoint.
func (s *Store) Maintain() {
	now := s.clock.Now()
	if s.goals.Rollover(now) {
		log.Printf("Goal day rolled over to %s", s.state.Goals.LastActiveDay)
		s.save(s.ctx, storage.KeyGoals, s.state.Goals)
	}
	if n := s.sched.Recover(s.state.Alarms, now); n > 0 {
		log.Printf("Recovery pass fired %d alarms", n)
	}
	s.save(s.ctx, storage.KeyTimerSession, s.state.Timer)
}

// Dispatch applies a. The in-memory transition always stands; a
// persistence failure is logged and returned after it.
func (s *Store) Dispatch(ctx context.Context, a Action) error {
	now := s.clock.Now()
	switch act := a.(type) {
	case AddAlarm:
		return s.addAlarm(ctx, act.Alarm, now)
	case UpdateAlarm:
		return s.updateAlarm(ctx, act.Alarm, now)
	case DeleteAlarm:
		return s.deleteAlarm(ctx, act.ID)
	case ToggleAlarm:
		return s.toggleAlarm(ctx, act.ID, act.Enabled, now)
	case SnoozeAlarm:
		return s.snoozeActive(now)
	case DismissAlarm:
		return s.dismissActive(now)
	case StartTimer:
		return s.timerOp(ctx, s.engine.Start)
	case PauseTimer:
		return s.timerOp(ctx, s.engine.Pause)
	case ResumeTimer:
		return s.timerOp(ctx, s.engine.Resume)
	case ResetTimer:
		return s.timerOp(ctx, func() error { s.engine.Reset(); return nil })
	case SkipTimer:
		return s.timerOp(ctx, s.engine.Skip)
	case SetTimerMode:
		return s.timerOp(ctx, func() error { return s.engine.SetMode(act.Mode) })
	default:
		return fmt.Errorf("unknown action %T", a)
	}
}

func (s *Store) addAlarm(ctx context.Context, a alarm.Alarm, now time.Time) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if s.indexOf(a.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateAlarm, a.ID)
	}
	if err := a.Validate(); err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	s.state.Alarms = append(s.state.Alarms, a)
	s.sched.ScheduleOne(a, now)
	log.Printf("Alarm added: %s %q at %s (%s)", a.ID, a.Label, a.TimeOfDay(), a.Days)
	return s.saveAlarms(ctx)
}

func (s *Store) updateAlarm(ctx context.Context, a alarm.Alarm, now time.Time) error {
	i := s.indexOf(a.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", alarm.ErrNotFound, a.ID)
	}
	if err := a.Validate(); err != nil {
		return err
	}
	old := s.state.Alarms[i]
	a.CreatedAt = old.CreatedAt
	a.LastTriggered = old.LastTriggered
	a.UpdatedAt = now
	s.state.Alarms[i] = a
	s.sched.ScheduleOne(a, now)
	if !a.Enabled {
		s.dismissIfActive(a.ID)
	}
	return s.saveAlarms(ctx)
}

func (s *Store) deleteAlarm(ctx context.Context, id string) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", alarm.ErrNotFound, id)
	}
	s.sched.Cancel(id)
	s.dismissIfActive(id)
	s.state.Alarms = append(s.state.Alarms[:i:i], s.state.Alarms[i+1:]...)
	log.Printf("Alarm deleted: %s", id)
	return s.saveAlarms(ctx)
}

func (s *Store) toggleAlarm(ctx context.Context, id string, enabled *bool, now time.Time) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", alarm.ErrNotFound, id)
	}
	a := &s.state.Alarms[i]
	if enabled != nil {
		a.Enabled = *enabled
	} else {
		a.Enabled = !a.Enabled
	}
	a.UpdatedAt = now
	if a.Enabled {
		s.sched.ScheduleOne(*a, now)
	} else {
		s.sched.Cancel(id)
		s.dismissIfActive(id)
	}
	return s.saveAlarms(ctx)
}

func (s *Store) snoozeActive(now time.Time) error {
	if s.state.Active == nil {
		return alarm.ErrNoActiveTrigger
	}
	cur, ok := s.Alarm(s.state.Active.AlarmID)
	if !ok {
		cur = s.state.Active.Alarm
	}
	t, err := s.snooze.Snooze(*s.state.Active, cur, now)
	if err != nil {
		return err
	}
	s.state.Active = &t
	s.sched.SnoozeAt(cur, *t.SnoozeUntil)
	log.Printf("Alarm %s snoozed until %s (%d)", cur.ID, t.SnoozeUntil.Format(time.Kitchen), t.SnoozeCount)
	s.record(event.Event{
		Timestamp: now,
		Type:      event.EventTypeAlarmSnoozed,
		Subject:   cur.ID,
		Label:     cur.Label,
		Value:     float64(t.SnoozeCount),
	})
	return nil
}

func (s *Store) dismissActive(now time.Time) error {
	s.sched.CancelSnooze()
	t, err := s.snooze.Dismiss(&s.state.Active)
	if err != nil {
		return err
	}
	log.Printf("Alarm %s dismissed after %d snoozes", t.AlarmID, t.SnoozeCount)
	s.record(event.Event{
		Timestamp: now,
		Type:      event.EventTypeAlarmDismissed,
		Subject:   t.AlarmID,
		Label:     t.Alarm.Label,
		Value:     float64(t.SnoozeCount),
	})
	return nil
}

func (s *Store) dismissIfActive(id string) {
	if s.state.Active == nil || s.state.Active.AlarmID != id {
		return
	}
	s.sched.CancelSnooze()
	s.snooze.Dismiss(&s.state.Active)
}

func (s *Store) timerOp(ctx context.Context, op func() error) error {
	if err := op(); err != nil {
		return err
	}
	return s.save(ctx, storage.KeyTimerSession, s.state.Timer)
}

// onFired runs inside the scheduler's fire, before it re-arms.
func (s *Store) onFired(f scheduler.Fired) {
	if f.Snooze {
		if s.state.Active == nil || s.state.Active.AlarmID != f.Alarm.ID {
			log.Printf("Warning: snooze for %s ended with no matching active alarm", f.Alarm.ID)
			return
		}
		t := s.snooze.Wake(*s.state.Active, f.At)
		s.state.Active = &t
		s.record(event.Event{Timestamp: f.At, Type: event.EventTypeAlarmFired, Subject: f.Alarm.ID, Label: f.Alarm.Label, Value: float64(t.SnoozeCount), Tag: "snooze"})
		return
	}

	if prev := s.state.Active; prev != nil {
		log.Printf("Warning: alarm %s fired while %s was active, replacing it", f.Alarm.ID, prev.AlarmID)
		s.sched.CancelSnooze()
	}
	s.state.Active = &alarm.ActiveTrigger{AlarmID: f.Alarm.ID, Alarm: f.Alarm, FiredAt: f.At}

	if i := s.indexOf(f.Alarm.ID); i >= 0 {
		a := &s.state.Alarms[i]
		at := f.At
		a.LastTriggered = &at
		if !a.Recurring() {
			a.Enabled = false
		}
		s.state.Active.Alarm = cloneAlarm(*a)
		s.saveAlarms(s.ctx)
	}

	tag := ""
	if f.Missed {
		tag = "missed"
	}
	log.Printf("Alarm fired: %s %q (due %s)", f.Alarm.ID, f.Alarm.Label, f.Due.Format(time.RFC3339))
	s.record(event.Event{Timestamp: f.At, Type: event.EventTypeAlarmFired, Subject: f.Alarm.ID, Label: f.Alarm.Label, Tag: tag})
}

func (s *Store) onCompleted(c timer.Completion) {
	if s.goals.Record(c) {
		s.save(s.ctx, storage.KeyGoals, s.state.Goals)
	}
	s.record(event.Event{
		Timestamp: c.At,
		Type:      event.EventTypeSessionCompleted,
		Subject:   string(c.Type),
		Value:     float64(c.Seconds),
		Tag:       string(c.Mode),
		Notes:     fmt.Sprintf("Interval %d", c.Index),
	})
}

// Close stops every timer source and writes the final records.
func (s *Store) Close(ctx context.Context) error {
	s.engine.Close()
	s.sched.CancelAll()
	return multierr.Combine(
		s.save(ctx, storage.KeyTimerSession, s.state.Timer),
		s.save(ctx, storage.KeyGoals, s.state.Goals),
		s.saveAlarms(ctx),
	)
}

func (s *Store) indexOf(id string) int {
	for i := range s.state.Alarms {
		if s.state.Alarms[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) saveAlarms(ctx context.Context) error {
	alarms := s.state.Alarms
	if alarms == nil {
		alarms = []alarm.Alarm{}
	}
	return s.save(ctx, storage.KeyAlarms, alarms)
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	if err := s.db.Put(ctx, key, v); err != nil {
		log.Printf("Warning: failed to persist %s: %v", key, err)
		return err
	}
	return nil
}

func (s *Store) record(e event.Event) {
	if _, err := s.db.SaveEvent(s.ctx, e); err != nil {
		log.Printf("Warning: failed to save %s event: %v", e.Type, err)
	}
}
