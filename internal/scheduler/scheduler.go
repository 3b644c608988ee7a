package scheduler

import (
	"log"
	"time"

	"tickwise/internal/alarm"
	"tickwise/internal/clock"
)

const DefaultMaxSleep = 60 * time.Second

// snoozeKey is the table key of the single snooze handle. Alarm ids are
// uuids, so it cannot collide.
const snoozeKey = "\x00snooze"

// Fired is emitted to subscribers when an alarm goes off.
type Fired struct {
	Alarm alarm.Alarm
	// Due is the instant the alarm was scheduled for, At when it actually fired.
	Due time.Time
	At  time.Time
	// Snooze marks a re-ring at the end of a snooze.
	Snooze bool
	// Missed marks a fire found by Recover after the due instant had passed.
	Missed bool
}

// AlarmSource gives the scheduler read access to the current alarm records
// so that a callback can re-derive eligibility when it runs.
type AlarmSource interface {
	Alarm(id string) (alarm.Alarm, bool)
}

type entry struct {
	alarmID string
	due     time.Time
	seq     uint64
	timer   clock.Timer
}

type subscriber struct {
	id int
	fn func(Fired)
}

// Scheduler owns the handle table. All state here is scheduling detail.
type Scheduler struct {
	clock    clock.Clock
	source   AlarmSource
	maxSleep time.Duration

	pending map[string]*entry
	seq     uint64

	subs    []subscriber
	nextSub int
}

func New(clk clock.Clock, source AlarmSource, maxSleep time.Duration) *Scheduler {
	if maxSleep <= 0 {
		maxSleep = DefaultMaxSleep
	}
	return &Scheduler{
		clock:    clk,
		source:   source,
		maxSleep: maxSleep,
		pending:  make(map[string]*entry),
	}
}

// Subscribe registers fn for every fire. The returned func removes it.
func (s *Scheduler) Subscribe(fn func(Fired)) (unsubscribe func()) {
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// ScheduleAll drops every alarm handle and arms the enabled alarms afresh.
// The snooze handle is left alone.
func (s *Scheduler) ScheduleAll(alarms []alarm.Alarm, now time.Time) {
	for key := range s.pending {
		if key != snoozeKey {
			s.cancel(key)
		}
	}
	for _, a := range alarms {
		s.ScheduleOne(a, now)
	}
}

// ScheduleOne replaces any handle for the alarm. Disabled alarms are only
// cancelled.
func (s *Scheduler) ScheduleOne(a alarm.Alarm, now time.Time) {
	s.cancel(a.ID)
	if !a.Enabled {
		return
	}
	next, ok := alarm.NextTrigger(a, now)
	if !ok {
		log.Printf("Warning: alarm %s has malformed time %s, not scheduled", a.ID, a.TimeOfDay())
		return
	}
	s.arm(a.ID, a.ID, next)
}

// Cancel removes the alarm's handle. Unknown ids are ignored.
func (s *Scheduler) Cancel(id string) {
	if id == snoozeKey {
		return
	}
	s.cancel(id)
}

// CancelAll removes every handle, the snooze handle included.
func (s *Scheduler) CancelAll() {
	for key := range s.pending {
		s.cancel(key)
	}
}

// Pending reports the instant an alarm is armed for.
func (s *Scheduler) Pending(id string) (time.Time, bool) {
	if id == snoozeKey {
		return time.Time{}, false
	}
	e, ok := s.pending[id]
	if !ok {
		return time.Time{}, false
	}
	return e.due, true
}

// Len is the number of armed alarm handles, not counting snooze.
func (s *Scheduler) Len() int {
	n := len(s.pending)
	if _, ok := s.pending[snoozeKey]; ok {
		n--
	}
	return n
}

// SnoozeAt arms the single snooze handle for the alarm, replacing any
// earlier one.
func (s *Scheduler) SnoozeAt(a alarm.Alarm, until time.Time) {
	s.arm(snoozeKey, a.ID, until)
}

func (s *Scheduler) CancelSnooze() {
	s.cancel(snoozeKey)
}

// SnoozeDue reports the pending snooze deadline.
func (s *Scheduler) SnoozeDue() (time.Time, bool) {
	e, ok := s.pending[snoozeKey]
	if !ok {
		return time.Time{}, false
	}
	return e.due, true
}

// Recover fires every enabled alarm whose due instant is not after now and
// makes sure the rest are armed. The due instant is the armed one if a
// handle exists, otherwise the first occurrence after the alarm's
// Reference. Several missed occurrences of one alarm fire once.
func (s *Scheduler) Recover(alarms []alarm.Alarm, now time.Time) int {
	fired := 0
	for _, a := range alarms {
		if !a.Enabled {
			s.cancel(a.ID)
			continue
		}
		due, armed := s.Pending(a.ID)
		if !armed {
			var ok bool
			due, ok = alarm.NextTrigger(a, a.Reference())
			if !ok {
				continue
			}
		}
		if due.After(now) {
			if !armed {
				s.arm(a.ID, a.ID, due)
			}
			continue
		}
		log.Printf("Recovering missed alarm %s (%q), due %s", a.ID, a.Label, due.Format(time.RFC3339))
		s.fire(a.ID, due, now, true)
		fired++
	}

	if e, ok := s.pending[snoozeKey]; ok && !e.due.After(now) {
		s.fireSnooze(e, now)
		fired++
	}
	return fired
}

func (s *Scheduler) arm(key, alarmID string, due time.Time) {
	s.cancel(key)
	s.seq++
	e := &entry{alarmID: alarmID, due: due, seq: s.seq}
	s.pending[key] = e
	s.wait(key, e)
}

func (s *Scheduler) wait(key string, e *entry) {
	d := e.due.Sub(s.clock.Now())
	if d > s.maxSleep {
		d = s.maxSleep
	}
	if d < 0 {
		d = 0
	}
	seq := e.seq
	e.timer = s.clock.AfterFunc(d, func() { s.onTimer(key, seq) })
}

func (s *Scheduler) cancel(key string) {
	e, ok := s.pending[key]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.pending, key)
}

// onTimer runs on the loop when a capped sleep ends.
func (s *Scheduler) onTimer(key string, seq uint64) {
	e, ok := s.pending[key]
	if !ok || e.seq != seq {
		// Superseded or cancelled after the timer had already fired.
		return
	}
	now := s.clock.Now()
	if now.Before(e.due) {
		s.wait(key, e)
		return
	}
	if key == snoozeKey {
		s.fireSnooze(e, now)
		return
	}
	s.fire(key, e.due, now, false)
}

func (s *Scheduler) fire(id string, due, now time.Time, missed bool) {
	s.cancel(id)
	a, ok := s.source.Alarm(id)
	if !ok || !a.Enabled {
		log.Printf("Dropping stale callback for alarm %s", id)
		return
	}

	s.emit(Fired{Alarm: a, Due: due, At: now, Missed: missed})

	// Re-read: a subscriber may have edited or removed the alarm.
	a, ok = s.source.Alarm(id)
	if !ok || !a.Enabled || !a.Recurring() {
		return
	}
	if _, armed := s.pending[id]; armed {
		return
	}
	from := now
	if due.After(from) {
		from = due
	}
	if next, ok := alarm.NextTrigger(a, from); ok {
		s.arm(id, id, next)
	}
}

func (s *Scheduler) fireSnooze(e *entry, now time.Time) {
	s.cancel(snoozeKey)
	a, ok := s.source.Alarm(e.alarmID)
	if !ok {
		log.Printf("Dropping snooze for deleted alarm %s", e.alarmID)
		return
	}
	s.emit(Fired{Alarm: a, Due: e.due, At: now, Snooze: true})
}

func (s *Scheduler) emit(f Fired) {
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	for _, sub := range subs {
		sub.fn(f)
	}
}
