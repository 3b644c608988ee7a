package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickwise/internal/alarm"
	"tickwise/internal/clock"
)

type memSource map[string]alarm.Alarm

func (m memSource) Alarm(id string) (alarm.Alarm, bool) {
	a, ok := m[id]
	return a, ok
}

func (m memSource) list() []alarm.Alarm {
	out := make([]alarm.Alarm, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	return out
}

// Monday 2024-01-01.
func monday(hour, minute int) time.Time {
	return time.Date(2024, time.January, 1, hour, minute, 0, 0, time.UTC)
}

func newAlarm(id string, hour, minute int, days ...time.Weekday) alarm.Alarm {
	return alarm.Alarm{
		ID: id, Label: id, Hour: hour, Minute: minute, Enabled: true,
		Days: alarm.Days(days...), CreatedAt: monday(0, 0), UpdatedAt: monday(0, 0),
	}
}

type recorder struct {
	fired []Fired
}

func (r *recorder) record(f Fired) { r.fired = append(r.fired, f) }

func setup(t *testing.T, now time.Time, alarms ...alarm.Alarm) (*Scheduler, *clock.Fake, memSource, *recorder) {
	t.Helper()
	clk := clock.NewFake(now)
	src := memSource{}
	for _, a := range alarms {
		src[a.ID] = a
	}
	s := New(clk, src, DefaultMaxSleep)
	rec := &recorder{}
	s.Subscribe(rec.record)
	return s, clk, src, rec
}

func TestScheduleOneIsIdempotent(t *testing.T) {
	a := newAlarm("a", 7, 0, time.Monday)
	s, clk, _, _ := setup(t, monday(6, 0), a)

	s.ScheduleOne(a, clk.Now())
	s.ScheduleOne(a, clk.Now())

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, clk.Pending())
	due, ok := s.Pending("a")
	require.True(t, ok)
	assert.Equal(t, monday(7, 0), due)
}

func TestFireNotifiesOnceAndRearmsRecurring(t *testing.T) {
	a := newAlarm("a", 7, 0, time.Monday, time.Wednesday)
	s, clk, _, rec := setup(t, monday(6, 0), a)

	s.ScheduleOne(a, clk.Now())
	clk.Advance(time.Hour)

	require.Len(t, rec.fired, 1)
	assert.Equal(t, "a", rec.fired[0].Alarm.ID)
	assert.Equal(t, monday(7, 0), rec.fired[0].Due)
	assert.Equal(t, monday(7, 0), rec.fired[0].At)
	assert.False(t, rec.fired[0].Missed)

	due, ok := s.Pending("a")
	require.True(t, ok)
	assert.Equal(t, monday(7, 0).AddDate(0, 0, 2), due)
}

func TestOneShotIsNotRearmed(t *testing.T) {
	a := newAlarm("a", 7, 0)
	s, clk, _, rec := setup(t, monday(6, 0), a)

	s.ScheduleOne(a, clk.Now())
	clk.Advance(48 * time.Hour)

	assert.Len(t, rec.fired, 1)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, clk.Pending())
}

func TestSleepIsCappedAndDueRechecked(t *testing.T) {
	a := newAlarm("a", 9, 0)
	s, clk, _, rec := setup(t, monday(6, 0), a)

	s.ScheduleOne(a, clk.Now())
	clk.Advance(DefaultMaxSleep)
	assert.Empty(t, rec.fired)
	assert.Equal(t, 1, clk.Pending())

	clk.Advance(3 * time.Hour)
	require.Len(t, rec.fired, 1)
	assert.Equal(t, monday(9, 0), rec.fired[0].At)
}

func TestCancel(t *testing.T) {
	a := newAlarm("a", 7, 0)
	s, clk, _, rec := setup(t, monday(6, 0), a)

	s.ScheduleOne(a, clk.Now())
	s.Cancel("a")
	s.Cancel("unknown")
	clk.Advance(2 * time.Hour)

	assert.Empty(t, rec.fired)
	assert.Equal(t, 0, s.Len())
}

func TestCancelAllIncludesSnooze(t *testing.T) {
	a := newAlarm("a", 7, 0)
	b := newAlarm("b", 8, 0)
	s, clk, _, rec := setup(t, monday(6, 0), a, b)

	s.ScheduleAll([]alarm.Alarm{a, b}, clk.Now())
	s.SnoozeAt(a, monday(6, 5))
	s.CancelAll()
	clk.Advance(24 * time.Hour)

	assert.Empty(t, rec.fired)
	assert.Equal(t, 0, clk.Pending())
}

func TestScheduleAllSkipsDisabledAndReplaces(t *testing.T) {
	a := newAlarm("a", 7, 0)
	b := newAlarm("b", 8, 0)
	b.Enabled = false
	s, clk, _, _ := setup(t, monday(6, 0), a, b)

	s.ScheduleAll([]alarm.Alarm{a, b}, clk.Now())
	s.ScheduleAll([]alarm.Alarm{a, b}, clk.Now())

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, clk.Pending())
	_, ok := s.Pending("b")
	assert.False(t, ok)
}

func TestDeletedAlarmCallbackIsStale(t *testing.T) {
	a := newAlarm("a", 7, 0, time.Monday)
	s, clk, src, rec := setup(t, monday(6, 0), a)

	s.ScheduleOne(a, clk.Now())
	delete(src, "a")
	clk.Advance(2 * time.Hour)

	assert.Empty(t, rec.fired)
	assert.Equal(t, 0, s.Len())
}

func TestRecoverFiresMissedAfterSuspend(t *testing.T) {
	a := newAlarm("a", 7, 0, time.Monday, time.Wednesday)
	s, clk, src, rec := setup(t, monday(6, 0), a)

	s.ScheduleOne(a, clk.Now())
	// The host sleeps through the alarm; no callback is delivered.
	clk.Jump(monday(9, 30))

	n := s.Recover(src.list(), clk.Now())
	assert.Equal(t, 1, n)
	require.Len(t, rec.fired, 1)
	assert.True(t, rec.fired[0].Missed)
	assert.Equal(t, monday(7, 0), rec.fired[0].Due)
	assert.Equal(t, monday(9, 30), rec.fired[0].At)

	// Delivering whatever is due now must not fire it again.
	clk.FireDue()
	assert.Len(t, rec.fired, 1)

	due, ok := s.Pending("a")
	require.True(t, ok)
	assert.Equal(t, monday(7, 0).AddDate(0, 0, 2), due)

	assert.Equal(t, 0, s.Recover(src.list(), clk.Now()))
}

func TestRecoverAtStartupUsesReference(t *testing.T) {
	a := newAlarm("a", 7, 0, time.Monday, time.Wednesday)
	last := monday(7, 0)
	a.LastTriggered = &last
	// Thursday 09:00: Wednesday 07:00 was missed while the daemon was down.
	now := monday(9, 0).AddDate(0, 0, 3)
	s, _, src, rec := setup(t, now, a)

	n := s.Recover(src.list(), now)
	assert.Equal(t, 1, n)
	require.Len(t, rec.fired, 1)
	assert.Equal(t, monday(7, 0).AddDate(0, 0, 2), rec.fired[0].Due)

	due, ok := s.Pending("a")
	require.True(t, ok)
	assert.Equal(t, monday(7, 0).AddDate(0, 0, 7), due)
}

func TestRecoverArmsFutureAlarms(t *testing.T) {
	a := newAlarm("a", 7, 0)
	s, clk, src, rec := setup(t, monday(6, 0), a)

	assert.Equal(t, 0, s.Recover(src.list(), clk.Now()))
	assert.Empty(t, rec.fired)
	due, ok := s.Pending("a")
	require.True(t, ok)
	assert.Equal(t, monday(7, 0), due)
}

func TestRecoverCancelsDisabled(t *testing.T) {
	a := newAlarm("a", 7, 0)
	s, clk, src, _ := setup(t, monday(6, 0), a)
	s.ScheduleOne(a, clk.Now())

	a.Enabled = false
	src["a"] = a
	s.Recover(src.list(), clk.Now())
	assert.Equal(t, 0, s.Len())
}

func TestSnoozeFiresOnce(t *testing.T) {
	a := newAlarm("a", 7, 0)
	s, clk, _, rec := setup(t, monday(7, 0), a)

	s.SnoozeAt(a, monday(7, 5))
	s.SnoozeAt(a, monday(7, 9))
	due, ok := s.SnoozeDue()
	require.True(t, ok)
	assert.Equal(t, monday(7, 9), due)
	assert.Equal(t, 0, s.Len())

	clk.Advance(10 * time.Minute)
	require.Len(t, rec.fired, 1)
	assert.True(t, rec.fired[0].Snooze)
	assert.Equal(t, monday(7, 9), rec.fired[0].At)

	_, ok = s.SnoozeDue()
	assert.False(t, ok)
}

func TestCancelSnooze(t *testing.T) {
	a := newAlarm("a", 7, 0)
	s, clk, _, rec := setup(t, monday(7, 0), a)

	s.SnoozeAt(a, monday(7, 5))
	s.CancelSnooze()
	clk.Advance(time.Hour)
	assert.Empty(t, rec.fired)
}

func TestSubscribersEachCalledOnce(t *testing.T) {
	a := newAlarm("a", 7, 0)
	s, clk, _, rec := setup(t, monday(6, 0), a)

	second := &recorder{}
	third := &recorder{}
	s.Subscribe(second.record)
	unsubscribe := s.Subscribe(third.record)
	unsubscribe()

	s.ScheduleOne(a, clk.Now())
	clk.Advance(time.Hour)

	assert.Len(t, rec.fired, 1)
	assert.Len(t, second.fired, 1)
	assert.Empty(t, third.fired)
}
