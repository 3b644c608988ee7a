package goal

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickwise/internal/timer"
)

func day(n, hour int) time.Time {
	return time.Date(2024, time.March, n, hour, 0, 0, 0, time.UTC)
}

func work(at time.Time) timer.Completion {
	return timer.Completion{Mode: timer.ModePomodoro, Type: timer.TypeWork, Seconds: 1500, Index: 1, At: at}
}

func TestRecordAccumulatesToday(t *testing.T) {
	var s State
	tr := NewTracker(&s, 4)

	assert.True(t, tr.Record(work(day(1, 9))))
	assert.True(t, tr.Record(work(day(1, 10))))
	assert.False(t, tr.Record(timer.Completion{Type: timer.TypeBreak, Seconds: 300, At: day(1, 11)}))

	assert.Equal(t, "2024-03-01", s.LastActiveDay)
	assert.Equal(t, 2, s.Sessions)
	assert.Equal(t, 3000, s.FocusSeconds)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 1, s.LongestStreak)
	assert.InDelta(t, 0.5, tr.Progress(), 0.001)
}

func TestMeditationQualifies(t *testing.T) {
	var s State
	tr := NewTracker(&s, 0)
	assert.True(t, tr.Record(timer.Completion{Type: timer.TypeMeditation, Seconds: 600, At: day(1, 7)}))
	assert.False(t, tr.Record(timer.Completion{Type: timer.TypeCustom, Seconds: 600, At: day(1, 8)}))
	assert.Equal(t, 1, s.Sessions)
	assert.Equal(t, 0.0, tr.Progress())
}

func TestStreakExtendsAcrossConsecutiveDays(t *testing.T) {
	var s State
	tr := NewTracker(&s, 0)

	tr.Record(work(day(1, 9)))
	assert.True(t, tr.Rollover(day(2, 8)))
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 0, s.Sessions)
	assert.Equal(t, 0, s.FocusSeconds)

	tr.Record(work(day(2, 9)))
	tr.Record(work(day(3, 9)))
	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 3, s.LongestStreak)
}

func TestStreakResetsAfterGap(t *testing.T) {
	var s State
	tr := NewTracker(&s, 0)

	tr.Record(work(day(1, 9)))
	tr.Record(work(day(2, 9)))
	tr.Rollover(day(4, 8))
	assert.Equal(t, 0, s.CurrentStreak)
	assert.Equal(t, 2, s.LongestStreak)

	tr.Record(work(day(4, 9)))
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 2, s.LongestStreak)
}

func TestStreakResetsWhenYesterdayWasEmpty(t *testing.T) {
	var s State
	tr := NewTracker(&s, 0)

	tr.Record(work(day(1, 9)))
	tr.Rollover(day(2, 8)) // process started, nothing done on day 2
	tr.Rollover(day(3, 8))
	assert.Equal(t, 0, s.CurrentStreak)
}

func TestRolloverSameDayAndClockSetBack(t *testing.T) {
	var s State
	tr := NewTracker(&s, 0)
	tr.Record(work(day(5, 9)))

	assert.False(t, tr.Rollover(day(5, 23)))
	assert.False(t, tr.Rollover(day(4, 9)))
	assert.Equal(t, 1, s.Sessions)
	assert.Equal(t, "2024-03-05", s.LastActiveDay)
}

func TestRolloverAcrossMonthEnd(t *testing.T) {
	s := State{LastActiveDay: "2024-02-29", Sessions: 1, CurrentStreak: 5, LongestStreak: 5}
	tr := NewTracker(&s, 0)
	tr.Rollover(day(1, 9))
	assert.Equal(t, 5, s.CurrentStreak)
}

func TestLongestStreakNeverDecreases(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var s State
	tr := NewTracker(&s, 0)

	now := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	prev := 0
	for i := 0; i < 500; i++ {
		now = now.AddDate(0, 0, rng.Intn(3))
		if rng.Intn(2) == 0 {
			tr.Rollover(now)
		} else {
			tr.Record(work(now))
		}
		require.GreaterOrEqual(t, s.LongestStreak, prev)
		require.GreaterOrEqual(t, s.LongestStreak, s.CurrentStreak)
		prev = s.LongestStreak
	}
	assert.Greater(t, prev, 0)
}
