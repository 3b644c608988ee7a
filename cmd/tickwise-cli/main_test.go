package main

import (
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickwise/internal/alarm"
)

func TestCellPadsAndTruncates(t *testing.T) {
	assert.Equal(t, "ab   ", cell("ab", 5))
	assert.Equal(t, 6, runewidth.StringWidth(cell("起床の時間です", 6)))
	assert.Equal(t, "wake…", cell("wake up now", 5))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "00:00", formatSeconds(-3))
	assert.Equal(t, "25:00", formatSeconds(1500))
	assert.Equal(t, "1:01:05", formatSeconds(3665))
}

func TestImportArgsReproduceAlarm(t *testing.T) {
	now := time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)
	a := alarm.New("gym", 18, 45, alarm.Days(time.Tuesday, time.Thursday), now)
	a.SnoozeEnabled = false
	a.Volume = 0.4
	a.Enabled = false

	got, err := importArgs(a).Apply(alarm.New("", 0, 0, 0, now))
	require.NoError(t, err)
	assert.Equal(t, a.ID, importArgs(a).ID)
	assert.Equal(t, a.Hour, got.Hour)
	assert.Equal(t, a.Minute, got.Minute)
	assert.Equal(t, a.Days, got.Days)
	assert.Equal(t, a.Volume, got.Volume)
	assert.False(t, got.SnoozeEnabled)
	assert.False(t, got.Enabled)
}
