package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickwise/internal/alarm"
	"tickwise/internal/event"
	"tickwise/internal/storage"
	"tickwise/internal/timer"
)

func setupTestDB(t *testing.T) (storage.Storage, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test_tickwise.db")
	store := NewSQLiteStore(dbPath)
	err := store.Init(context.Background())
	require.NoError(t, err, "Failed to initialize test database")

	cleanup := func() {
		err := store.Close()
		assert.NoError(t, err, "Failed to close test database")
	}

	return store, cleanup
}

func TestSaveAndGetEvent(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	testEvent := event.Event{
		Timestamp: now,
		Type:      event.EventTypeAlarmFired,
		Subject:   "alarm-1",
		Label:     "Wake up",
		Value:     2,
		Tag:       "missed",
		Notes:     "These are test notes.",
	}

	id, err := store.SaveEvent(ctx, testEvent)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	retrievedEvents, err := store.GetEvents(ctx, now.Add(-1*time.Minute), now.Add(1*time.Minute))
	require.NoError(t, err)
	require.Len(t, retrievedEvents, 1)

	retrieved := retrievedEvents[0]
	assert.Equal(t, id, retrieved.ID)
	assert.Equal(t, testEvent.Type, retrieved.Type)
	assert.Equal(t, testEvent.Timestamp, retrieved.Timestamp.UTC().Truncate(time.Second))
	assert.Equal(t, testEvent.Subject, retrieved.Subject)
	assert.Equal(t, testEvent.Label, retrieved.Label)
	assert.InDelta(t, testEvent.Value, retrieved.Value, 0.001)
	assert.Equal(t, testEvent.Tag, retrieved.Tag)
	assert.Equal(t, testEvent.Notes, retrieved.Notes)
}

func TestGetEventsFiltering(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	t1 := time.Now().UTC().Add(-10 * time.Minute).Truncate(time.Second)
	t2 := t1.Add(1 * time.Minute)
	t3 := t1.Add(5 * time.Minute)
	t4 := t1.Add(15 * time.Minute)

	events := []event.Event{
		{Timestamp: t1, Type: event.EventTypeAlarmFired, Subject: "A"},
		{Timestamp: t2, Type: event.EventTypeSessionCompleted, Subject: string(timer.TypeWork)},
		{Timestamp: t3, Type: event.EventTypeAlarmFired, Subject: "B"},
		{Timestamp: t4, Type: event.EventTypeAlarmDismissed, Subject: "B"},
	}

	for _, e := range events {
		_, err := store.SaveEvent(ctx, e)
		require.NoError(t, err)
	}

	retrieved, err := store.GetEvents(ctx, t1, t3)
	require.NoError(t, err)
	require.Len(t, retrieved, 3)
	assert.Equal(t, "A", retrieved[0].Subject)
	assert.Equal(t, "work", retrieved[1].Subject)
	assert.Equal(t, "B", retrieved[2].Subject)

	retrieved, err = store.GetEvents(ctx, t1.Add(-time.Hour), t4.Add(time.Hour), event.EventTypeAlarmFired)
	require.NoError(t, err)
	require.Len(t, retrieved, 2)

	retrieved, err = store.GetEvents(ctx, t1.Add(-time.Hour), t4.Add(time.Hour), event.EventTypeSessionCompleted, event.EventTypeAlarmDismissed)
	require.NoError(t, err)
	require.Len(t, retrieved, 2)
	assert.Equal(t, event.EventTypeSessionCompleted, retrieved[0].Type)
	assert.Equal(t, event.EventTypeAlarmDismissed, retrieved[1].Type)

	retrieved, err = store.GetEvents(ctx, t1.Add(10*time.Hour), t4.Add(11*time.Hour))
	require.NoError(t, err)
	assert.Len(t, retrieved, 0)
}

func TestPutGetMissingKey(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	var out []alarm.Alarm
	found, err := store.Get(context.Background(), storage.KeyAlarms, &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, out)
}

func TestPutOverwrites(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, storage.KeyTimerSession, timer.Session{Mode: timer.ModeCustom, Remaining: 10, Total: 60}))
	require.NoError(t, store.Put(ctx, storage.KeyTimerSession, timer.Session{Mode: timer.ModePomodoro, Remaining: 20, Total: 1500}))

	var s timer.Session
	found, err := store.Get(ctx, storage.KeyTimerSession, &s)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, timer.ModePomodoro, s.Mode)
	assert.Equal(t, 20, s.Remaining)
}

func TestAlarmRoundTripKeepsNextTrigger(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "roundtrip.db")
	ctx := context.Background()
	created := time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)
	fired := created.Add(23 * time.Hour)

	daily := alarm.New("daily", 7, 0, alarm.AllDays, created)
	weekly := alarm.New("weekly", 18, 30, alarm.Days(time.Friday), created)
	once := alarm.New("once", 23, 59, 0, created)
	once.LastTriggered = &fired
	alarms := []alarm.Alarm{daily, weekly, once}

	first := NewSQLiteStore(dbPath)
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.Put(ctx, storage.KeyAlarms, alarms))
	require.NoError(t, first.Close())

	second := NewSQLiteStore(dbPath)
	require.NoError(t, second.Init(ctx))
	defer second.Close()
	var loaded []alarm.Alarm
	found, err := second.Get(ctx, storage.KeyAlarms, &loaded)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, loaded, len(alarms))

	nows := []time.Time{
		created,
		time.Date(2024, time.January, 5, 18, 30, 0, 0, time.UTC),
		time.Date(2024, time.March, 31, 2, 15, 0, 0, time.UTC),
	}
	for i := range alarms {
		assert.Equal(t, alarms[i].Days, loaded[i].Days)
		assert.True(t, alarms[i].Reference().Equal(loaded[i].Reference()))
		for _, now := range nows {
			want, _ := alarm.NextTrigger(alarms[i], now)
			got, _ := alarm.NextTrigger(loaded[i], now)
			assert.True(t, want.Equal(got), "alarm %s at %s", alarms[i].Label, now)
		}
	}
}

func TestCloseDB(t *testing.T) {
	store, cleanup := setupTestDB(t)
	cleanup()

	ctx := context.Background()
	_, err := store.SaveEvent(ctx, event.Event{Timestamp: time.Now(), Type: event.EventTypeAlarmFired})
	assert.Error(t, err)
	assert.Error(t, store.Put(ctx, storage.KeyGoals, 1))
}
