package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickwise/internal/clock"
	"tickwise/internal/config"
	"tickwise/internal/ipc"
	"tickwise/internal/loop"
	"tickwise/internal/notify"
	"tickwise/internal/store"
	"tickwise/internal/timer"

	sqlitestore "tickwise/internal/storage/sqlite"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DatabasePath: filepath.Join(dir, "tickwise.db"),
		SocketPath:   filepath.Join(dir, "tw.sock"),
		Pomodoro:     config.PomodoroConfig{FocusMinutes: 25, ShortBreakMinutes: 5, LongBreakMinutes: 15, LongBreakInterval: 4, AutoStart: true},
		Timer:        config.TimerConfig{CustomMinutes: 30, MeditationMinutes: 10},
		Alarm:        config.AlarmConfig{DefaultSnoozeMinutes: 7, DefaultVolume: 0.8},
		Scheduler:    config.SchedulerConfig{MaxSleep: time.Minute, RecoveryInterval: time.Minute},
		Goals:        config.GoalsConfig{DailySessions: 4},
	}
}

func startApp(t *testing.T) (*App, string) {
	t.Helper()
	cfg := testConfig(t)
	a, err := NewApp(cfg, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run() }()
	t.Cleanup(func() {
		a.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	require.Eventually(t, func() bool {
		reply, err := ipc.Call(cfg.SocketPath, ipc.Command{Name: ipc.CmdPing}, time.Second)
		return err == nil && reply.Success
	}, 5*time.Second, 20*time.Millisecond)
	return a, cfg.SocketPath
}

func call(t *testing.T, sock string, cmd ipc.Command) ipc.Reply {
	t.Helper()
	reply, err := ipc.Call(sock, cmd, 5*time.Second)
	require.NoError(t, err)
	return reply
}

func TestAlarmCommands(t *testing.T) {
	_, sock := startApp(t)

	reply := call(t, sock, ipc.Command{Name: ipc.CmdAlarmAdd, Args: ipc.AlarmArgs{Label: "wake", Time: "07:30"}})
	require.True(t, reply.Success, reply.Message)
	var added ipc.AlarmInfo
	require.NoError(t, reply.Decode(&added))
	assert.Equal(t, 7, added.Hour)
	assert.Equal(t, 30, added.Minute)
	assert.Equal(t, 7, added.SnoozeMinutes)
	assert.Equal(t, 0.8, added.Volume)
	require.NotNil(t, added.Next)

	reply = call(t, sock, ipc.Command{Name: ipc.CmdAlarmAdd, Args: ipc.AlarmArgs{Label: "bad", Time: "31:00"}})
	assert.False(t, reply.Success)

	reply = call(t, sock, ipc.Command{Name: ipc.CmdAlarmAdd, Args: ipc.AlarmArgs{Label: "none"}})
	assert.False(t, reply.Success)

	days := "mon,fri"
	reply = call(t, sock, ipc.Command{Name: ipc.CmdAlarmUpdate, Args: ipc.AlarmArgs{ID: added.ID, Days: &days}})
	require.True(t, reply.Success, reply.Message)

	off := false
	reply = call(t, sock, ipc.Command{Name: ipc.CmdAlarmToggle, Args: ipc.ToggleArgs{ID: added.ID, Enabled: &off}})
	require.True(t, reply.Success, reply.Message)

	reply = call(t, sock, ipc.Command{Name: ipc.CmdAlarmList})
	require.True(t, reply.Success)
	var list []ipc.AlarmInfo
	require.NoError(t, reply.Decode(&list))
	require.Len(t, list, 1)
	assert.False(t, list[0].Enabled)
	assert.Nil(t, list[0].Next)
	assert.Equal(t, "mon,fri", list[0].Days.String())

	reply = call(t, sock, ipc.Command{Name: ipc.CmdAlarmSnooze})
	assert.False(t, reply.Success)

	reply = call(t, sock, ipc.Command{Name: ipc.CmdAlarmDelete, Args: ipc.IDArgs{ID: added.ID}})
	require.True(t, reply.Success, reply.Message)
	reply = call(t, sock, ipc.Command{Name: ipc.CmdAlarmDelete, Args: ipc.IDArgs{ID: added.ID}})
	assert.False(t, reply.Success)
}

func TestTimerCommandsAndStatus(t *testing.T) {
	_, sock := startApp(t)

	reply := call(t, sock, ipc.Command{Name: ipc.CmdTimerStart})
	require.True(t, reply.Success, reply.Message)
	var st ipc.StatusData
	require.NoError(t, reply.Decode(&st))
	assert.Equal(t, timer.StateRunning, st.Timer.State)
	assert.Equal(t, timer.TypeWork, st.Timer.Type)

	reply = call(t, sock, ipc.Command{Name: ipc.CmdTimerStart})
	assert.False(t, reply.Success)

	require.True(t, call(t, sock, ipc.Command{Name: ipc.CmdTimerPause}).Success)
	require.True(t, call(t, sock, ipc.Command{Name: ipc.CmdTimerSkip}).Success)
	reply = call(t, sock, ipc.Command{Name: ipc.CmdTimerMode, Args: ipc.ModeArgs{Mode: "meditation"}})
	require.True(t, reply.Success, reply.Message)
	assert.False(t, call(t, sock, ipc.Command{Name: ipc.CmdTimerMode, Args: ipc.ModeArgs{Mode: "nap"}}).Success)

	reply = call(t, sock, ipc.Command{Name: ipc.CmdStatus})
	require.True(t, reply.Success)
	st = ipc.StatusData{}
	require.NoError(t, reply.Decode(&st))
	assert.Equal(t, timer.ModeMeditation, st.Timer.Mode)
	assert.Equal(t, 600, st.Timer.Total)
	assert.Equal(t, 4, st.Goals.DailyTarget)

	assert.False(t, call(t, sock, ipc.Command{Name: "launch_rocket"}).Success)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingNotifier) Notify(_ context.Context, m notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recordingNotifier) messages() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.msgs...)
}

// newLoopApp wires an App around a fake clock without the socket.
func newLoopApp(t *testing.T) (*App, *clock.Fake, *recordingNotifier) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db := sqlitestore.NewSQLiteStore(filepath.Join(t.TempDir(), "tickwise.db"))
	require.NoError(t, db.Init(ctx))
	t.Cleanup(func() { db.Close() })

	clk := clock.NewFake(time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC))
	st, err := store.Open(ctx, clk, db, store.Options{MaxSleep: time.Minute, Timer: timer.DefaultConfig(), DailyTarget: 4})
	require.NoError(t, err)

	rec := &recordingNotifier{}
	a := &App{
		cfg:     testConfig(t),
		storage: db,
		loop:    loop.New(),
		store:   st,
		alerts:  &notify.Channel{Notifier: rec},
		ctx:     ctx,
		cancel:  cancel,
	}
	a.loop.Start()
	t.Cleanup(a.loop.Stop)
	return a, clk, rec
}

func TestCompletionNoticeNamesNextInterval(t *testing.T) {
	a, clk, rec := newLoopApp(t)
	ctx := context.Background()

	var startErr error
	require.NoError(t, a.loop.Do(ctx, func() {
		a.store.Engine().Subscribe(a.onSessionCompleted)
		startErr = a.store.Dispatch(ctx, store.StartTimer{})
	}))
	require.NoError(t, startErr)
	require.NoError(t, a.loop.Do(ctx, func() { clk.Advance(25 * time.Minute) }))
	// The notice is posted behind the completion; this job runs after it.
	require.NoError(t, a.loop.Do(ctx, func() {}))
	a.alerts.Wait()

	msgs := rec.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "work finished", msgs[0].Title)
	assert.Equal(t, "25:00 done. Next: break (05:00)", msgs[0].Body)
}

func TestCompletionMessageOutsidePomodoro(t *testing.T) {
	c := timer.Completion{Mode: timer.ModeMeditation, Type: timer.TypeMeditation, Seconds: 600}
	next := timer.Session{Mode: timer.ModeMeditation, Type: timer.TypeMeditation, Total: 600, State: timer.StateExpired}

	m := completionMessage(c, next)
	assert.Equal(t, "meditation finished", m.Title)
	assert.Equal(t, "10:00 done.", m.Body)
}
