package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"tickwise/internal/alarm"
	"tickwise/internal/clock"
	"tickwise/internal/config"
	"tickwise/internal/event"
	"tickwise/internal/ipc"
	"tickwise/internal/loop"
	"tickwise/internal/notify"
	"tickwise/internal/scheduler"
	"tickwise/internal/storage"
	"tickwise/internal/store"
	"tickwise/internal/timer"

	sqlitestore "tickwise/internal/storage/sqlite"
)

// commandTimeout bounds how long one IPC command may wait for the loop.
const commandTimeout = 5 * time.Second

type App struct {
	cfg    *config.Config
	loader *config.Loader

	storage storage.Storage
	loop    *loop.Loop
	store   *store.Store
	alerts  *notify.Channel
	dbus    *notify.DBusNotifier

	// --- Socket Handling ---
	socketPath string
	listener   *net.UnixListener

	wg     conc.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewApp(cfg *config.Config, loader *config.Loader) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:        cfg,
		loader:     loader,
		socketPath: cfg.SocketPath,
		loop:       loop.New(),
		ctx:        ctx,
		cancel:     cancel,
	}
	if a.socketPath == "" {
		a.socketPath = ipc.DefaultSocketPath
	}

	// Initialize Storage
	a.storage = sqlitestore.NewSQLiteStore(cfg.DatabasePath)
	if err := a.storage.Init(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Every clock callback is posted to the loop, so the core never sees
	// two goroutines.
	clk := clock.Real{Post: a.loop.Post}
	st, err := store.Open(ctx, clk, a.storage, storeOptions(cfg))
	if err != nil {
		a.storage.Close()
		cancel()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.store = st

	a.alerts = &notify.Channel{Player: notify.CommandPlayer{Command: cfg.Notify.PlayerCommand}}
	if cfg.Notify.Enabled {
		n, err := notify.NewDBusNotifier()
		if err != nil {
			log.Printf("Warning: Desktop notifications unavailable: %v. Logging them instead.", err)
			a.alerts.Notifier = notify.LogNotifier{}
		} else {
			a.dbus = n
			a.alerts.Notifier = n
		}
	} else {
		a.alerts.Notifier = notify.LogNotifier{}
	}

	return a, nil
}

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		MaxSleep:    cfg.Scheduler.MaxSleep,
		Timer:       cfg.TimerConfig(),
		MaxSnoozes:  cfg.Alarm.MaxSnoozes,
		DailyTarget: cfg.Goals.DailySessions,
	}
}

// setupSocket checks for existing socket and creates the listener
func (a *App) setupSocket() error {
	if _, err := os.Stat(a.socketPath); err == nil {
		// Socket file exists, try to connect
		conn, err := net.DialTimeout("unix", a.socketPath, 1*time.Second)
		if err == nil {
			conn.Close()
			return fmt.Errorf("socket %s already active, another instance might be running", a.socketPath)
		}
		log.Printf("Stale socket file found at %s, removing.", a.socketPath)
		if err := os.Remove(a.socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket file %s: %w", a.socketPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("error checking socket file %s: %w", a.socketPath, err)
	}

	addr, err := net.ResolveUnixAddr("unix", a.socketPath)
	if err != nil {
		return fmt.Errorf("failed to resolve unix addr %s: %w", a.socketPath, err)
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", a.socketPath, err)
	}
	if err := os.Chmod(a.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set permissions on socket %s: %w", a.socketPath, err)
	}

	a.listener = listener
	log.Printf("Listening for commands on %s", a.socketPath)
	return nil
}

// listenForCommands accepts connections and handles them
func (a *App) listenForCommands() {
	defer log.Println("Socket command listener stopped.")

	for {
		conn, err := a.listener.AcceptUnix()
		if err != nil {
			select {
			case <-a.ctx.Done():
				return // Expected error on shutdown
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Failed to accept connection: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		a.wg.Go(func() { a.handleConnection(conn) })
	}
}

// handleConnection reads command, processes it, and sends response
func (a *App) handleConnection(conn *net.UnixConn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var cmd ipc.Command
	if err := decoder.Decode(&cmd); err != nil {
		if err != io.EOF {
			log.Printf("Failed to decode command: %v", err)
		}
		_ = encoder.Encode(ipc.Response{Success: false, Message: "Failed to decode command: " + err.Error()})
		return
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	log.Printf("Received command: %s", cmd.Name)
	response := a.processCommand(cmd)

	if err := encoder.Encode(response); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

// onLoop runs fn on the event loop and returns its response.
func (a *App) onLoop(fn func() ipc.Response) ipc.Response {
	ctx, cancel := context.WithTimeout(a.ctx, commandTimeout)
	defer cancel()
	var resp ipc.Response
	if err := a.loop.Do(ctx, func() { resp = fn() }); err != nil {
		return ipc.Response{Success: false, Message: fmt.Sprintf("Daemon busy: %v", err)}
	}
	return resp
}

func (a *App) dispatch(act store.Action, okMsg string) ipc.Response {
	return a.onLoop(func() ipc.Response {
		if err := a.store.Dispatch(a.ctx, act); err != nil {
			return ipc.Response{Success: false, Message: err.Error()}
		}
		return ipc.Response{Success: true, Message: okMsg, Data: a.status()}
	})
}

// processCommand routes the command to the correct handler
func (a *App) processCommand(cmd ipc.Command) ipc.Response {
	invalid := func(err error) ipc.Response {
		return ipc.Response{Success: false, Message: fmt.Sprintf("Invalid args for %s: %v", cmd.Name, err)}
	}

	switch cmd.Name {
	case ipc.CmdPing:
		return ipc.Response{Success: true, Message: "pong"}

	case ipc.CmdStatus:
		return a.onLoop(func() ipc.Response {
			return ipc.Response{Success: true, Data: a.status()}
		})

	case ipc.CmdAlarmList:
		return a.onLoop(func() ipc.Response {
			return ipc.Response{Success: true, Data: a.alarmInfos()}
		})

	case ipc.CmdGoals:
		return a.onLoop(func() ipc.Response {
			return ipc.Response{Success: true, Data: a.goalData()}
		})

	case ipc.CmdAlarmAdd:
		var args ipc.AlarmArgs
		if err := ipc.DecodeArgs(cmd.Args, &args); err != nil {
			return invalid(err)
		}
		if args.Time == "" && args.Cron == "" {
			return invalid(errors.New("time or cron is required"))
		}
		return a.onLoop(func() ipc.Response {
			base := alarm.New(args.Label, 0, 0, 0, time.Now())
			base.Sound = a.cfg.Alarm.DefaultSound
			base.Volume = a.cfg.Alarm.DefaultVolume
			base.SnoozeMinutes = a.cfg.Alarm.DefaultSnoozeMinutes
			if args.ID != "" {
				base.ID = args.ID
			}
			al, err := args.Apply(base)
			if err != nil {
				return invalid(err)
			}
			if err := a.store.Dispatch(a.ctx, store.AddAlarm{Alarm: al}); err != nil {
				return ipc.Response{Success: false, Message: err.Error()}
			}
			return ipc.Response{Success: true, Message: fmt.Sprintf("Alarm %s added", al.ID), Data: a.alarmInfo(al)}
		})

	case ipc.CmdAlarmUpdate:
		var args ipc.AlarmArgs
		if err := ipc.DecodeArgs(cmd.Args, &args); err != nil {
			return invalid(err)
		}
		return a.onLoop(func() ipc.Response {
			cur, ok := a.store.Alarm(args.ID)
			if !ok {
				return ipc.Response{Success: false, Message: fmt.Sprintf("%v: %s", alarm.ErrNotFound, args.ID)}
			}
			al, err := args.Apply(cur)
			if err != nil {
				return invalid(err)
			}
			if err := a.store.Dispatch(a.ctx, store.UpdateAlarm{Alarm: al}); err != nil {
				return ipc.Response{Success: false, Message: err.Error()}
			}
			al, _ = a.store.Alarm(al.ID)
			return ipc.Response{Success: true, Message: fmt.Sprintf("Alarm %s updated", al.ID), Data: a.alarmInfo(al)}
		})

	case ipc.CmdAlarmDelete:
		var args ipc.IDArgs
		if err := ipc.DecodeArgs(cmd.Args, &args); err != nil {
			return invalid(err)
		}
		return a.dispatch(store.DeleteAlarm{ID: args.ID}, fmt.Sprintf("Alarm %s deleted", args.ID))

	case ipc.CmdAlarmToggle:
		var args ipc.ToggleArgs
		if err := ipc.DecodeArgs(cmd.Args, &args); err != nil {
			return invalid(err)
		}
		return a.dispatch(store.ToggleAlarm{ID: args.ID, Enabled: args.Enabled}, fmt.Sprintf("Alarm %s toggled", args.ID))

	case ipc.CmdAlarmSnooze:
		return a.dispatch(store.SnoozeAlarm{}, "Alarm snoozed")
	case ipc.CmdAlarmDismiss:
		return a.dispatch(store.DismissAlarm{}, "Alarm dismissed")

	case ipc.CmdTimerStart:
		return a.dispatch(store.StartTimer{}, "Timer started")
	case ipc.CmdTimerPause:
		return a.dispatch(store.PauseTimer{}, "Timer paused")
	case ipc.CmdTimerResume:
		return a.dispatch(store.ResumeTimer{}, "Timer resumed")
	case ipc.CmdTimerReset:
		return a.dispatch(store.ResetTimer{}, "Timer reset")
	case ipc.CmdTimerSkip:
		return a.dispatch(store.SkipTimer{}, "Skipped to next interval")
	case ipc.CmdTimerMode:
		var args ipc.ModeArgs
		if err := ipc.DecodeArgs(cmd.Args, &args); err != nil {
			return invalid(err)
		}
		mode, err := timer.ParseMode(string(args.Mode))
		if err != nil {
			return invalid(err)
		}
		return a.dispatch(store.SetTimerMode{Mode: mode}, fmt.Sprintf("Timer mode set to %s", mode))

	default:
		return ipc.Response{Success: false, Message: fmt.Sprintf("Unknown command: %s", cmd.Name)}
	}
}

// --- Status builders, loop only ---

func (a *App) alarmInfo(al alarm.Alarm) ipc.AlarmInfo {
	info := ipc.AlarmInfo{Alarm: al}
	if due, ok := a.store.Scheduler().Pending(al.ID); ok {
		info.Next = &due
	}
	return info
}

func (a *App) alarmInfos() []ipc.AlarmInfo {
	alarms := a.store.Alarms()
	out := make([]ipc.AlarmInfo, 0, len(alarms))
	for _, al := range alarms {
		out = append(out, a.alarmInfo(al))
	}
	return out
}

func (a *App) goalData() ipc.GoalData {
	g := a.store.Goals()
	return ipc.GoalData{State: g.State(), DailyTarget: g.DailyTarget(), Progress: g.Progress()}
}

func (a *App) status() ipc.StatusData {
	snap := a.store.Snapshot()
	st := ipc.StatusData{
		Now:        time.Now(),
		Timer:      ipc.TimerData{Session: snap.Timer, Config: a.store.Engine().Config()},
		Active:     snap.Active,
		AlarmCount: len(snap.Alarms),
		Goals:      a.goalData(),
	}
	for _, info := range a.alarmInfos() {
		if info.Next == nil {
			continue
		}
		if st.NextAlarm == nil || info.Next.Before(*st.NextAlarm.Next) {
			info := info
			st.NextAlarm = &info
		}
	}
	return st
}

// --- Alerts ---

func (a *App) onAlarmFired(f scheduler.Fired) {
	title := "Alarm"
	if f.Snooze {
		title = "Alarm (snoozed)"
	} else if f.Missed {
		title = "Missed alarm"
	}
	body := f.Alarm.Label
	if body == "" {
		body = f.Alarm.TimeOfDay()
	}
	a.alerts.Deliver(notify.Message{
		Title:  title,
		Body:   fmt.Sprintf("%s (%s)", body, f.Due.Format(time.Kitchen)),
		Urgent: true,
		Sound:  f.Alarm.Sound,
		Volume: f.Alarm.Volume,
	})
}

// onSessionCompleted runs while the finished interval is still loaded, so
// the notice is built on the next loop turn, once the engine has moved on.
func (a *App) onSessionCompleted(c timer.Completion) {
	a.loop.Post(func() {
		a.alerts.Deliver(completionMessage(c, a.store.Snapshot().Timer))
	})
}

func completionMessage(c timer.Completion, next timer.Session) notify.Message {
	body := fmt.Sprintf("%s done.", formatDuration(time.Duration(c.Seconds)*time.Second))
	if next.Mode == timer.ModePomodoro {
		body += fmt.Sprintf(" Next: %s (%s)", next.Type, formatDuration(time.Duration(next.Total)*time.Second))
	}
	return notify.Message{
		Title:   fmt.Sprintf("%s finished", c.Type),
		Body:    body,
		Timeout: 10 * time.Second,
	}
}

func (a *App) reconfigure(cfg *config.Config) {
	a.cfg.Pomodoro = cfg.Pomodoro
	a.cfg.Timer = cfg.Timer
	a.cfg.Alarm = cfg.Alarm
	a.cfg.Goals = cfg.Goals
	a.store.Reconfigure(storeOptions(cfg))
	log.Println("Applied configuration change.")
}

func (a *App) Run() error {
	defer a.cleanup()

	log.Println("Starting tickwise (daemon mode)...")

	if err := a.setupSocket(); err != nil {
		return err
	}

	a.handleSignals()
	a.loop.Start()

	err := a.loop.Do(a.ctx, func() {
		a.store.Scheduler().Subscribe(a.onAlarmFired)
		a.store.Engine().Subscribe(a.onSessionCompleted)
		a.store.Start()
	})
	if err != nil {
		return fmt.Errorf("failed to start store: %w", err)
	}

	// Periodic recovery: catches timers lost to suspend and rolls the goal day.
	a.wg.Go(func() {
		a.loop.Every(a.ctx, a.cfg.Scheduler.RecoveryInterval, a.store.Maintain)
	})

	if a.loader != nil && a.loader.ConfigFile() != "" {
		a.loader.Watch(func(cfg *config.Config) {
			a.loop.Post(func() { a.reconfigure(cfg) })
		})
	}

	a.wg.Go(a.listenForCommands)

	if _, err := a.storage.SaveEvent(a.ctx, event.Event{Timestamp: time.Now(), Type: event.EventTypeAppStart}); err != nil {
		log.Printf("Warning: Failed to save AppStart event: %v", err)
	}

	log.Println("tickwise daemon running. Send commands via tickwise-cli or socket.")
	<-a.ctx.Done()

	log.Println("Shutdown signal received, waiting for components...")

	// Close the listener before waiting so accept() returns
	if err := a.listener.Close(); err != nil {
		log.Printf("Error closing socket listener: %v", err)
	}

	waitChan := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(waitChan)
	}()
	select {
	case <-waitChan:
		log.Println("All application goroutines finished.")
	case <-time.After(5 * time.Second):
		log.Println("Warning: Timeout waiting for application goroutines to stop.")
	}

	log.Println("tickwise finished.")
	return nil
}

// Stop triggers the same shutdown as SIGTERM.
func (a *App) Stop() {
	a.cancel()
}

func (a *App) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Printf("Received signal: %v. Initiating shutdown...", sig)
			a.cancel()
		case <-a.ctx.Done():
		}
		signal.Stop(sigChan)
	}()
}

func (a *App) cleanup() {
	log.Println("Running cleanup...")
	a.cancel()

	saveCtx, saveCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer saveCancel()

	var errs error
	closeStore := func() { errs = multierr.Append(errs, a.store.Close(saveCtx)) }
	if a.loop.Running() {
		if err := a.loop.Do(saveCtx, closeStore); err != nil {
			errs = multierr.Append(errs, err)
		}
	} else {
		closeStore()
	}
	a.loop.Stop()
	a.alerts.Wait()

	if _, err := a.storage.SaveEvent(saveCtx, event.Event{Timestamp: time.Now(), Type: event.EventTypeAppStop}); err != nil {
		log.Printf("Warning: Failed to save AppStop event: %v", err)
	}

	errs = multierr.Append(errs, a.storage.Close())
	if a.dbus != nil {
		errs = multierr.Append(errs, a.dbus.Close())
	}
	for _, err := range multierr.Errors(errs) {
		log.Printf("Error during cleanup: %v", err)
	}

	if _, err := os.Stat(a.socketPath); err == nil && a.listener != nil {
		log.Printf("Removing socket file: %s", a.socketPath)
		if err := os.Remove(a.socketPath); err != nil {
			log.Printf("Warning: Failed to remove socket file %s: %v", a.socketPath, err)
		}
	}

	log.Println("Cleanup finished.")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
