package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"tickwise/internal/ipc"
	"tickwise/internal/timer"
)

const watchHelp = "[gray]s[-] snooze  [gray]d[-] dismiss  [gray]p[-] pause/resume  [gray]space[-] start  [gray]n[-] skip  [gray]q[-] quit"

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of the timer and alarms",
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 100*time.Millisecond {
			interval = 100 * time.Millisecond
		}
		if _, err := call(ipc.CmdPing, nil); err != nil {
			return err
		}
		return runWatch(interval)
	},
}

func runWatch(interval time.Duration) error {
	app := tview.NewApplication()

	body := tview.NewTextView().SetDynamicColors(true)
	body.SetBorder(true).SetTitle(" tickwise ")
	footer := tview.NewTextView().SetDynamicColors(true).SetText(watchHelp)
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, false).
		AddItem(footer, 1, 0, false)

	var last ipc.StatusData
	message := ""

	refresh := func() {
		reply, err := call(ipc.CmdStatus, nil)
		var st ipc.StatusData
		if err == nil {
			err = reply.Decode(&st)
		}
		app.QueueUpdateDraw(func() {
			if err != nil {
				body.SetText(fmt.Sprintf("[red]%v[-]", tview.Escape(err.Error())))
				return
			}
			last = st
			text := renderStatus(st, true)
			if message != "" {
				text += "\n[gray]" + tview.Escape(message) + "[-]"
			}
			body.SetText(text)
		})
	}

	// send runs off the UI goroutine since ipc.Call blocks.
	send := func(name string) {
		go func() {
			_, err := call(name, nil)
			app.QueueUpdate(func() {
				if err != nil {
					message = err.Error()
				} else {
					message = ""
				}
			})
			refresh()
		}()
	}

	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			app.Stop()
			return nil
		}
		switch ev.Rune() {
		case 'q':
			app.Stop()
		case 's':
			send(ipc.CmdAlarmSnooze)
		case 'd':
			send(ipc.CmdAlarmDismiss)
		case 'p':
			switch last.Timer.State {
			case timer.StateRunning:
				send(ipc.CmdTimerPause)
			case timer.StatePaused:
				send(ipc.CmdTimerResume)
			}
		case ' ':
			send(ipc.CmdTimerStart)
		case 'n':
			send(ipc.CmdTimerSkip)
		default:
			return ev
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		refresh()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()

	return app.SetRoot(layout, true).Run()
}

func init() {
	watchCmd.Flags().Duration("interval", time.Second, "Refresh interval")
}
