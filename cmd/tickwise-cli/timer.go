package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tickwise/internal/ipc"
	"tickwise/internal/timer"
)

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Control the focus timer",
}

func timerAction(use, short, name string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := sendCommand(name, nil)
			return err
		},
	}
}

var timerModeCmd = &cobra.Command{
	Use:       "mode <pomodoro|custom|meditation>",
	Short:     "Switch timer mode; the current interval is discarded",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(timer.ModePomodoro), string(timer.ModeCustom), string(timer.ModeMeditation)},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := timer.ParseMode(strings.ToLower(args[0]))
		if err != nil {
			return err
		}
		_, err = sendCommand(ipc.CmdTimerMode, ipc.ModeArgs{Mode: mode})
		return err
	},
}

func renderTimer(t ipc.TimerData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Timer:   %s %s  %s / %s  [%s]\n",
		t.Mode, t.Type, formatSeconds(t.Remaining), formatSeconds(t.Total), t.State)
	if t.Mode == timer.ModePomodoro {
		fmt.Fprintf(&b, "         interval %d, %d focus sessions completed\n", t.Index, t.Completed)
	}
	return b.String()
}

func renderGoals(g ipc.GoalData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Focus:   %d/%d sessions today (%.0f%%), %s focused\n",
		g.Sessions, g.DailyTarget, g.Progress*100, formatSeconds(g.FocusSeconds))
	fmt.Fprintf(&b, "Streak:  %d days (longest %d)\n", g.CurrentStreak, g.LongestStreak)
	return b.String()
}

// renderStatus formats a status reply. With markup it emits tview colour tags.
func renderStatus(st ipc.StatusData, markup bool) string {
	tag := func(color string) string {
		if !markup {
			return ""
		}
		return "[" + color + "]"
	}
	var b strings.Builder
	b.WriteString(renderTimer(st.Timer))
	if st.Active != nil {
		a := st.Active
		label := cell(a.Alarm.Label, 30)
		if a.Snoozing && a.SnoozeUntil != nil {
			fmt.Fprintf(&b, "%sAlarm:   %s snoozed until %s (x%d)%s\n", tag("yellow"), label,
				a.SnoozeUntil.Local().Format("15:04:05"), a.SnoozeCount, tag("-"))
		} else {
			fmt.Fprintf(&b, "%sAlarm:   %s RINGING since %s%s\n", tag("red::b"), label,
				a.FiredAt.Local().Format("15:04:05"), tag("-:-:-"))
		}
	}
	if st.NextAlarm != nil {
		fmt.Fprintf(&b, "Next:    %s at %s\n", cell(st.NextAlarm.Label, 30), nextString(st.NextAlarm.Next))
	} else {
		fmt.Fprintf(&b, "Next:    none (%d alarms)\n", st.AlarmCount)
	}
	b.WriteString(renderGoals(st.Goals))
	return b.String()
}

func init() {
	timerCmd.AddCommand(
		timerAction("start", "Start the current interval", ipc.CmdTimerStart),
		timerAction("pause", "Pause the running interval", ipc.CmdTimerPause),
		timerAction("resume", "Resume a paused interval", ipc.CmdTimerResume),
		timerAction("reset", "Reset the current interval to its full length", ipc.CmdTimerReset),
		timerAction("skip", "Skip to the next pomodoro interval", ipc.CmdTimerSkip),
		timerModeCmd,
	)
}
