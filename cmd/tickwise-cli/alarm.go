package main

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tickwise/internal/alarm"
	"tickwise/internal/backup"
	"tickwise/internal/ipc"
)

var alarmCmd = &cobra.Command{
	Use:   "alarm",
	Short: "Manage alarms",
}

// alarmArgs collects only the flags the user set, so an update leaves the
// rest of the alarm alone.
func alarmArgs(flags *pflag.FlagSet) ipc.AlarmArgs {
	var a ipc.AlarmArgs
	a.Label, _ = flags.GetString("label")
	a.Time, _ = flags.GetString("time")
	a.Cron, _ = flags.GetString("cron")
	if flags.Changed("days") {
		v, _ := flags.GetString("days")
		a.Days = &v
	}
	if flags.Changed("sound") {
		v, _ := flags.GetString("sound")
		a.Sound = &v
	}
	if flags.Changed("volume") {
		v, _ := flags.GetFloat64("volume")
		a.Volume = &v
	}
	if flags.Changed("snooze") {
		v, _ := flags.GetBool("snooze")
		a.SnoozeEnabled = &v
	}
	if flags.Changed("snooze-minutes") {
		v, _ := flags.GetInt("snooze-minutes")
		a.SnoozeMinutes = &v
	}
	return a
}

func addAlarmFlags(flags *pflag.FlagSet) {
	flags.StringP("label", "l", "", "Alarm label")
	flags.StringP("time", "T", "", "Time of day, HH:MM (24h)")
	flags.String("days", "", "Repeat days: 'mon,wed,fri', 'daily', 'weekdays', 'weekends' or 'once'")
	flags.String("cron", "", "Schedule as a 5-field cron expression with fixed minute and hour (e.g. '30 7 * * 1-5')")
	flags.String("sound", "", "Sound file played when the alarm rings")
	flags.Float64("volume", 1, "Volume between 0 and 1")
	flags.Bool("snooze", true, "Allow snoozing")
	flags.Int("snooze-minutes", 5, "Snooze length in minutes")
}

var alarmAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an alarm (e.g. --time 07:30 --days weekdays)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := alarmArgs(cmd.Flags())
		if a.Time == "" && a.Cron == "" {
			return fmt.Errorf("--time or --cron is required")
		}
		reply, err := sendCommand(ipc.CmdAlarmAdd, a)
		if err != nil || asJSON {
			return err
		}
		var info ipc.AlarmInfo
		if err := reply.Decode(&info); err == nil && info.Next != nil {
			fmt.Printf("Next ring: %s\n", info.Next.Local().Format("Mon 2006-01-02 15:04"))
		}
		return nil
	},
}

var alarmUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of an existing alarm",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := alarmArgs(cmd.Flags())
		a.ID = args[0]
		_, err := sendCommand(ipc.CmdAlarmUpdate, a)
		return err
	},
}

var alarmDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an alarm",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := sendCommand(ipc.CmdAlarmDelete, ipc.IDArgs{ID: args[0]})
		return err
	},
}

var alarmToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Enable or disable an alarm (flips it without --on/--off)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, _ := cmd.Flags().GetBool("on")
		off, _ := cmd.Flags().GetBool("off")
		ta := ipc.ToggleArgs{ID: args[0]}
		switch {
		case on && off:
			return fmt.Errorf("--on and --off are mutually exclusive")
		case on:
			ta.Enabled = &on
		case off:
			v := false
			ta.Enabled = &v
		}
		_, err := sendCommand(ipc.CmdAlarmToggle, ta)
		return err
	},
}

var alarmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alarms with their next ring time",
	RunE: func(cmd *cobra.Command, args []string) error {
		alarms, err := listAlarms()
		if err != nil {
			return err
		}
		if asJSON {
			reply, _ := call(ipc.CmdAlarmList, nil)
			printJSON(reply.Data)
			return nil
		}
		if len(alarms) == 0 {
			fmt.Println("No alarms.")
			return nil
		}
		fmt.Printf("%s %s %s %s %s %s\n", cell("ID", 36), cell("LABEL", 20), cell("TIME", 5), cell("DAYS", 16), cell("ON", 3), "NEXT")
		for _, a := range alarms {
			fmt.Printf("%s %s %s %s %s %s\n",
				cell(a.ID, 36),
				cell(a.Label, 20),
				fmt.Sprintf("%02d:%02d", a.Hour, a.Minute),
				cell(a.Days.String(), 16),
				cell(onOff(a.Enabled), 3),
				nextString(a.Next))
		}
		return nil
	},
}

func listAlarms() ([]ipc.AlarmInfo, error) {
	reply, err := call(ipc.CmdAlarmList, nil)
	if err != nil {
		return nil, err
	}
	var alarms []ipc.AlarmInfo
	if err := reply.Decode(&alarms); err != nil {
		return nil, fmt.Errorf("failed to decode alarm list: %w", err)
	}
	return alarms, nil
}

func onOff(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func nextString(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("Mon 01-02 15:04")
}

var alarmExportCmd = &cobra.Command{
	Use:   "export <file.yaml>",
	Short: "Write all alarms to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := listAlarms()
		if err != nil {
			return err
		}
		alarms := make([]alarm.Alarm, 0, len(infos))
		for _, info := range infos {
			alarms = append(alarms, info.Alarm)
		}
		if err := backup.Export(afero.NewOsFs(), args[0], alarms, time.Now()); err != nil {
			return err
		}
		fmt.Printf("Exported %d alarms to %s\n", len(alarms), args[0])
		return nil
	},
}

var alarmImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Add the alarms in a YAML file (existing ids are skipped)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults := backup.Defaults{
			Sound:         cfg.Alarm.DefaultSound,
			Volume:        cfg.Alarm.DefaultVolume,
			SnoozeMinutes: cfg.Alarm.DefaultSnoozeMinutes,
		}
		alarms, err := backup.Import(afero.NewOsFs(), args[0], defaults, time.Now())
		if err != nil {
			return err
		}
		added, failed := 0, 0
		for _, a := range alarms {
			if _, err := call(ipc.CmdAlarmAdd, importArgs(a)); err != nil {
				fmt.Printf("Skipped %q: %v\n", a.Label, err)
				failed++
				continue
			}
			added++
		}
		fmt.Printf("Imported %d alarms, skipped %d\n", added, failed)
		return nil
	},
}

func importArgs(a alarm.Alarm) ipc.AlarmArgs {
	days := a.Days.String()
	return ipc.AlarmArgs{
		ID:            a.ID,
		Label:         a.Label,
		Time:          fmt.Sprintf("%02d:%02d", a.Hour, a.Minute),
		Days:          &days,
		Sound:         &a.Sound,
		Volume:        &a.Volume,
		SnoozeEnabled: &a.SnoozeEnabled,
		SnoozeMinutes: &a.SnoozeMinutes,
		Enabled:       &a.Enabled,
	}
}

var snoozeCmd = &cobra.Command{
	Use:   "snooze",
	Short: "Snooze the ringing alarm",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := sendCommand(ipc.CmdAlarmSnooze, nil)
		return err
	},
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss",
	Short: "Dismiss the ringing or snoozed alarm",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := sendCommand(ipc.CmdAlarmDismiss, nil)
		return err
	},
}

func init() {
	addAlarmFlags(alarmAddCmd.Flags())
	addAlarmFlags(alarmUpdateCmd.Flags())
	alarmToggleCmd.Flags().Bool("on", false, "Enable the alarm")
	alarmToggleCmd.Flags().Bool("off", false, "Disable the alarm")

	alarmCmd.AddCommand(alarmAddCmd, alarmUpdateCmd, alarmDeleteCmd, alarmToggleCmd, alarmListCmd, alarmExportCmd, alarmImportCmd)
}
