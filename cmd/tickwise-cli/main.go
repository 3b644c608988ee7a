package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"tickwise/internal/config"
	"tickwise/internal/event"
	"tickwise/internal/ipc"
	sqlitestore "tickwise/internal/storage/sqlite"
)

var (
	configPath string
	socketPath string
	dbPath     string
	verbose    bool
	asJSON     bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tickwise-cli",
	Short: "CLI tool to interact with the tickwise daemon",
	Long:  `A command-line interface to manage alarms, drive the focus timer and read history from the running tickwise daemon via its Unix socket.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			log.SetOutput(io.Discard)
		}
		loaded, err := config.NewLoader(configPath).Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
		if socketPath == "" {
			socketPath = cfg.SocketPath
		}
		if dbPath == "" {
			dbPath = cfg.DatabasePath
		}
		return nil
	},
}

// --- Client Helpers ---

func call(name string, args interface{}) (ipc.Reply, error) {
	reply, err := ipc.Call(socketPath, ipc.Command{Name: name, Args: args}, 5*time.Second)
	if err != nil {
		return reply, fmt.Errorf("%w\nIs the tickwise daemon running?", err)
	}
	return reply, reply.Err()
}

// sendCommand prints the reply message, or the raw data with --json.
func sendCommand(name string, args interface{}) (ipc.Reply, error) {
	reply, err := call(name, args)
	if err != nil {
		return reply, err
	}
	if asJSON {
		printJSON(reply.Data)
	} else if reply.Message != "" {
		fmt.Println(reply.Message)
	}
	return reply, nil
}

func printJSON(data json.RawMessage) {
	if len(data) == 0 {
		return
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		fmt.Println(string(data))
		return
	}
	pretty, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(pretty))
}

// cell pads or truncates s to exactly width terminal columns.
func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func formatSeconds(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// --- Command Definitions ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if the tickwise daemon is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := sendCommand(ipc.CmdPing, nil)
		return err
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the timer, the ringing alarm and the next alarm",
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := call(ipc.CmdStatus, nil)
		if err != nil {
			return err
		}
		if asJSON {
			printJSON(reply.Data)
			return nil
		}
		var st ipc.StatusData
		if err := reply.Decode(&st); err != nil {
			return err
		}
		fmt.Print(renderStatus(st, false))
		return nil
	},
}

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Show today's focus progress and streaks",
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := call(ipc.CmdGoals, nil)
		if err != nil {
			return err
		}
		if asJSON {
			printJSON(reply.Data)
			return nil
		}
		var g ipc.GoalData
		if err := reply.Decode(&g); err != nil {
			return err
		}
		fmt.Print(renderGoals(g))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded alarm and timer events from the database",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found at %s. Ensure the tickwise daemon has run or specify path with --db", dbPath)
		} else if err != nil {
			return fmt.Errorf("error accessing database file %s: %w", dbPath, err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		typeNames, _ := cmd.Flags().GetStringSlice("type")

		var types []event.EventType
		for _, t := range typeNames {
			types = append(types, event.EventType(strings.TrimSpace(t)))
		}

		store := sqlitestore.NewSQLiteStore(dbPath)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize storage connection: %w", err)
		}
		defer store.Close()

		end := time.Now()
		events, err := store.GetEvents(ctx, end.AddDate(0, 0, -days), end, types...)
		if err != nil {
			return fmt.Errorf("failed to fetch events: %w", err)
		}
		if asJSON {
			data, _ := json.Marshal(events)
			printJSON(data)
			return nil
		}
		if len(events) == 0 {
			fmt.Println("No events found for the specified period.")
			return nil
		}
		for _, e := range events {
			fmt.Printf("%s  %s %s %s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				cell(string(e.Type), 18),
				cell(describeEvent(e), 40),
				e.Tag)
		}
		return nil
	},
}

func describeEvent(e event.Event) string {
	switch e.Type {
	case event.EventTypeSessionCompleted:
		return fmt.Sprintf("%s %s", e.Subject, formatSeconds(int(e.Value)))
	case event.EventTypeAlarmSnoozed:
		return fmt.Sprintf("%s (#%d)", e.Label, int(e.Value))
	case event.EventTypeAlarmFired, event.EventTypeAlarmDismissed:
		if e.Label != "" {
			return e.Label
		}
		return e.Subject
	}
	return e.Notes
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: same search path as the daemon)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Daemon socket (default: loaded from config or "+ipc.DefaultSocketPath+")")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the tickwise database file (default: loaded from config or 'tickwise.db')")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show log output")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print raw JSON data")

	historyCmd.Flags().IntP("days", "d", 7, "Number of past days to include")
	historyCmd.Flags().StringSliceP("type", "t", nil, "Only these event types (e.g. alarm_fired,session_completed)")

	rootCmd.AddCommand(pingCmd, statusCmd, goalsCmd, historyCmd, watchCmd)
	rootCmd.AddCommand(alarmCmd, timerCmd)
	rootCmd.AddCommand(snoozeCmd, dismissCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
