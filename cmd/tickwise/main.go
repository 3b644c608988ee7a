package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sevlyar/go-daemon"
	flag "github.com/spf13/pflag"

	"tickwise/internal/app"
	"tickwise/internal/config"
)

var (
	configPath = flag.StringP("config", "c", "", "Path to configuration file (e.g., config.yaml). Defaults to ./config.yaml, ~/.config/tickwise/config.yaml, /etc/tickwise/config.yaml")
	logPath    = flag.String("log", "", "Path to log file (optional, defaults to stderr)")
	daemonize  = flag.BoolP("daemon", "d", false, "Detach from the terminal and run in the background")
	pidPath    = flag.String("pid", "", "PID file used in daemon mode (default: tickwise.pid next to the log file or in the working directory)")
)

// setupLogging configures the log output destination.
func setupLogging(logFilePath string) (*os.File, error) {
	if logFilePath == "" {
		log.SetOutput(os.Stderr)
		log.Println("Logging to stderr")
		return nil, nil
	}

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
	}

	log.SetOutput(file)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Printf("Logging to file: %s", logFilePath)
	return file, nil
}

// detach forks the daemon. The parent gets a nil context back and should
// exit; the child gets the context to release on shutdown.
func detach() (*daemon.Context, bool, error) {
	pid := *pidPath
	if pid == "" {
		dir := "."
		if *logPath != "" {
			dir = filepath.Dir(*logPath)
		}
		pid = filepath.Join(dir, "tickwise.pid")
	}
	absPid, err := filepath.Abs(pid)
	if err != nil {
		return nil, false, err
	}

	cntxt := &daemon.Context{
		PidFileName: absPid,
		PidFilePerm: 0644,
		WorkDir:     ".",
		Umask:       027,
		Args:        os.Args,
	}
	child, err := cntxt.Reborn()
	if err != nil {
		return nil, false, fmt.Errorf("failed to daemonize: %w", err)
	}
	if child != nil {
		fmt.Printf("tickwise started in background (pid %d, pid file %s)\n", child.Pid, absPid)
		return nil, true, nil
	}
	return cntxt, false, nil
}

func main() {
	flag.Parse()

	if *daemonize {
		if *logPath == "" {
			fmt.Fprintln(os.Stderr, "Warning: daemon mode without --log discards all log output")
		}
		cntxt, parent, err := detach()
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		if parent {
			return
		}
		defer cntxt.Release()
	}

	logFile, logErr := setupLogging(*logPath)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Error setting up file logging: %v. Logging to stderr instead.\n", logErr)
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	// Viper checks env vars (TICKWISE_*) and config files (./, ~/.config/tickwise/, /etc/tickwise/)
	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	application, err := app.NewApp(cfg, loader)
	if err != nil {
		log.Fatalf("FATAL: Failed to create application: %v", err)
	}

	// Blocks until SIGINT/SIGTERM or Stop.
	if err := application.Run(); err != nil {
		log.Fatalf("FATAL: Application exited with error: %v", err)
	}

	log.Println("Tickwise finished successfully.")
}
