package config

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"tickwise/internal/timer"
)

type PomodoroConfig struct {
	FocusMinutes      int  `mapstructure:"focus_minutes"`
	ShortBreakMinutes int  `mapstructure:"short_break_minutes"`
	LongBreakMinutes  int  `mapstructure:"long_break_minutes"`
	LongBreakInterval int  `mapstructure:"long_break_interval"`
	AutoStart         bool `mapstructure:"auto_start"`
}

type TimerConfig struct {
	CustomMinutes     int `mapstructure:"custom_minutes"`
	MeditationMinutes int `mapstructure:"meditation_minutes"`
}

type AlarmConfig struct {
	DefaultSnoozeMinutes int     `mapstructure:"default_snooze_minutes"`
	DefaultSound         string  `mapstructure:"default_sound"`
	DefaultVolume        float64 `mapstructure:"default_volume"`
	MaxSnoozes           int     `mapstructure:"max_snoozes"` // 0 = unlimited
}

type SchedulerConfig struct {
	MaxSleep         time.Duration `mapstructure:"max_sleep"`
	RecoveryInterval time.Duration `mapstructure:"recovery_interval"`
}

type GoalsConfig struct {
	DailySessions int `mapstructure:"daily_sessions"`
}

type NotifyConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	PlayerCommand string `mapstructure:"player_command"`
}

type Config struct {
	DatabasePath string          `mapstructure:"database_path"`
	SocketPath   string          `mapstructure:"socket_path"`
	Pomodoro     PomodoroConfig  `mapstructure:"pomodoro"`
	Timer        TimerConfig     `mapstructure:"timer"`
	Alarm        AlarmConfig     `mapstructure:"alarm"`
	Scheduler    SchedulerConfig `mapstructure:"scheduler"`
	Goals        GoalsConfig     `mapstructure:"goals"`
	Notify       NotifyConfig    `mapstructure:"notify"`
}

// Loader reads the config file and environment. Each Loader has its own
// viper instance so tests do not share global state.
type Loader struct {
	v  *viper.Viper
	mu sync.Mutex
}

func NewLoader(configPath string) *Loader {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/tickwise")
		v.AddConfigPath("/etc/tickwise/")
	}

	v.SetEnvPrefix("TICKWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database_path", "tickwise.db")
	v.SetDefault("socket_path", "/tmp/tickwise.sock")
	v.SetDefault("pomodoro.focus_minutes", 25)
	v.SetDefault("pomodoro.short_break_minutes", 5)
	v.SetDefault("pomodoro.long_break_minutes", 15)
	v.SetDefault("pomodoro.long_break_interval", 4)
	v.SetDefault("pomodoro.auto_start", true)
	v.SetDefault("timer.custom_minutes", 30)
	v.SetDefault("timer.meditation_minutes", 10)
	v.SetDefault("alarm.default_snooze_minutes", 5)
	v.SetDefault("alarm.default_sound", "")
	v.SetDefault("alarm.default_volume", 1.0)
	v.SetDefault("alarm.max_snoozes", 0)
	v.SetDefault("scheduler.max_sleep", "60s")
	v.SetDefault("scheduler.recovery_interval", "30s")
	v.SetDefault("goals.daily_sessions", 8)
	v.SetDefault("notify.enabled", true)
	v.SetDefault("notify.player_command", "paplay")

	return &Loader{v: v}
}

// Load reads the config. A missing file in the search path is not an
// error; a missing file given explicitly is.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("Config file not found, using defaults.")
		} else {
			return nil, err
		}
	}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	log.Printf("Configuration loaded: %+v", *cfg)
	return cfg, nil
}

// Watch calls onChange with the re-read config every time the file changes.
// Invalid edits are logged and skipped.
func (l *Loader) Watch(onChange func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("Config file changed: %s (%s)", e.Name, e.Op)
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		if err != nil {
			log.Printf("Warning: ignoring config change: %v", err)
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// ConfigFile is the path in use, or "" when running on defaults.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := l.v.Unmarshal(&cfg, hook); err != nil {
		return nil, err
	}
	cfg.clamp()
	return &cfg, nil
}

func (c *Config) clamp() {
	p := &c.Pomodoro
	if p.FocusMinutes < 1 {
		log.Println("Warning: pomodoro.focus_minutes too low, setting to 1")
		p.FocusMinutes = 1
	}
	if p.ShortBreakMinutes < 1 {
		log.Println("Warning: pomodoro.short_break_minutes too low, setting to 1")
		p.ShortBreakMinutes = 1
	}
	if p.LongBreakMinutes < 1 {
		log.Println("Warning: pomodoro.long_break_minutes too low, setting to 1")
		p.LongBreakMinutes = 1
	}
	if p.LongBreakInterval < 1 {
		log.Println("Warning: pomodoro.long_break_interval too low, setting to 1")
		p.LongBreakInterval = 1
	}
	if c.Timer.CustomMinutes < 1 {
		log.Println("Warning: timer.custom_minutes too low, setting to 1")
		c.Timer.CustomMinutes = 1
	}
	if c.Timer.MeditationMinutes < 1 {
		log.Println("Warning: timer.meditation_minutes too low, setting to 1")
		c.Timer.MeditationMinutes = 1
	}
	if c.Alarm.DefaultSnoozeMinutes < 1 {
		log.Println("Warning: alarm.default_snooze_minutes too low, setting to 1")
		c.Alarm.DefaultSnoozeMinutes = 1
	}
	if c.Alarm.DefaultVolume < 0 || c.Alarm.DefaultVolume > 1 {
		log.Printf("Warning: invalid alarm.default_volume %.2f, defaulting to 1", c.Alarm.DefaultVolume)
		c.Alarm.DefaultVolume = 1
	}
	if c.Alarm.MaxSnoozes < 0 {
		c.Alarm.MaxSnoozes = 0
	}
	if c.Scheduler.MaxSleep < time.Second {
		log.Printf("Warning: scheduler.max_sleep %s too low, setting to 1s", c.Scheduler.MaxSleep)
		c.Scheduler.MaxSleep = time.Second
	}
	if c.Scheduler.RecoveryInterval < time.Second {
		log.Printf("Warning: scheduler.recovery_interval %s too low, setting to 1s", c.Scheduler.RecoveryInterval)
		c.Scheduler.RecoveryInterval = time.Second
	}
	if c.Goals.DailySessions < 0 {
		c.Goals.DailySessions = 0
	}
}

// TimerConfig maps the pomodoro and timer sections onto the engine config.
func (c *Config) TimerConfig() timer.Config {
	return timer.Config{
		WorkMinutes:            c.Pomodoro.FocusMinutes,
		BreakMinutes:           c.Pomodoro.ShortBreakMinutes,
		LongBreakMinutes:       c.Pomodoro.LongBreakMinutes,
		SessionsUntilLongBreak: c.Pomodoro.LongBreakInterval,
		CustomMinutes:          c.Timer.CustomMinutes,
		MeditationMinutes:      c.Timer.MeditationMinutes,
		AutoStart:              c.Pomodoro.AutoStart,
	}
}
