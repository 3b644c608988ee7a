// Package backup exports alarms to a YAML file and reads them back.
package backup

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"tickwise/internal/alarm"
)

const formatVersion = 1

type File struct {
	Version  int       `yaml:"version"`
	Exported time.Time `yaml:"exported"`
	Alarms   []Record  `yaml:"alarms"`
}

// Record is one alarm in the export. Either Time (with optional Days) or
// Cron describes when it rings.
type Record struct {
	ID            string   `yaml:"id,omitempty"`
	Label         string   `yaml:"label"`
	Time          string   `yaml:"time,omitempty"`
	Days          []string `yaml:"days,omitempty,flow"`
	Cron          string   `yaml:"cron,omitempty"`
	Enabled       *bool    `yaml:"enabled,omitempty"`
	Sound         string   `yaml:"sound,omitempty"`
	Volume        *float64 `yaml:"volume,omitempty"`
	SnoozeEnabled *bool    `yaml:"snooze_enabled,omitempty"`
	SnoozeMinutes int      `yaml:"snooze_minutes,omitempty"`
}

// Defaults fill fields an imported record leaves out.
type Defaults struct {
	Sound         string
	Volume        float64
	SnoozeMinutes int
}

func FromAlarm(a alarm.Alarm) Record {
	enabled, snooze, volume := a.Enabled, a.SnoozeEnabled, a.Volume
	r := Record{
		ID:            a.ID,
		Label:         a.Label,
		Time:          a.TimeOfDay(),
		Enabled:       &enabled,
		Sound:         a.Sound,
		Volume:        &volume,
		SnoozeEnabled: &snooze,
		SnoozeMinutes: a.SnoozeMinutes,
	}
	for _, d := range a.Days.List() {
		r.Days = append(r.Days, strings.ToLower(d.String()[:3]))
	}
	return r
}

// ToAlarm builds a validated alarm. A record without an id gets a new one.
func (r Record) ToAlarm(d Defaults, now time.Time) (alarm.Alarm, error) {
	var (
		hour, minute int
		days         alarm.WeekdaySet
		err          error
	)
	switch {
	case r.Cron != "":
		hour, minute, days, err = alarm.FromCron(r.Cron)
	case r.Time != "":
		hour, minute, err = alarm.ParseTimeOfDay(r.Time)
		if err == nil {
			days, err = alarm.ParseWeekdays(strings.Join(r.Days, ","))
		}
	default:
		err = fmt.Errorf("%w: %q has neither time nor cron", alarm.ErrInvalidAlarm, r.Label)
	}
	if err != nil {
		return alarm.Alarm{}, err
	}

	a := alarm.New(r.Label, hour, minute, days, now)
	if r.ID != "" {
		a.ID = r.ID
	}
	a.Sound = d.Sound
	if r.Sound != "" {
		a.Sound = r.Sound
	}
	if d.Volume > 0 {
		a.Volume = d.Volume
	}
	if r.Volume != nil {
		a.Volume = *r.Volume
	}
	if d.SnoozeMinutes > 0 {
		a.SnoozeMinutes = d.SnoozeMinutes
	}
	if r.SnoozeMinutes > 0 {
		a.SnoozeMinutes = r.SnoozeMinutes
	}
	if r.SnoozeEnabled != nil {
		a.SnoozeEnabled = *r.SnoozeEnabled
	}
	if r.Enabled != nil {
		a.Enabled = *r.Enabled
	}
	if err := a.Validate(); err != nil {
		return alarm.Alarm{}, err
	}
	return a, nil
}

func Export(fs afero.Fs, path string, alarms []alarm.Alarm, now time.Time) error {
	f := File{Version: formatVersion, Exported: now, Alarms: make([]Record, 0, len(alarms))}
	for _, a := range alarms {
		f.Alarms = append(f.Alarms, FromAlarm(a))
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to encode alarms: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0640); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Import reads every record in path. The first invalid record aborts the
// import with its position in the error.
func Import(fs afero.Fs, path string, d Defaults, now time.Time) ([]alarm.Alarm, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if f.Version > formatVersion {
		return nil, fmt.Errorf("%s has format version %d, newest supported is %d", path, f.Version, formatVersion)
	}
	alarms := make([]alarm.Alarm, 0, len(f.Alarms))
	for i, r := range f.Alarms {
		a, err := r.ToAlarm(d, now)
		if err != nil {
			return nil, fmt.Errorf("alarm %d (%q): %w", i+1, r.Label, err)
		}
		alarms = append(alarms, a)
	}
	return alarms, nil
}
