package alarm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WeekdaySet is a bitmask of enabled days, bit i set for time.Weekday(i).
type WeekdaySet uint8

const AllDays WeekdaySet = 1<<7 - 1

var dayNames = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// Display order is Monday first.
var weekOrder = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func Days(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

// Empty reports a one-shot alarm. Stray high bits do not count as days.
func (s WeekdaySet) Empty() bool {
	return s&AllDays == 0
}

func (s WeekdaySet) Count() int {
	n := 0
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			n++
		}
	}
	return n
}

func (s WeekdaySet) List() []time.Weekday {
	var out []time.Weekday
	for _, d := range weekOrder {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s WeekdaySet) String() string {
	switch {
	case s.Empty():
		return "once"
	case s&AllDays == AllDays:
		return "daily"
	case s&AllDays == Days(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday):
		return "weekdays"
	case s&AllDays == Days(time.Saturday, time.Sunday):
		return "weekends"
	}
	names := make([]string, 0, 7)
	for _, d := range s.List() {
		names = append(names, dayNames[d])
	}
	return strings.Join(names, ",")
}

// ParseWeekdays accepts a comma separated list of day names ("mon,wed"),
// or one of "daily", "weekdays", "weekends", "once"/"".
func ParseWeekdays(v string) (WeekdaySet, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "", "once", "none":
		return 0, nil
	case "daily", "everyday", "all":
		return AllDays, nil
	case "weekdays":
		return Days(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday), nil
	case "weekends":
		return Days(time.Saturday, time.Sunday), nil
	}
	var s WeekdaySet
	for _, part := range strings.Split(v, ",") {
		d, err := parseDay(strings.TrimSpace(part))
		if err != nil {
			return 0, err
		}
		s = s.With(d)
	}
	return s, nil
}

// parseDay accepts the three-letter or the full English day name.
func parseDay(name string) (time.Weekday, error) {
	for i, n := range dayNames {
		if name == n || name == strings.ToLower(time.Weekday(i).String()) {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, 7)
	for _, d := range s.List() {
		names = append(names, dayNames[d])
	}
	return json.Marshal(names)
}

func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("decode weekdays: %w", err)
	}
	var out WeekdaySet
	for _, n := range names {
		d, err := parseDay(strings.ToLower(n))
		if err != nil {
			return err
		}
		out = out.With(d)
	}
	*s = out
	return nil
}
