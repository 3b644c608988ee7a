package alarm

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// FromCron reads the time of day and weekday set from a 5-field cron
// expression of the form "M H * * DOW". Anything finer than that (lists of
// minutes, day-of-month restrictions) cannot be expressed as an alarm.
func FromCron(expr string) (hour, minute int, days WeekdaySet, err error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 || !gronx.IsValid(expr) {
		return 0, 0, 0, fmt.Errorf("%w: invalid cron expression %q, expected 5 fields", ErrInvalidAlarm, expr)
	}
	if fields[2] != "*" || fields[3] != "*" {
		return 0, 0, 0, fmt.Errorf("%w: cron expression %q restricts day of month or month", ErrInvalidAlarm, expr)
	}
	minute, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: cron minute %q must be a single value", ErrInvalidAlarm, fields[0])
	}
	hour, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: cron hour %q must be a single value", ErrInvalidAlarm, fields[1])
	}
	if fields[4] == "*" {
		return hour, minute, AllDays, nil
	}
	for _, part := range strings.Split(fields[4], ",") {
		lo, hi := part, part
		if i := strings.IndexByte(part, '-'); i > 0 {
			lo, hi = part[:i], part[i+1:]
		}
		from, err1 := strconv.Atoi(lo)
		to, err2 := strconv.Atoi(hi)
		if err1 != nil || err2 != nil || from > to {
			return 0, 0, 0, fmt.Errorf("%w: unsupported day-of-week field %q", ErrInvalidAlarm, fields[4])
		}
		for d := from; d <= to; d++ {
			// cron allows 7 for Sunday
			days = days.With(time.Weekday(d % 7))
		}
	}
	return hour, minute, days, nil
}

// CronExpr renders the alarm's recurrence as a cron expression. One-shot
// alarms render as daily, since cron has no "next occurrence only".
func (a Alarm) CronExpr() string {
	dow := "*"
	if !a.Days.Empty() && a.Days&AllDays != AllDays {
		parts := make([]string, 0, 7)
		for d := time.Sunday; d <= time.Saturday; d++ {
			if a.Days.Has(d) {
				parts = append(parts, strconv.Itoa(int(d)))
			}
		}
		dow = strings.Join(parts, ",")
	}
	return fmt.Sprintf("%d %d * * %s", a.Minute, a.Hour, dow)
}
