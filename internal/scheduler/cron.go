package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/indexpilot/indexpilot/internal/config"
)

// standard 5-field crontab syntax, minutes resolution
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// CronFor maps a named schedule to its cron expression. Recurring jobs
// fire at 09:00 server time except hourly ones, which fire on the hour.
// One-time jobs have no expression.
func CronFor(schedule config.JobSchedule) (string, error) {
	switch schedule {
	case config.ScheduleOneTime:
		return "", nil
	case config.ScheduleHourly:
		return "0 * * * *", nil
	case config.ScheduleDaily:
		return "0 9 * * *", nil
	case config.ScheduleWeekly:
		return "0 9 * * 1", nil
	case config.ScheduleMonthly:
		return "0 9 1 * *", nil
	default:
		return "", fmt.Errorf("no cron expression for schedule %q", schedule)
	}
}

// NextAfter returns the first occurrence of expr strictly after the given
// time.
func NextAfter(expr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return sched.Next(after.UTC()), nil
}

// ValidateCron reports whether expr is a parseable 5-field expression.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
