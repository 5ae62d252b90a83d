package scheduler

import (
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
	"github.com/pkg/errors"
)

// Schedule computes when a recurring job should next fire.
type Schedule interface {
	// NextRun returns the first fire time strictly after the given time.
	NextRun(after time.Time) time.Time

	// Summary returns a human-readable description of the schedule.
	Summary() string
}

type cronSchedule struct {
	expr *cronexpr.Expression
	text string
}

func (s cronSchedule) NextRun(after time.Time) time.Time { return s.expr.Next(after) }
func (s cronSchedule) Summary() string                   { return fmt.Sprintf("cron %q", s.text) }

// CronSchedule parses a standard 5-field cron expression.
func CronSchedule(expr string) (Schedule, error) {
	e, err := cronexpr.Parse(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cron expression %q", expr)
	}

	return cronSchedule{expr: e, text: expr}, nil
}

type intervalSchedule struct {
	interval time.Duration
}

func (s intervalSchedule) NextRun(after time.Time) time.Time { return after.Add(s.interval) }
func (s intervalSchedule) Summary() string                   { return fmt.Sprintf("every %v", s.interval) }

// IntervalSchedule fires at a fixed interval.
func IntervalSchedule(interval time.Duration) (Schedule, error) {
	if interval < time.Minute {
		return nil, errors.Errorf("interval too short: %v", interval)
	}

	return intervalSchedule{interval: interval}, nil
}

type dailySchedule struct {
	hour, minute int
}

func (s dailySchedule) NextRun(after time.Time) time.Time {
	next := time.Date(after.Year(), after.Month(), after.Day(), s.hour, s.minute, 0, 0, after.Location())
	if !next.After(after) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

func (s dailySchedule) Summary() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

// DailySchedule fires once a day at the given local time.
func DailySchedule(hour, minute int) (Schedule, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, errors.Errorf("invalid time of day %02d:%02d", hour, minute)
	}

	return dailySchedule{hour: hour, minute: minute}, nil
}
