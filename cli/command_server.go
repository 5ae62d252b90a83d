package cli

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/backup"
	"github.com/gitvault/gitvault/internal/clock"
	"github.com/gitvault/gitvault/internal/scheduler"
)

// commandServer runs backups on a schedule until interrupted.
type commandServer struct {
	cron      string
	every     time.Duration
	dailyAt   string
	noCatchUp bool
}

func (c *commandServer) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("server", "Run backups on a schedule until interrupted.")
	cmd.Flag("schedule-cron", "Cron expression (5 fields) selecting run times").Envar("GITVAULT_SCHEDULE_CRON").StringVar(&c.cron)
	cmd.Flag("schedule-every", "Fixed interval between runs (e.g. 6h)").Envar("GITVAULT_SCHEDULE_EVERY").DurationVar(&c.every)
	cmd.Flag("backup-time", "Time of day for the daily run (HH:MM)").Default("02:00").Envar("GITVAULT_BACKUP_TIME").StringVar(&c.dailyAt)
	cmd.Flag("no-catch-up", "Do not run immediately when the last scheduled run was missed").BoolVar(&c.noCatchUp)
	cmd.Action(svc.engineAction(c.run))
}

func (c *commandServer) buildSchedule() (scheduler.Schedule, int, int, error) {
	if c.cron != "" {
		s, err := scheduler.CronSchedule(c.cron)
		return s, -1, -1, err
	}

	if c.every != 0 {
		s, err := scheduler.IntervalSchedule(c.every)
		return s, -1, -1, err
	}

	hour, minute, err := parseTimeOfDay(c.dailyAt)
	if err != nil {
		return nil, -1, -1, err
	}

	s, err := scheduler.DailySchedule(hour, minute)

	return s, hour, minute, err
}

func (c *commandServer) run(ctx context.Context, eng *Engine) error {
	runner, err := eng.requireRunner()
	if err != nil {
		return err
	}

	sched, hour, minute, err := c.buildSchedule()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log(ctx).Infof("scheduler started: %v", sched.Summary())

	// catch up on a daily run missed while the process was down.
	if hour >= 0 && !c.noCatchUp && eng.State.MissedScheduledRun(ctx, hour, minute) {
		log(ctx).Infof("running missed backup now")
		c.triggerRun(ctx, runner)
	}

	next := sched.NextRun(clock.Now())

	s := scheduler.Start(ctx, func(ctx context.Context, now time.Time) []scheduler.Item {
		return []scheduler.Item{{
			Description: sched.Summary(),
			NextTime:    next,
			Trigger: func() {
				next = sched.NextRun(clock.Now())

				c.triggerRun(ctx, runner)
			},
		}}
	}, scheduler.Options{})

	<-ctx.Done()

	log(ctx).Infof("shutting down")
	s.Stop()

	return nil
}

func (c *commandServer) triggerRun(ctx context.Context, runner *backup.Runner) {
	result, err := runner.Run(ctx)

	switch {
	case errors.Is(err, backup.ErrRunInProgress):
		log(ctx).Warnf("skipping scheduled backup: previous run still in progress")
	case err != nil:
		log(ctx).Errorf("backup failed: %v", err)
	default:
		log(ctx).Infof("backup %v finished: %v (%v processed, %v skipped, %v failed)",
			result.SnapshotID, result.Status(), result.Processed, result.Skipped, result.Failed)
	}
}

func parseTimeOfDay(v string) (hour, minute int, err error) {
	parts := strings.Split(v, ":")

	const numParts = 2

	if len(parts) != numParts {
		return 0, 0, errors.Errorf("invalid time of day %q, expected HH:MM", v)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, errors.Errorf("invalid time of day %q, expected HH:MM", v)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, errors.Errorf("invalid time of day %q, expected HH:MM", v)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, errors.Errorf("invalid time of day %q", v)
	}

	return hour, minute, nil
}
