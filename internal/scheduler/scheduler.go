// Package scheduler implements a simple scheduler that triggers the next item
// when its due time is reached based on the list of upcoming items.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/gitvault/gitvault/internal/clock"
	"github.com/gitvault/gitvault/repo/logging"
)

var log = logging.Module("scheduler")

// GetItemsFunc is a callback that returns items for the scheduler to consider.
type GetItemsFunc func(ctx context.Context, now time.Time) []Item

// Item describes an item that can be scheduled with a function that is invoked
// the next time the item is due.
type Item struct {
	Description string
	NextTime    time.Time
	Trigger     func()
}

// Scheduler triggers arbitrary events by periodically determining the first of
// a set of upcoming events and waiting until it is due.
type Scheduler struct {
	TimeNow func() time.Time

	refreshRequested chan string
	getItems         GetItemsFunc
	closed           chan struct{}
	wg               sync.WaitGroup
}

// Options configure the scheduler.
type Options struct {
	TimeNow        func() time.Time
	RefreshChannel chan string
}

// Start runs a new scheduler that will call getItems() to get the list of
// items to schedule.
func Start(ctx context.Context, getItems GetItemsFunc, opts Options) *Scheduler {
	timeNow := opts.TimeNow

	if timeNow == nil {
		timeNow = clock.Now
	}

	s := &Scheduler{
		TimeNow:          timeNow,
		refreshRequested: opts.RefreshChannel,
		closed:           make(chan struct{}),
		getItems:         getItems,
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.run(context.WithoutCancel(ctx))
	}()

	return s
}

const sleepTimeWhenNoUpcomingRuns = 8 * time.Hour

func (s *Scheduler) upcomingItems(ctx context.Context, now time.Time) (nextTriggerTime time.Time, toTrigger []Item) {
	all := s.getItems(ctx, now)

	for _, t := range all {
		if nextTriggerTime.IsZero() || t.NextTime.Before(nextTriggerTime) {
			nextTriggerTime = t.NextTime
			toTrigger = nil
		}

		if t.NextTime.Equal(nextTriggerTime) {
			toTrigger = append(toTrigger, t)
		}
	}

	return nextTriggerTime, toTrigger
}

func sleepTimeOrDefault(now, t time.Time, def time.Duration) time.Duration {
	if t.IsZero() {
		return def
	}

	// note this may be negative if getItems returns items in the past.
	return t.Sub(now)
}

// Stop stops the scheduler and waits for the run loop to exit.
func (s *Scheduler) Stop() {
	close(s.closed)
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	var timer *time.Timer

	for {
		now := s.TimeNow()
		nextTriggerTime, toTrigger := s.upcomingItems(ctx, now)

		sleepTimeUntilNextTrigger := sleepTimeOrDefault(now, nextTriggerTime, sleepTimeWhenNoUpcomingRuns)
		if sleepTimeUntilNextTrigger < 0 {
			sleepTimeUntilNextTrigger = 0
		}

		// stop previous timer, if any
		if timer != nil {
			timer.Stop()
		}

		timer = time.NewTimer(sleepTimeUntilNextTrigger)

		select {
		case <-s.closed:
			// stopping, just exit
			return

		case <-timer.C:
			for _, it := range toTrigger {
				log(ctx).Debugf("triggering %v", it.Description)

				it.Trigger()
			}

		case reason := <-s.refreshRequested:
			log(ctx).Debugw("schedule re-evaluation requested", "reason", reason)
		}
	}
}
