// Package backup orchestrates incremental backup runs: change detection,
// per-item processing with failure isolation, durable state commits and
// retention sweeps.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/backup/retention"
	"github.com/gitvault/gitvault/backup/state"
	"github.com/gitvault/gitvault/backup/store"
	"github.com/gitvault/gitvault/internal/clock"
	"github.com/gitvault/gitvault/repo/logging"
)

var log = logging.Module("runner")

// ErrRunInProgress is returned by Run when a previous run has not finished.
// Overlapping runs would share snapshot IDs and race the retention sweep, so
// a busy runner skips the tick instead of queueing.
var ErrRunInProgress = errors.New("another backup run is already in progress")

// Runner executes backup passes. Items are processed strictly sequentially;
// one item's failure never aborts the run or invalidates prior successes.
type Runner struct {
	Source    Source
	Producer  ArtifactProducer
	Store     *store.Store
	State     *state.Manager
	Retention *retention.Manager // optional; nil disables the sweep
	Notifier  Notifier           // optional

	// WorkDir is the local scratch space; each run stages artifacts under a
	// per-snapshot subdirectory and removes it when done.
	WorkDir string

	// TimeNow overrides the clock, for tests.
	TimeNow func() time.Time

	mu sync.Mutex
}

// Run executes one backup pass and returns its structured result. The
// returned error is non-nil only for fatal conditions (busy runner, failed
// enumeration); per-item failures are reported through the result instead.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	timeNow := r.TimeNow
	if timeNow == nil {
		timeNow = clock.Now
	}

	start := timeNow()

	result := &Result{
		SnapshotID: NewSnapshotID(start),
		StartTime:  start,
	}

	scratchDir := filepath.Join(r.WorkDir, result.SnapshotID)

	err := r.runPass(ctx, result, scratchDir)

	if rmErr := os.RemoveAll(scratchDir); rmErr != nil {
		log(ctx).Warnf("unable to clean up scratch directory: %v", rmErr)
	}

	result.Duration = timeNow().Sub(start)

	// a cancelled run leaves items unprocessed, so it never counts as a
	// completed sync.
	if result.Status() == StatusSuccess && !result.Cancelled {
		if syncErr := r.State.UpdateSyncTime(ctx); syncErr != nil {
			log(ctx).Warnf("unable to update sync time: %v", syncErr)
		}
	}

	if r.Notifier != nil {
		r.Notifier.BackupFinished(ctx, result)
	}

	return result, err
}

func (r *Runner) runPass(ctx context.Context, result *Result, scratchDir string) error {
	log(ctx).Infof("starting backup %v", result.SnapshotID)

	items, err := r.Source.ListItems(ctx)
	if err != nil {
		result.fatal = true
		result.Errors = append(result.Errors, fmt.Sprintf("enumeration failed: %v", err))

		return errors.Wrap(err, "error enumerating items")
	}

	changed := make([]SourceItem, 0, len(items))

	for _, item := range items {
		if r.State.HasChanged(ctx, item.ID, item.VersionToken) {
			changed = append(changed, item)
		} else {
			result.Skipped++
		}
	}

	log(ctx).Infof("found %v items, %v changed, %v unchanged", len(items), len(changed), result.Skipped)

	if len(changed) > 0 {
		if err := os.MkdirAll(scratchDir, 0o700); err != nil {
			result.fatal = true
			result.Errors = append(result.Errors, fmt.Sprintf("scratch directory: %v", err))

			return errors.Wrap(err, "error creating scratch directory")
		}

		r.processItems(ctx, changed, result, scratchDir)
	}

	// skip the sweep when cancelled, to exit faster; untouched items stay
	// "changed" and are retried next run.
	if result.Cancelled {
		log(ctx).Infof("backup stopped early, skipping %v remaining items", result.Remaining)
		return nil
	}

	if r.Retention != nil {
		sres, err := r.Retention.Sweep(ctx)

		result.SnapshotsDeleted = sres.SnapshotsDeleted
		result.ObjectsDeleted = sres.ObjectsDeleted

		if err != nil {
			// retention failures do not change the run classification.
			log(ctx).Errorf("retention sweep failed: %v", err)
		}
	}

	return nil
}

func (r *Runner) processItems(ctx context.Context, changed []SourceItem, result *Result, scratchDir string) {
	// Cancellation is cooperative and checked only between items: item work
	// runs on a detached context so an in-flight clone or upload is never
	// interrupted mid-operation. At most one item's worth of work executes
	// after cancellation is requested.
	itemCtx := context.WithoutCancel(ctx)

	for i, item := range changed {
		if ctx.Err() != nil {
			result.Cancelled = true
			result.Remaining = len(changed) - i

			return
		}

		uploaded, err := r.processItem(itemCtx, item, result.SnapshotID, scratchDir)
		if err != nil {
			log(ctx).Warnf("failed to back up %v: %v", item.ID, err)

			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%v: %v", item.ID, err))

			continue
		}

		result.BytesUploaded += uploaded

		// commit progress immediately so a partially-failed run still makes
		// durable progress for everything that succeeded.
		if err := r.State.RecordSuccess(itemCtx, item.ID, item.VersionToken, result.SnapshotID); err != nil {
			log(ctx).Errorf("failed to record state for %v: %v", item.ID, err)

			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%v: state commit failed: %v", item.ID, err))

			continue
		}

		result.Processed++
	}
}

func (r *Runner) processItem(ctx context.Context, item SourceItem, snapshotID, scratchDir string) (uploaded int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("producer panic: %v", p)
		}
	}()

	ilog := logging.WithPrefix(item.ID+": ", log(ctx))

	itemDir := filepath.Join(scratchDir, item.ID)

	if err := os.MkdirAll(itemDir, 0o700); err != nil {
		return 0, errors.Wrap(err, "error creating item scratch directory")
	}

	artifacts, err := r.Producer.Produce(ctx, item, itemDir)
	if err != nil {
		return 0, errors.Wrap(err, "error producing artifacts")
	}

	// an item with no artifacts has nothing to back up; that still counts as
	// a successful backup and advances its version token.
	for _, a := range artifacts {
		n, err := r.Store.PutFile(ctx, item.ID, snapshotID, a.Name, a.Path)
		if err != nil {
			return uploaded, errors.Wrapf(err, "error uploading %v", a.Name)
		}

		ilog.Debugf("uploaded %v (%v bytes)", a.Name, n)

		uploaded += n
	}

	ilog.Infof("backed up %v artifact(s), %v bytes", len(artifacts), uploaded)

	return uploaded, nil
}
