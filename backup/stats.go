package backup

import "time"

// Status classifies a finished run.
type Status int

// Run status values.
const (
	// StatusSuccess means zero item failures occurred.
	StatusSuccess Status = iota

	// StatusPartialFailure means some items succeeded and at least one failed.
	StatusPartialFailure

	// StatusTotalFailure means no item succeeded and at least one failed, or
	// enumeration itself failed.
	StatusTotalFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartialFailure:
		return "partial failure"
	default:
		return "total failure"
	}
}

// Stats accumulates counters for one run. The zero value is a run that did
// nothing: no items seen, nothing uploaded, nothing deleted.
type Stats struct {
	// Processed is the number of items backed up successfully.
	Processed int

	// Skipped is the number of items left untouched because they were
	// unchanged since their last backup.
	Skipped int

	// Failed is the number of items whose backup failed.
	Failed int

	// Remaining is the number of items left unprocessed because the run was
	// cancelled; their state is untouched so they are retried next run.
	Remaining int

	// BytesUploaded is the total artifact payload uploaded.
	BytesUploaded int64

	// SnapshotsDeleted and ObjectsDeleted describe the retention sweep.
	SnapshotsDeleted int
	ObjectsDeleted   int
}

// Result is the structured summary of one backup run.
type Result struct {
	// SnapshotID identifies the run.
	SnapshotID string

	StartTime time.Time
	Duration  time.Duration

	Stats

	// Errors holds one message per failed item, in processing order. A fatal
	// error (failed enumeration) is also recorded here.
	Errors []string

	// Cancelled is set when the run stopped early due to a cancellation
	// request.
	Cancelled bool

	// fatal marks a run that failed before any item could be processed.
	fatal bool
}

// Status returns the run classification used for notification severity and
// exit codes.
func (r *Result) Status() Status {
	switch {
	case r.fatal:
		return StatusTotalFailure
	case r.Failed == 0:
		return StatusSuccess
	case r.Processed > 0:
		return StatusPartialFailure
	default:
		return StatusTotalFailure
	}
}
