package backup

import (
	"time"

	"github.com/pkg/errors"
)

// snapshotIDFormat yields IDs whose lexicographic order equals chronological
// order, e.g. "2026-08-23_02-00-00". The format is part of the storage key
// contract.
const snapshotIDFormat = "2006-01-02_15-04-05"

// NewSnapshotID returns the snapshot ID for a run starting at the given time.
func NewSnapshotID(t time.Time) string {
	return t.Format(snapshotIDFormat)
}

// ParseSnapshotID returns the start time encoded in a snapshot ID.
func ParseSnapshotID(id string) (time.Time, error) {
	t, err := time.Parse(snapshotIDFormat, id)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid snapshot ID %q", id)
	}

	return t, nil
}
