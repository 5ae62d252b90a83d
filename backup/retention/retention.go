// Package retention decides which historical snapshots are safe to delete.
package retention

import (
	"context"

	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/repo/logging"
)

var log = logging.Module("retention")

// SnapshotStore is the subset of the backup store used by retention.
type SnapshotStore interface {
	// ListSnapshotIDs returns the union of snapshot IDs across all items,
	// sorted newest first.
	ListSnapshotIDs(ctx context.Context) ([]string, error)

	// DeleteSnapshot removes one snapshot across all items and returns the
	// number of objects removed.
	DeleteSnapshot(ctx context.Context, snapshotID string) (int, error)
}

// ProtectedFunc returns the set of snapshot IDs currently referenced as some
// item's most recent successful backup. It is re-evaluated immediately before
// delete decisions so the protected set always reflects live state.
type ProtectedFunc func() map[string]struct{}

// Manager deletes snapshots that fall past the retention horizon and are not
// protected.
type Manager struct {
	store     SnapshotStore
	protected ProtectedFunc
	keep      int
}

// NewManager returns a retention Manager keeping the newest 'keep' snapshots
// unconditionally.
func NewManager(store SnapshotStore, protected ProtectedFunc, keep int) (*Manager, error) {
	if keep < 1 {
		return nil, errors.Errorf("retention count must be at least 1, got %v", keep)
	}

	if protected == nil {
		return nil, errors.New("protected snapshot source must be provided")
	}

	return &Manager{store: store, protected: protected, keep: keep}, nil
}

// Result describes the outcome of a retention sweep.
type Result struct {
	// SnapshotsDeleted is the number of snapshots removed.
	SnapshotsDeleted int

	// ObjectsDeleted is the total number of storage objects removed.
	ObjectsDeleted int

	// Preserved lists candidate snapshots retained because they are some
	// item's last backup.
	Preserved []string
}

// Sweep removes every snapshot past the newest-'keep' horizon that is not
// protected. A snapshot referenced as any item's last successful backup is
// kept even past the horizon, so a dormant item's single snapshot is retained
// forever and every tracked item always has at least one recoverable
// snapshot.
func (m *Manager) Sweep(ctx context.Context) (Result, error) {
	var res Result

	snapshots, err := m.store.ListSnapshotIDs(ctx)
	if err != nil {
		return res, errors.Wrap(err, "error listing snapshots")
	}

	if len(snapshots) <= m.keep {
		log(ctx).Debugf("no cleanup needed: %v snapshots <= %v retention", len(snapshots), m.keep)
		return res, nil
	}

	// recompute the protected set from live state immediately before any
	// delete decision.
	protected := m.protected()

	var toDelete []string

	for _, id := range snapshots[m.keep:] {
		if _, ok := protected[id]; ok {
			log(ctx).Infof("preserving snapshot %v (last backup for one or more items)", id)
			res.Preserved = append(res.Preserved, id)

			continue
		}

		toDelete = append(toDelete, id)
	}

	if len(toDelete) == 0 {
		return res, nil
	}

	log(ctx).Infof("cleaning up %v old snapshot(s)", len(toDelete))

	for _, id := range toDelete {
		// invariant: a protected snapshot must never reach the delete path.
		if _, ok := protected[id]; ok {
			return res, errors.Errorf("internal error: protected snapshot %v selected for deletion", id)
		}

		n, err := m.store.DeleteSnapshot(ctx, id)

		res.ObjectsDeleted += n
		if err != nil {
			return res, errors.Wrapf(err, "error deleting snapshot %v", id)
		}

		res.SnapshotsDeleted++
	}

	return res, nil
}
