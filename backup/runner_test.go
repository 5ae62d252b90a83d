package backup_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/gitvault/gitvault/backup"
	"github.com/gitvault/gitvault/backup/retention"
	"github.com/gitvault/gitvault/backup/state"
	"github.com/gitvault/gitvault/backup/store"
	"github.com/gitvault/gitvault/internal/blobtesting"
	"github.com/gitvault/gitvault/internal/faketime"
	"github.com/gitvault/gitvault/internal/testlogging"
)

var baseTime = time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)

type fakeSource struct {
	items   []backup.SourceItem
	listErr error

	// produce overrides the default artifact production when set.
	produce func(ctx context.Context, item backup.SourceItem, scratchDir string) ([]backup.Artifact, error)
}

func (s *fakeSource) ListItems(ctx context.Context) ([]backup.SourceItem, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}

	return s.items, nil
}

func (s *fakeSource) Produce(ctx context.Context, item backup.SourceItem, scratchDir string) ([]backup.Artifact, error) {
	if s.produce != nil {
		return s.produce(ctx, item, scratchDir)
	}

	path := filepath.Join(scratchDir, item.ID+".bundle")

	payload := []byte("bundle-of-" + item.ID)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return nil, err
	}

	return []backup.Artifact{{Name: item.ID + ".bundle", Path: path, Size: int64(len(payload))}}, nil
}

type capturingNotifier struct {
	results []*backup.Result
}

func (n *capturingNotifier) BackupFinished(ctx context.Context, result *backup.Result) {
	n.results = append(n.results, result)
}

type runnerHarness struct {
	runner  *backup.Runner
	source  *fakeSource
	storage blobtesting.MapStorage
	state   *state.Manager
}

func newRunnerHarness(t *testing.T, items ...backup.SourceItem) *runnerHarness {
	t.Helper()

	ctx := testlogging.Context(t)

	storage := blobtesting.NewMapStorage(blobtesting.DataMap{}, nil, nil)

	bs, err := store.New(storage, "acme")
	require.NoError(t, err)

	sm, err := state.Open(ctx, state.Options{
		LocalPath: filepath.Join(t.TempDir(), state.StateFileName),
		Mirror:    bs,
	})
	require.NoError(t, err)

	rm, err := retention.NewManager(bs, sm.ProtectedSnapshots, 3)
	require.NoError(t, err)

	src := &fakeSource{items: items}

	return &runnerHarness{
		runner: &backup.Runner{
			Source:    src,
			Producer:  src,
			Store:     bs,
			State:     sm,
			Retention: rm,
			WorkDir:   t.TempDir(),
			TimeNow:   faketime.AutoAdvance(baseTime, time.Minute),
		},
		source:  src,
		storage: storage,
		state:   sm,
	}
}

func items(n int) []backup.SourceItem {
	result := make([]backup.SourceItem, 0, n)
	for i := 1; i <= n; i++ {
		result = append(result, backup.SourceItem{
			ID:           fmt.Sprintf("repo%02d", i),
			VersionToken: "v1",
		})
	}

	return result
}

func TestRunBacksUpAllItems(t *testing.T) {
	ctx := testlogging.Context(t)
	h := newRunnerHarness(t, items(3)...)

	result, err := h.runner.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, backup.StatusSuccess, result.Status())
	require.Equal(t, 3, result.Processed)
	require.Zero(t, result.Skipped)
	require.Zero(t, result.Failed)
	require.Positive(t, result.BytesUploaded)

	require.Equal(t, "2025-03-01_02-00-00", result.SnapshotID)

	// every item's state was committed.
	for _, it := range items(3) {
		id, ok := h.state.LastSnapshotID(it.ID)
		require.True(t, ok)
		require.Equal(t, result.SnapshotID, id)
	}

	// a successful run records the sync time.
	_, ok := h.state.LastSyncTime()
	require.True(t, ok)
}

func TestRunSkipsUnchangedItems(t *testing.T) {
	ctx := testlogging.Context(t)
	h := newRunnerHarness(t, items(3)...)

	_, err := h.runner.Run(ctx)
	require.NoError(t, err)

	uploads := h.storage.PutCount()

	// second run with identical version tokens uploads nothing new.
	result, err := h.runner.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, backup.StatusSuccess, result.Status())
	require.Zero(t, result.Processed)
	require.Equal(t, 3, result.Skipped)

	// only the state mirror was rewritten (sync time update).
	require.LessOrEqual(t, h.storage.PutCount()-uploads, 1)
}

func TestRunIsolatesItemFailures(t *testing.T) {
	ctx := testlogging.Context(t)
	h := newRunnerHarness(t, items(10)...)

	h.source.produce = func(ctx context.Context, item backup.SourceItem, scratchDir string) ([]backup.Artifact, error) {
		if item.ID == "repo06" {
			return nil, errors.New("clone failed")
		}

		path := filepath.Join(scratchDir, item.ID+".bundle")
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			return nil, err
		}

		return []backup.Artifact{{Name: item.ID + ".bundle", Path: path, Size: 1}}, nil
	}

	result, err := h.runner.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, backup.StatusPartialFailure, result.Status())
	require.Equal(t, 9, result.Processed)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "repo06")

	// items processed before and after the failure were committed.
	_, ok := h.state.LastSnapshotID("repo05")
	require.True(t, ok)
	_, ok = h.state.LastSnapshotID("repo07")
	require.True(t, ok)
	_, ok = h.state.LastSnapshotID("repo06")
	require.False(t, ok)

	// a partially-failed run does not advance the sync time.
	_, ok = h.state.LastSyncTime()
	require.False(t, ok)
}

func TestRunTotalFailure(t *testing.T) {
	ctx := testlogging.Context(t)
	h := newRunnerHarness(t, items(2)...)

	h.source.produce = func(ctx context.Context, item backup.SourceItem, scratchDir string) ([]backup.Artifact, error) {
		return nil, errors.New("provider down")
	}

	result, err := h.runner.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, backup.StatusTotalFailure, result.Status())
	require.Equal(t, 2, result.Failed)
}

func TestRunEnumerationFailureIsFatal(t *testing.T) {
	ctx := testlogging.Context(t)
	h := newRunnerHarness(t)

	h.source.listErr = errors.New("api unavailable")

	result, err := h.runner.Run(ctx)
	require.Error(t, err)
	require.Equal(t, backup.StatusTotalFailure, result.Status())
}

func TestRunProducerPanicCountsAsFailure(t *testing.T) {
	ctx := testlogging.Context(t)
	h := newRunnerHarness(t, items(2)...)

	h.source.produce = func(ctx context.Context, item backup.SourceItem, scratchDir string) ([]backup.Artifact, error) {
		if item.ID == "repo01" {
			panic("boom")
		}

		return nil, nil
	}

	result, err := h.runner.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, backup.StatusPartialFailure, result.Status())
	require.Equal(t, 1, result.Failed)
	require.Equal(t, 1, result.Processed)
	require.Contains(t, result.Errors[0], "panic")
}

func TestRunCancellationStopsBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(testlogging.Context(t))
	defer cancel()

	h := newRunnerHarness(t, items(5)...)

	var processed int

	h.source.produce = func(ctx context.Context, item backup.SourceItem, scratchDir string) ([]backup.Artifact, error) {
		processed++

		// request cancellation while the second item is in flight; the item
		// itself must still complete.
		if processed == 2 {
			cancel()
		}

		path := filepath.Join(scratchDir, item.ID+".bundle")
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			return nil, err
		}

		return []backup.Artifact{{Name: item.ID + ".bundle", Path: path, Size: 1}}, nil
	}

	result, err := h.runner.Run(ctx)
	require.NoError(t, err)

	require.True(t, result.Cancelled)
	require.Equal(t, 2, result.Processed)
	require.Equal(t, 3, result.Remaining)
	require.Zero(t, result.Failed)

	// the in-flight item finished and was committed.
	_, ok := h.state.LastSnapshotID("repo02")
	require.True(t, ok)

	// untouched items have no state and are retried next run.
	_, ok = h.state.LastSnapshotID("repo03")
	require.False(t, ok)

	// a cancelled run never counts as a completed sync.
	_, ok = h.state.LastSyncTime()
	require.False(t, ok)
}

func TestRunBusyGuard(t *testing.T) {
	ctx := testlogging.Context(t)
	h := newRunnerHarness(t, items(1)...)

	started := make(chan struct{})
	release := make(chan struct{})

	h.source.produce = func(ctx context.Context, item backup.SourceItem, scratchDir string) ([]backup.Artifact, error) {
		close(started)
		<-release

		return nil, nil
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		_, err := h.runner.Run(ctx)
		require.NoError(t, err)
	}()

	<-started

	_, err := h.runner.Run(ctx)
	require.ErrorIs(t, err, backup.ErrRunInProgress)

	close(release)
	<-done

	// once the first run finishes, new runs are accepted again.
	_, err = h.runner.Run(ctx)
	require.NoError(t, err)
}

func TestRunNotifiesWhenConfigured(t *testing.T) {
	ctx := testlogging.Context(t)
	h := newRunnerHarness(t, items(2)...)

	n := &capturingNotifier{}
	h.runner.Notifier = n

	result, err := h.runner.Run(ctx)
	require.NoError(t, err)

	require.Len(t, n.results, 1)
	require.Same(t, result, n.results[0])
}

func TestRunRetentionSweep(t *testing.T) {
	ctx := testlogging.Context(t)
	h := newRunnerHarness(t, items(1)...)

	// four runs with changing tokens create four snapshots; retention keeps 3.
	for i := 0; i < 4; i++ {
		h.source.items[0].VersionToken = fmt.Sprintf("v%d", i)

		result, err := h.runner.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, result.Processed)

		if i == 3 {
			require.Equal(t, 1, result.SnapshotsDeleted)
		} else {
			require.Zero(t, result.SnapshotsDeleted)
		}
	}

	ids, err := h.runner.Store.ListSnapshotIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 3)
}

func TestSnapshotIDFormat(t *testing.T) {
	id := backup.NewSnapshotID(time.Date(2025, 3, 1, 2, 5, 9, 0, time.UTC))
	require.Equal(t, "2025-03-01_02-05-09", id)

	ts, err := backup.ParseSnapshotID(id)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 3, 1, 2, 5, 9, 0, time.UTC), ts)

	_, err = backup.ParseSnapshotID("20250301")
	require.Error(t, err)
}
