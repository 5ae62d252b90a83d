package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitvault/gitvault/backup/store"
	"github.com/gitvault/gitvault/internal/blobtesting"
	"github.com/gitvault/gitvault/internal/testlogging"
	"github.com/gitvault/gitvault/repo/blob"
)

func TestSnapshotDownload(t *testing.T) {
	ctx := testlogging.Context(t)

	const snapID = "2025-03-01_02-00-00"

	st := blobtesting.NewMapStorage(blobtesting.DataMap{}, nil, nil)

	bs, err := store.New(st, "acme")
	require.NoError(t, err)

	require.NoError(t, bs.Put(ctx, "repo1", snapID, "repo1.bundle", blob.BytesOf([]byte("bundle-data"))))
	require.NoError(t, bs.Put(ctx, "repo1", snapID, "meta/issues.json", blob.BytesOf([]byte("[]"))))
	require.NoError(t, bs.Put(ctx, "repo2", snapID, "repo2.bundle", blob.BytesOf([]byte("other"))))

	a := NewApp()
	a.stdoutWriter = &bytes.Buffer{}

	eng := &Engine{Store: bs}

	targetDir := t.TempDir()

	cmd := &commandSnapshotDownload{snapshotID: snapID, targetDir: targetDir}
	cmd.out.setup(a)

	require.NoError(t, cmd.run(ctx, eng))

	got, err := os.ReadFile(filepath.Join(targetDir, "repo1", "repo1.bundle"))
	require.NoError(t, err)
	require.Equal(t, []byte("bundle-data"), got)

	got, err = os.ReadFile(filepath.Join(targetDir, "repo1", "meta", "issues.json"))
	require.NoError(t, err)
	require.Equal(t, []byte("[]"), got)

	got, err = os.ReadFile(filepath.Join(targetDir, "repo2", "repo2.bundle"))
	require.NoError(t, err)
	require.Equal(t, []byte("other"), got)
}

func TestSnapshotDownloadSingleItem(t *testing.T) {
	ctx := testlogging.Context(t)

	const snapID = "2025-03-01_02-00-00"

	st := blobtesting.NewMapStorage(blobtesting.DataMap{}, nil, nil)

	bs, err := store.New(st, "acme")
	require.NoError(t, err)

	require.NoError(t, bs.Put(ctx, "repo1", snapID, "repo1.bundle", blob.BytesOf([]byte("bundle-data"))))
	require.NoError(t, bs.Put(ctx, "repo2", snapID, "repo2.bundle", blob.BytesOf([]byte("other"))))

	a := NewApp()
	a.stdoutWriter = &bytes.Buffer{}

	eng := &Engine{Store: bs}

	targetDir := t.TempDir()

	cmd := &commandSnapshotDownload{snapshotID: snapID, targetDir: targetDir, itemID: "repo2"}
	cmd.out.setup(a)

	require.NoError(t, cmd.run(ctx, eng))

	_, err = os.Stat(filepath.Join(targetDir, "repo2", "repo2.bundle"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(targetDir, "repo1"))
	require.True(t, os.IsNotExist(err))

	// the item exists but has no such snapshot
	cmd2 := &commandSnapshotDownload{snapshotID: "2024-01-01_00-00-00", targetDir: t.TempDir(), itemID: "repo2"}
	cmd2.out.setup(a)

	require.ErrorContains(t, cmd2.run(ctx, eng), "has no snapshot")
}
