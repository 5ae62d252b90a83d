package manifest_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gitvault/gitvault/backup"
	"github.com/gitvault/gitvault/backup/manifest"
	"github.com/gitvault/gitvault/internal/testlogging"
)

func writeManifest(t *testing.T, dir string, m manifest.Manifest) string {
	t.Helper()

	b, err := json.Marshal(m)
	require.NoError(t, err)

	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))

	return path
}

func TestListItems(t *testing.T) {
	ctx := testlogging.Context(t)
	dir := t.TempDir()

	artifact := filepath.Join(dir, "repo1.bundle")
	require.NoError(t, os.WriteFile(artifact, []byte("data"), 0o600))

	path := writeManifest(t, dir, manifest.Manifest{
		Items: []manifest.ItemSpec{
			{ID: "repo1", VersionToken: "v1", Files: []manifest.FileSpec{{Path: artifact}}},
			{ID: "repo2", VersionToken: "v2", Private: true},
		},
	})

	items, err := manifest.NewSource(path).ListItems(ctx)
	require.NoError(t, err)

	require.Equal(t, []backup.SourceItem{
		{ID: "repo1", VersionToken: "v1"},
		{ID: "repo2", VersionToken: "v2", Private: true},
	}, items)
}

func TestVersionTokenDerivedFromModTime(t *testing.T) {
	ctx := testlogging.Context(t)
	dir := t.TempDir()

	artifact := filepath.Join(dir, "repo1.bundle")
	require.NoError(t, os.WriteFile(artifact, []byte("data"), 0o600))

	mtime := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(artifact, mtime, mtime))

	path := writeManifest(t, dir, manifest.Manifest{
		Items: []manifest.ItemSpec{
			{ID: "repo1", Files: []manifest.FileSpec{{Path: artifact}}},
		},
	})

	src := manifest.NewSource(path)

	items, err := src.ListItems(ctx)
	require.NoError(t, err)
	require.Equal(t, mtime.Format(time.RFC3339Nano), items[0].VersionToken)

	// touching the file changes the token.
	mtime2 := mtime.Add(time.Hour)
	require.NoError(t, os.Chtimes(artifact, mtime2, mtime2))

	items, err = src.ListItems(ctx)
	require.NoError(t, err)
	require.Equal(t, mtime2.Format(time.RFC3339Nano), items[0].VersionToken)
}

func TestProduce(t *testing.T) {
	ctx := testlogging.Context(t)
	dir := t.TempDir()

	artifact := filepath.Join(dir, "repo1.bundle")
	require.NoError(t, os.WriteFile(artifact, []byte("data"), 0o600))

	path := writeManifest(t, dir, manifest.Manifest{
		Items: []manifest.ItemSpec{
			{ID: "repo1", VersionToken: "v1", Files: []manifest.FileSpec{{Name: "custom.bundle", Path: artifact}}},
		},
	})

	src := manifest.NewSource(path)

	artifacts, err := src.Produce(ctx, backup.SourceItem{ID: "repo1"}, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, []backup.Artifact{{Name: "custom.bundle", Path: artifact, Size: 4}}, artifacts)

	_, err = src.Produce(ctx, backup.SourceItem{ID: "unknown"}, t.TempDir())
	require.Error(t, err)
}

func TestInvalidManifest(t *testing.T) {
	ctx := testlogging.Context(t)
	dir := t.TempDir()

	_, err := manifest.NewSource(filepath.Join(dir, "missing.json")).ListItems(ctx)
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))

	_, err = manifest.NewSource(bad).ListItems(ctx)
	require.Error(t, err)

	noID := writeManifest(t, dir, manifest.Manifest{Items: []manifest.ItemSpec{{}}})

	_, err = manifest.NewSource(noID).ListItems(ctx)
	require.Error(t, err)
}
