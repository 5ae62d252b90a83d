package cli

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// commandSnapshotDownload fetches a snapshot's objects into a local directory,
// preserving the {itemID}/{filename} layout.
type commandSnapshotDownload struct {
	snapshotID string
	targetDir  string
	itemID     string

	out textOutput
}

func (c *commandSnapshotDownload) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("download", "Download a snapshot's objects to a local directory.")
	cmd.Arg("snapshot-id", "Snapshot to download").Required().StringVar(&c.snapshotID)
	cmd.Arg("target-dir", "Directory to download into").Required().StringVar(&c.targetDir)
	cmd.Flag("item", "Download only the given item").StringVar(&c.itemID)
	c.out.setup(svc)
	cmd.Action(svc.engineAction(c.run))
}

func (c *commandSnapshotDownload) run(ctx context.Context, eng *Engine) error {
	if c.itemID != "" {
		ids, err := eng.Store.ItemSnapshotIDs(ctx, c.itemID)
		if err != nil {
			return err
		}

		if !slices.Contains(ids, c.snapshotID) {
			return errors.Errorf("item %v has no snapshot %v", c.itemID, c.snapshotID)
		}
	}

	bms, err := eng.Store.SnapshotFiles(ctx, c.snapshotID)
	if err != nil {
		return err
	}

	var (
		files int
		total int64
	)

	for _, bm := range bms {
		// {namespace}/{itemID}/{snapshotID}/{filename}
		rest := strings.TrimPrefix(string(bm.BlobID), eng.Store.Namespace()+"/")

		parts := strings.SplitN(rest, "/", 3)
		if len(parts) != 3 {
			return errors.Errorf("unexpected object key %v", bm.BlobID)
		}

		itemID, filename := parts[0], parts[2]

		if c.itemID != "" && itemID != c.itemID {
			continue
		}

		data, err := eng.Store.GetFile(ctx, itemID, c.snapshotID, filename)
		if err != nil {
			return err
		}

		localPath := filepath.Join(c.targetDir, itemID, filepath.FromSlash(filename))

		if err := os.MkdirAll(filepath.Dir(localPath), 0o700); err != nil {
			return errors.Wrap(err, "error creating target directory")
		}

		if err := os.WriteFile(localPath, data, 0o600); err != nil {
			return errors.Wrapf(err, "error writing %v", localPath)
		}

		files++
		total += int64(len(data))
	}

	if files == 0 {
		return errors.Errorf("snapshot %v not found", c.snapshotID)
	}

	c.out.printStdout("downloaded %v file(s), %v\n", files, formatBytes(total))

	return nil
}
