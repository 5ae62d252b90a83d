package cli

import (
	"context"
	"time"
)

// commandSnapshotShow lists the objects belonging to one snapshot.
type commandSnapshotShow struct {
	snapshotID string

	out textOutput
}

func (c *commandSnapshotShow) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("show", "Show the objects belonging to a snapshot.")
	cmd.Arg("snapshot-id", "Snapshot to show").Required().StringVar(&c.snapshotID)
	c.out.setup(svc)
	cmd.Action(svc.engineAction(c.run))
}

func (c *commandSnapshotShow) run(ctx context.Context, eng *Engine) error {
	bms, err := eng.Store.SnapshotFiles(ctx, c.snapshotID)
	if err != nil {
		return err
	}

	var total int64

	for _, bm := range bms {
		c.out.printStdout("%-70v %10v %v\n", bm.BlobID, bm.Length, bm.Timestamp.Format(time.RFC3339))
		total += bm.Length
	}

	c.out.printStdout("total: %v objects, %v\n", len(bms), formatBytes(total))

	return nil
}
