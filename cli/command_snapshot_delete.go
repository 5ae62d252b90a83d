package cli

import (
	"context"

	"github.com/pkg/errors"
)

// commandSnapshotDelete removes one snapshot across all items.
type commandSnapshotDelete struct {
	snapshotID string
	force      bool

	out textOutput
}

func (c *commandSnapshotDelete) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("delete", "Delete a snapshot across all items.").Alias("rm")
	cmd.Arg("snapshot-id", "Snapshot to delete").Required().StringVar(&c.snapshotID)
	cmd.Flag("force", "Delete even if the snapshot is some item's last backup").BoolVar(&c.force)
	c.out.setup(svc)
	cmd.Action(svc.engineAction(c.run))
}

func (c *commandSnapshotDelete) run(ctx context.Context, eng *Engine) error {
	if _, ok := eng.State.ProtectedSnapshots()[c.snapshotID]; ok && !c.force {
		return errors.Errorf("snapshot %v is the last backup of one or more items, use --force to delete it anyway", c.snapshotID)
	}

	n, err := eng.Store.DeleteSnapshot(ctx, c.snapshotID)
	if err != nil {
		return err
	}

	c.out.printStdout("deleted snapshot %v (%v objects)\n", c.snapshotID, n)

	return nil
}
