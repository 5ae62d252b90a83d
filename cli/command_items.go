package cli

import (
	"context"
	"time"
)

// commandItems lists items present in the backup store.
type commandItems struct {
	out textOutput
}

func (c *commandItems) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("items", "List items with stored backups.")
	c.out.setup(svc)
	cmd.Action(svc.engineAction(c.run))
}

func (c *commandItems) run(ctx context.Context, eng *Engine) error {
	items, err := eng.Store.ListItems(ctx)
	if err != nil {
		return err
	}

	tracked := eng.State.TrackedItems()

	for _, id := range items {
		if rs, ok := tracked[id]; ok {
			c.out.printStdout("%-40v last backup %v (snapshot %v)\n", id, rs.LastBackupTime.Format(time.RFC3339), rs.LastSnapshotID)
		} else {
			c.out.printStdout("%-40v (not tracked locally)\n", id)
		}
	}

	return nil
}
