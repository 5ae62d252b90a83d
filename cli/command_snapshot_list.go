package cli

import (
	"context"
)

// commandSnapshotList lists all snapshots, newest first.
type commandSnapshotList struct {
	showSizes bool

	out textOutput
}

func (c *commandSnapshotList) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("list", "List snapshots, newest first.").Alias("ls")
	cmd.Flag("sizes", "Include total size of each snapshot").BoolVar(&c.showSizes)
	c.out.setup(svc)
	cmd.Action(svc.engineAction(c.run))
}

func (c *commandSnapshotList) run(ctx context.Context, eng *Engine) error {
	ids, err := eng.Store.ListSnapshotIDs(ctx)
	if err != nil {
		return err
	}

	protected := eng.State.ProtectedSnapshots()

	for _, id := range ids {
		var suffix string

		if _, ok := protected[id]; ok {
			suffix = " (protected)"
		}

		if c.showSizes {
			size, err := eng.Store.SnapshotSize(ctx, id)
			if err != nil {
				return err
			}

			c.out.printStdout("%v %10v%v\n", id, formatBytes(size), suffix)
		} else {
			c.out.printStdout("%v%v\n", id, suffix)
		}
	}

	return nil
}
