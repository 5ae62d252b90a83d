package cli

import (
	"context"
)

// commandRetention groups retention subcommands.
type commandRetention struct {
	run commandRetentionRun
}

func (c *commandRetention) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("retention", "Commands to manage snapshot retention.")

	c.run.setup(svc, cmd)
}

// commandRetentionRun sweeps snapshots past the retention horizon.
type commandRetentionRun struct {
	out textOutput
}

func (c *commandRetentionRun) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("run", "Delete snapshots past the retention horizon.")
	c.out.setup(svc)
	cmd.Action(svc.engineAction(c.run))
}

func (c *commandRetentionRun) run(ctx context.Context, eng *Engine) error {
	res, err := eng.Retention.Sweep(ctx)
	if err != nil {
		return err
	}

	c.out.printStdout("deleted %v snapshot(s), %v object(s)\n", res.SnapshotsDeleted, res.ObjectsDeleted)

	for _, id := range res.Preserved {
		c.out.printStdout("preserved %v (last backup of one or more items)\n", id)
	}

	return nil
}
