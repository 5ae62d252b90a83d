package cli

import (
	"context"
	"encoding/json"
	"time"
)

// commandState groups state subcommands.
type commandState struct {
	show   commandStateShow
	clear  commandStateClear
	forget commandStateForget
}

func (c *commandState) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("state", "Commands to inspect and reset local backup state.")

	c.show.setup(svc, cmd)
	c.clear.setup(svc, cmd)
	c.forget.setup(svc, cmd)
}

// commandStateShow prints the tracked state document.
type commandStateShow struct {
	jsonOutput bool

	out textOutput
}

func (c *commandStateShow) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("show", "Show tracked items and their last backup.")
	cmd.Flag("json", "Output as JSON").BoolVar(&c.jsonOutput)
	c.out.setup(svc)
	cmd.Action(svc.engineAction(c.run))
}

func (c *commandStateShow) run(ctx context.Context, eng *Engine) error {
	items := eng.State.TrackedItems()

	if c.jsonOutput {
		b, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return err //nolint:wrapcheck
		}

		c.out.printStdout("%s\n", b)

		return nil
	}

	if lastSync, ok := eng.State.LastSyncTime(); ok {
		c.out.printStdout("last successful run: %v\n", lastSync.Format(time.RFC3339))
	} else {
		c.out.printStdout("no successful run recorded\n")
	}

	for id, rs := range items {
		c.out.printStdout("%-40v last backup %v (snapshot %v)\n", id, rs.LastBackupTime.Format(time.RFC3339), rs.LastSnapshotID)
	}

	c.out.printStdout("%v items tracked\n", len(items))

	return nil
}

// commandStateClear resets local state so the next run backs up everything.
type commandStateClear struct {
	out textOutput
}

func (c *commandStateClear) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("clear", "Discard local state; the next run will back up all items.")
	c.out.setup(svc)
	cmd.Action(svc.engineAction(c.run))
}

func (c *commandStateClear) run(ctx context.Context, eng *Engine) error {
	if err := eng.State.Clear(ctx); err != nil {
		return err
	}

	c.out.printStdout("state cleared\n")

	return nil
}

// commandStateForget removes the state of a single item.
type commandStateForget struct {
	itemID string

	out textOutput
}

func (c *commandStateForget) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("forget", "Forget one item; it will be backed up on the next run.")
	cmd.Arg("item-id", "Item to forget").Required().StringVar(&c.itemID)
	c.out.setup(svc)
	cmd.Action(svc.engineAction(c.run))
}

func (c *commandStateForget) run(ctx context.Context, eng *Engine) error {
	if err := eng.State.Forget(ctx, c.itemID); err != nil {
		return err
	}

	c.out.printStdout("forgot %v\n", c.itemID)

	return nil
}
