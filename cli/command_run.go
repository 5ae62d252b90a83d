package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/backup"
)

// commandRun executes a single backup pass and exits.
type commandRun struct {
	out textOutput
}

func (c *commandRun) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("run", "Run a single backup pass and exit.")
	c.out.setup(svc)
	cmd.Action(svc.engineAction(c.run))
}

func (c *commandRun) run(ctx context.Context, eng *Engine) error {
	runner, err := eng.requireRunner()
	if err != nil {
		return err
	}

	// first interrupt requests a graceful stop between items, second one kills
	// the process.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	c.printSummary(result)

	if result.Status() != backup.StatusSuccess {
		return errors.Errorf("backup finished with status: %v", result.Status())
	}

	return nil
}

func (c *commandRun) printSummary(r *backup.Result) {
	statusColor := color.New(color.FgGreen)

	switch r.Status() {
	case backup.StatusPartialFailure:
		statusColor = color.New(color.FgYellow)
	case backup.StatusTotalFailure:
		statusColor = color.New(color.FgRed)
	}

	c.out.printStdout("Backup %v finished in %v\n", r.SnapshotID, r.Duration.Round(timeRounding))
	c.out.printStdout("Status: %v\n", statusColor.Sprint(r.Status()))
	c.out.printStdout("Processed: %v  Skipped: %v  Failed: %v\n", r.Processed, r.Skipped, r.Failed)

	if r.Cancelled {
		c.out.printStdout("Cancelled with %v items remaining\n", r.Remaining)
	}

	c.out.printStdout("Uploaded: %v\n", formatBytes(r.BytesUploaded))

	if r.SnapshotsDeleted > 0 {
		c.out.printStdout("Old snapshots deleted: %v (%v objects)\n", r.SnapshotsDeleted, r.ObjectsDeleted)
	}

	for _, e := range r.Errors {
		c.out.printStderr("error: %v\n", e)
	}
}

func formatBytes(n int64) string {
	const unit = 1024

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
