package cli

import (
	"fmt"
	"time"
)

const timeRounding = 100 * time.Millisecond

// textOutput routes command output through the app's writers so tests can
// capture it.
type textOutput struct {
	svc appServices
}

func (o *textOutput) setup(svc appServices) {
	o.svc = svc
}

func (o *textOutput) printStdout(format string, args ...interface{}) {
	fmt.Fprintf(o.svc.stdout(), format, args...)
}

func (o *textOutput) printStderr(format string, args ...interface{}) {
	fmt.Fprintf(o.svc.stderr(), format, args...)
}
