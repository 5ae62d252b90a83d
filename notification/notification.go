// Package notification turns run results into human-facing alerts and
// dispatches them through configured sender providers.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gitvault/gitvault/backup"
	"github.com/gitvault/gitvault/notification/sender"
	"github.com/gitvault/gitvault/repo/logging"
)

var log = logging.Module("notification")

// Severity of a notification.
type Severity int

// Severity values, ordered from least to most severe.
const (
	SeveritySuccess Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	default:
		return "error"
	}
}

// ParseMinSeverity maps an alert level name to the minimum severity that gets
// dispatched: "all" sends everything, "warnings" sends warnings and errors,
// "errors" sends only errors.
func ParseMinSeverity(level string) (Severity, error) {
	switch level {
	case "all":
		return SeveritySuccess, nil
	case "warnings":
		return SeverityWarning, nil
	case "errors":
		return SeverityError, nil
	default:
		return 0, fmt.Errorf("invalid alert level %q (valid: errors, warnings, all)", level)
	}
}

// Report is the structured result of one backup run as sent to notification
// channels.
type Report struct {
	BackupID  string    `json:"backupId"`
	Namespace string    `json:"namespace"`
	Status    string    `json:"status"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`

	Processed        int   `json:"processed"`
	Skipped          int   `json:"skipped"`
	Failed           int   `json:"failed"`
	Remaining        int   `json:"remaining,omitempty"`
	BytesUploaded    int64 `json:"bytesUploaded"`
	SnapshotsDeleted int   `json:"snapshotsDeleted,omitempty"`

	DurationSeconds float64 `json:"durationSeconds"`

	Errors []string `json:"errors,omitempty"`
}

// ReportFromResult converts a run result into a Report.
func ReportFromResult(namespace string, r *backup.Result) Report {
	rep := Report{
		BackupID:         r.SnapshotID,
		Namespace:        namespace,
		Status:           r.Status().String(),
		Timestamp:        r.StartTime,
		Processed:        r.Processed,
		Skipped:          r.Skipped,
		Failed:           r.Failed,
		Remaining:        r.Remaining,
		BytesUploaded:    r.BytesUploaded,
		SnapshotsDeleted: r.SnapshotsDeleted,
		DurationSeconds:  r.Duration.Seconds(),
		Errors:           append([]string(nil), r.Errors...),
	}

	switch r.Status() {
	case backup.StatusSuccess:
		rep.Severity = SeveritySuccess
	case backup.StatusPartialFailure:
		rep.Severity = SeverityWarning
	default:
		rep.Severity = SeverityError
	}

	return rep
}

// Subject returns the notification subject line.
func (r Report) Subject() string {
	return fmt.Sprintf("[gitvault] backup %v for %v: %v", r.BackupID, r.Namespace, r.Status)
}

// TextBody renders the report as plain text.
func (r Report) TextBody() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Backup %v (%v)\n", r.BackupID, r.Namespace)
	fmt.Fprintf(&sb, "Status: %v\n", r.Status)
	fmt.Fprintf(&sb, "Processed: %v, skipped: %v, failed: %v", r.Processed, r.Skipped, r.Failed)

	if r.Remaining > 0 {
		fmt.Fprintf(&sb, ", remaining: %v", r.Remaining)
	}

	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Uploaded: %v bytes\n", r.BytesUploaded)

	if r.SnapshotsDeleted > 0 {
		fmt.Fprintf(&sb, "Old snapshots deleted: %v\n", r.SnapshotsDeleted)
	}

	fmt.Fprintf(&sb, "Duration: %.1fs\n", r.DurationSeconds)

	if len(r.Errors) > 0 {
		sb.WriteString("\nErrors:\n")

		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "  - %v\n", e)
		}
	}

	return sb.String()
}

// Manager dispatches reports to a set of providers, filtered by minimum
// severity. It implements backup.Notifier.
type Manager struct {
	namespace   string
	providers   []sender.Provider
	minSeverity Severity
}

// NewManager returns a notification Manager.
func NewManager(namespace string, providers []sender.Provider, minSeverity Severity) *Manager {
	return &Manager{
		namespace:   namespace,
		providers:   providers,
		minSeverity: minSeverity,
	}
}

// BackupFinished implements backup.Notifier.
func (m *Manager) BackupFinished(ctx context.Context, result *backup.Result) {
	m.Dispatch(ctx, ReportFromResult(m.namespace, result))
}

// Dispatch sends the report to every configured provider whose severity
// threshold it meets. Delivery failures are logged, never propagated.
func (m *Manager) Dispatch(ctx context.Context, rep Report) {
	if rep.Severity < m.minSeverity {
		log(ctx).Debugf("skipping %v notification (below %v threshold)", rep.Severity, m.minSeverity)
		return
	}

	for _, p := range m.providers {
		msg := &sender.Message{
			Subject: rep.Subject(),
			Headers: map[string]string{
				sender.SeverityHeader: rep.Severity.String(),
			},
		}

		switch p.Format() {
		case sender.FormatJSON:
			b, err := json.Marshal(rep)
			if err != nil {
				log(ctx).Errorf("unable to encode report: %v", err)
				continue
			}

			msg.Body = string(b)
		default:
			msg.Body = rep.TextBody()
		}

		if err := p.Send(ctx, msg); err != nil {
			log(ctx).Errorf("alert failed via %v: %v", p.Summary(), err)
		} else {
			log(ctx).Infof("alert sent via %v", p.Summary())
		}
	}
}
