package notification_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gitvault/gitvault/backup"
	"github.com/gitvault/gitvault/internal/testlogging"
	"github.com/gitvault/gitvault/notification"
	"github.com/gitvault/gitvault/notification/sender"
)

type capturingProvider struct {
	format string
	sent   []*sender.Message
}

func (p *capturingProvider) Send(ctx context.Context, msg *sender.Message) error {
	p.sent = append(p.sent, msg)
	return nil
}

func (p *capturingProvider) Summary() string { return "capturing" }
func (p *capturingProvider) Format() string  { return p.format }

func TestReportSeverity(t *testing.T) {
	cases := []struct {
		result backup.Result
		want   notification.Severity
	}{
		{backup.Result{Stats: backup.Stats{Processed: 3}}, notification.SeveritySuccess},
		{backup.Result{Stats: backup.Stats{Skipped: 5}}, notification.SeveritySuccess},
		{backup.Result{Stats: backup.Stats{Processed: 2, Failed: 1}}, notification.SeverityWarning},
		{backup.Result{Stats: backup.Stats{Failed: 3}}, notification.SeverityError},
	}

	for _, tc := range cases {
		rep := notification.ReportFromResult("ns", &tc.result)
		require.Equal(t, tc.want, rep.Severity, "status %v", tc.result.Status())
	}
}

func TestDispatchThreshold(t *testing.T) {
	ctx := testlogging.Context(t)

	cases := []struct {
		minSeverity notification.Severity
		result      backup.Result
		wantSent    bool
	}{
		{notification.SeveritySuccess, backup.Result{}, true},
		{notification.SeverityWarning, backup.Result{}, false},
		{notification.SeverityWarning, backup.Result{Stats: backup.Stats{Processed: 1, Failed: 1}}, true},
		{notification.SeverityError, backup.Result{Stats: backup.Stats{Processed: 1, Failed: 1}}, false},
		{notification.SeverityError, backup.Result{Stats: backup.Stats{Failed: 1}}, true},
	}

	for _, tc := range cases {
		p := &capturingProvider{format: sender.FormatPlainText}
		m := notification.NewManager("ns", []sender.Provider{p}, tc.minSeverity)

		m.BackupFinished(ctx, &tc.result)

		if tc.wantSent {
			require.Len(t, p.sent, 1)
		} else {
			require.Empty(t, p.sent)
		}
	}
}

func TestDispatchRendersPerProviderFormat(t *testing.T) {
	ctx := testlogging.Context(t)

	jsonProvider := &capturingProvider{format: sender.FormatJSON}
	textProvider := &capturingProvider{format: sender.FormatPlainText}

	m := notification.NewManager("github", []sender.Provider{jsonProvider, textProvider}, notification.SeveritySuccess)

	m.BackupFinished(ctx, &backup.Result{
		SnapshotID: "2025-03-01_02-00-00",
		StartTime:  time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC),
		Duration:   90 * time.Second,
		Stats: backup.Stats{
			Processed:     2,
			Skipped:       7,
			Failed:        1,
			BytesUploaded: 1234,
		},
		Errors: []string{"repo-x: clone failed"},
	})

	require.Len(t, jsonProvider.sent, 1)
	require.Len(t, textProvider.sent, 1)

	var rep notification.Report

	require.NoError(t, json.Unmarshal([]byte(jsonProvider.sent[0].Body), &rep))
	require.Equal(t, "2025-03-01_02-00-00", rep.BackupID)
	require.Equal(t, "github", rep.Namespace)
	require.Equal(t, "partial failure", rep.Status)
	require.Equal(t, 2, rep.Processed)
	require.Equal(t, 1, rep.Failed)
	require.InDelta(t, 90.0, rep.DurationSeconds, 0.001)
	require.Equal(t, []string{"repo-x: clone failed"}, rep.Errors)

	body := textProvider.sent[0].Body
	require.Contains(t, body, "Status: partial failure")
	require.Contains(t, body, "Processed: 2, skipped: 7, failed: 1")
	require.Contains(t, body, "repo-x: clone failed")

	require.Equal(t, "warning", jsonProvider.sent[0].Headers["X-Gitvault-Severity"])
	require.Contains(t, jsonProvider.sent[0].Subject, "partial failure")
}

func TestParseMinSeverity(t *testing.T) {
	for level, want := range map[string]notification.Severity{
		"all":      notification.SeveritySuccess,
		"warnings": notification.SeverityWarning,
		"errors":   notification.SeverityError,
	} {
		got, err := notification.ParseMinSeverity(level)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := notification.ParseMinSeverity("verbose")
	require.Error(t, err)
}
