// Package teams provides Microsoft Teams notification support using Adaptive
// Cards, compatible with both Teams Workflows and legacy incoming webhooks.
package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/notification/sender"
)

// ProviderType defines the type of the Teams notification provider.
const ProviderType sender.Method = "teams"

// maxReportedErrors caps the number of error lines rendered on the card.
const maxReportedErrors = 5

type teamsProvider struct {
	opt Options
}

// report mirrors the JSON report document carried in the message body.
type report struct {
	BackupID  string    `json:"backupId"`
	Namespace string    `json:"namespace"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`

	Processed        int   `json:"processed"`
	Skipped          int   `json:"skipped"`
	Failed           int   `json:"failed"`
	Remaining        int   `json:"remaining"`
	BytesUploaded    int64 `json:"bytesUploaded"`
	SnapshotsDeleted int   `json:"snapshotsDeleted"`

	DurationSeconds float64 `json:"durationSeconds"`

	Errors []string `json:"errors"`
}

func (p *teamsProvider) Send(ctx context.Context, msg *sender.Message) error {
	var rep report

	if err := json.Unmarshal([]byte(msg.Body), &rep); err != nil {
		return errors.Wrap(err, "error parsing report payload")
	}

	payload, err := json.Marshal(buildCard(msg.Subject, msg.Headers[sender.SeverityHeader], rep))
	if err != nil {
		return errors.Wrap(err, "error encoding card")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opt.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "error preparing notification")
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "error sending teams notification")
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("error sending teams notification: %v", resp.Status)
	}

	return nil
}

func (p *teamsProvider) Summary() string {
	return fmt.Sprintf("Teams webhook %v", p.opt.Endpoint)
}

func (p *teamsProvider) Format() string {
	// the card is rendered from the structured report, so the provider always
	// consumes the JSON body.
	return sender.FormatJSON
}

// Adaptive Card payload, see
// https://adaptivecards.io/schemas/adaptive-card.json.
type card struct {
	Type        string       `json:"type"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	ContentType string      `json:"contentType"`
	ContentURL  *string     `json:"contentUrl"`
	Content     cardContent `json:"content"`
}

type cardContent struct {
	Schema  string        `json:"$schema"`
	Type    string        `json:"type"`
	Version string        `json:"version"`
	MSTeams msTeams       `json:"msteams"`
	Body    []interface{} `json:"body"`
}

type msTeams struct {
	Width string `json:"width"`
}

type textBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Wrap     bool   `json:"wrap"`
	Size     string `json:"size,omitempty"`
	Weight   string `json:"weight,omitempty"`
	Color    string `json:"color,omitempty"`
	FontType string `json:"fontType,omitempty"`
	Spacing  string `json:"spacing,omitempty"`
}

type fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type factSet struct {
	Type    string `json:"type"`
	Facts   []fact `json:"facts"`
	Spacing string `json:"spacing,omitempty"`
}

type container struct {
	Type    string      `json:"type"`
	Style   string      `json:"style"`
	Items   []textBlock `json:"items"`
	Spacing string      `json:"spacing,omitempty"`
}

func severityStyle(severity string) (color, icon string) {
	switch severity {
	case "success":
		return "Good", "✓"
	case "warning":
		return "Warning", "⚠"
	default:
		return "Attention", "✗"
	}
}

func buildCard(subject, severity string, rep report) card {
	color, icon := severityStyle(severity)

	facts := []fact{
		{Title: "Status", Value: icon + " " + strings.ToUpper(rep.Status)},
		{Title: "Backup ID", Value: rep.BackupID},
		{Title: "Namespace", Value: rep.Namespace},
		{Title: "Time", Value: rep.Timestamp.Format("2006-01-02 15:04:05")},
		{Title: "Backed Up", Value: fmt.Sprintf("%v", rep.Processed)},
	}

	if rep.Skipped > 0 {
		facts = append(facts, fact{Title: "Skipped", Value: fmt.Sprintf("%v (unchanged)", rep.Skipped)})
	}

	if rep.Failed > 0 {
		facts = append(facts, fact{Title: "Failed", Value: fmt.Sprintf("%v", rep.Failed)})
	}

	if rep.Remaining > 0 {
		facts = append(facts, fact{Title: "Not Processed", Value: fmt.Sprintf("%v (run stopped early)", rep.Remaining)})
	}

	if rep.BytesUploaded > 0 {
		facts = append(facts, fact{Title: "Total Size", Value: formatSize(rep.BytesUploaded)})
	}

	facts = append(facts, fact{Title: "Duration", Value: fmt.Sprintf("%.1fs", rep.DurationSeconds)})

	if rep.SnapshotsDeleted > 0 {
		facts = append(facts, fact{Title: "Old Snapshots Removed", Value: fmt.Sprintf("%v", rep.SnapshotsDeleted)})
	}

	body := []interface{}{
		textBlock{
			Type:   "TextBlock",
			Text:   subject,
			Wrap:   true,
			Size:   "Large",
			Weight: "Bolder",
			Color:  color,
		},
		factSet{
			Type:    "FactSet",
			Facts:   facts,
			Spacing: "Medium",
		},
	}

	if len(rep.Errors) > 0 {
		var sb strings.Builder

		for i, e := range rep.Errors {
			if i == maxReportedErrors {
				fmt.Fprintf(&sb, "... and %v more errors", len(rep.Errors)-maxReportedErrors)
				break
			}

			fmt.Fprintf(&sb, "• %v\n", e)
		}

		body = append(body, container{
			Type:  "Container",
			Style: "attention",
			Items: []textBlock{
				{Type: "TextBlock", Text: "Errors", Weight: "Bolder", Color: "Attention"},
				{Type: "TextBlock", Text: strings.TrimRight(sb.String(), "\n"), Wrap: true, FontType: "Monospace", Size: "Small"},
			},
			Spacing: "Medium",
		})
	}

	return card{
		Type: "message",
		Attachments: []attachment{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: cardContent{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.4",
				MSTeams: msTeams{Width: "Full"},
				Body:    body,
			},
		}},
	}
}

func formatSize(b int64) string {
	const unit = 1024

	if b < unit {
		return fmt.Sprintf("%d B", b)
	}

	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func init() {
	sender.Register(ProviderType, func(ctx context.Context, options *Options) (sender.Provider, error) {
		if err := options.applyDefaultsAndValidate(); err != nil {
			return nil, errors.Wrap(err, "invalid notification configuration")
		}

		return &teamsProvider{
			opt: *options,
		}, nil
	})
}
