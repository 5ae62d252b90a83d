package cli

import (
	"context"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/notification"
	"github.com/gitvault/gitvault/notification/sender"
	"github.com/gitvault/gitvault/notification/sender/email"
	"github.com/gitvault/gitvault/notification/sender/teams"
	"github.com/gitvault/gitvault/notification/sender/webhook"
)

// notifyFlags configure the optional notification channels.
type notifyFlags struct {
	alertLevel string

	webhook webhook.Options
	teams   teams.Options
	email   email.Options
}

func (c *notifyFlags) setup(app *kingpin.Application) {
	app.Flag("alert-level", "Minimum run severity that triggers notifications").Default("all").Envar("GITVAULT_ALERT_LEVEL").EnumVar(&c.alertLevel, "all", "warnings", "errors")

	app.Flag("webhook-url", "Webhook endpoint notified after each run").Envar("GITVAULT_WEBHOOK_URL").StringVar(&c.webhook.Endpoint)
	app.Flag("webhook-secret", "Secret for HMAC-SHA256 webhook payload signing").Envar("GITVAULT_WEBHOOK_SECRET").StringVar(&c.webhook.Secret)
	app.Flag("webhook-method", "HTTP method for webhook notifications").Envar("GITVAULT_WEBHOOK_METHOD").StringVar(&c.webhook.Method)

	app.Flag("teams-webhook-url", "Microsoft Teams workflow URL notified after each run").Envar("GITVAULT_TEAMS_WEBHOOK_URL").StringVar(&c.teams.Endpoint)

	app.Flag("smtp-server", "SMTP server for email notifications").Envar("GITVAULT_SMTP_SERVER").StringVar(&c.email.SMTPServer)
	app.Flag("smtp-port", "SMTP port").Envar("GITVAULT_SMTP_PORT").IntVar(&c.email.SMTPPort)
	app.Flag("smtp-username", "SMTP username").Envar("GITVAULT_SMTP_USERNAME").StringVar(&c.email.SMTPUsername)
	app.Flag("smtp-password", "SMTP password").Envar("GITVAULT_SMTP_PASSWORD").StringVar(&c.email.SMTPPassword)
	app.Flag("mail-from", "From address for email notifications").Envar("GITVAULT_MAIL_FROM").StringVar(&c.email.From)
	app.Flag("mail-to", "Comma-separated recipients for email notifications").Envar("GITVAULT_MAIL_TO").StringVar(&c.email.To)
	app.Flag("mail-cc", "Comma-separated CC recipients").Envar("GITVAULT_MAIL_CC").StringVar(&c.email.CC)
}

// buildManager returns the notification manager, or nil when no channel is
// configured.
func (c *notifyFlags) buildManager(ctx context.Context, namespace string) (*notification.Manager, error) {
	var providers []sender.Provider

	if c.webhook.Endpoint != "" {
		p, err := sender.GetSender(ctx, webhook.ProviderType, &c.webhook)
		if err != nil {
			return nil, errors.Wrap(err, "invalid webhook configuration")
		}

		providers = append(providers, p)
	}

	if c.teams.Endpoint != "" {
		p, err := sender.GetSender(ctx, teams.ProviderType, &c.teams)
		if err != nil {
			return nil, errors.Wrap(err, "invalid teams configuration")
		}

		providers = append(providers, p)
	}

	if c.email.SMTPServer != "" {
		p, err := sender.GetSender(ctx, email.ProviderType, &c.email)
		if err != nil {
			return nil, errors.Wrap(err, "invalid email configuration")
		}

		providers = append(providers, p)
	}

	if len(providers) == 0 {
		return nil, nil
	}

	minSeverity, err := notification.ParseMinSeverity(c.alertLevel)
	if err != nil {
		return nil, err
	}

	return notification.NewManager(namespace, providers, minSeverity), nil
}
