// Package email provides email notification support.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/notification/sender"
)

// ProviderType defines the type of the email notification provider.
const ProviderType sender.Method = "email"

const defaultSMTPPort = 587

type emailProvider struct {
	opt Options
}

func (p *emailProvider) Send(ctx context.Context, msg *sender.Message) error {
	var auth smtp.Auth

	if p.opt.SMTPUsername != "" {
		auth = smtp.PlainAuth(p.opt.SMTPIdentity, p.opt.SMTPUsername, p.opt.SMTPPassword, p.opt.SMTPServer)
	}

	var sb strings.Builder

	sb.WriteString("Subject: " + msg.Subject + "\r\n")
	sb.WriteString("From: " + p.opt.From + "\r\n")
	sb.WriteString("To: " + p.opt.To + "\r\n")

	if p.Format() == sender.FormatJSON {
		sb.WriteString("Content-Type: application/json; charset=\"UTF-8\";\r\n")
	}

	for k, v := range msg.Headers {
		sb.WriteString(k + ": " + v + "\r\n")
	}

	sb.WriteString("\r\n")
	sb.WriteString(msg.Body)

	recipients := strings.Split(p.opt.To, ",")
	if p.opt.CC != "" {
		recipients = append(recipients, strings.Split(p.opt.CC, ",")...)
	}

	//nolint:wrapcheck
	return smtp.SendMail(
		fmt.Sprintf("%v:%d", p.opt.SMTPServer, p.opt.SMTPPort),
		auth,
		p.opt.From,
		recipients,
		[]byte(sb.String()))
}

func (p *emailProvider) Summary() string {
	return fmt.Sprintf("SMTP server: %q, Mail from: %q Mail to: %q Format: %q", p.opt.SMTPServer, p.opt.From, p.opt.To, p.Format())
}

func (p *emailProvider) Format() string {
	return p.opt.Format
}

func init() {
	sender.Register(ProviderType, func(ctx context.Context, options *Options) (sender.Provider, error) {
		if err := options.applyDefaultsAndValidate(); err != nil {
			return nil, errors.Wrap(err, "invalid notification configuration")
		}

		return &emailProvider{
			opt: *options,
		}, nil
	})
}
