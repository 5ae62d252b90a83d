package email

import (
	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/notification/sender"
)

// Options defines email notification provider options.
type Options struct {
	SMTPServer   string `json:"smtpServer"`
	SMTPPort     int    `json:"smtpPort"`
	SMTPIdentity string `json:"smtpIdentity"` // usually empty, most servers use username/password
	SMTPUsername string `json:"smtpUsername"`
	SMTPPassword string `json:"smtpPassword"`

	From string `json:"from"`
	To   string `json:"to"`
	CC   string `json:"cc"`

	Format string `json:"format"` // format of the message, must be "txt" or "json"
}

func (o *Options) applyDefaultsAndValidate() error {
	if o.SMTPPort == 0 {
		o.SMTPPort = defaultSMTPPort
	}

	if o.SMTPServer == "" {
		return errors.Errorf("SMTP server must be provided")
	}

	if o.From == "" {
		return errors.Errorf("From address must be provided")
	}

	if o.To == "" {
		return errors.Errorf("To address must be provided")
	}

	return sender.ValidateMessageFormatAndSetDefault(&o.Format, sender.FormatPlainText)
}
