package webhook

import (
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/notification/sender"
)

// Options defines webhook notification provider options.
type Options struct {
	// Endpoint is the URL the notification is POSTed to.
	Endpoint string `json:"endpoint"`

	// Method is the HTTP method, defaults to POST.
	Method string `json:"method"`

	// Secret, when set, enables HMAC-SHA256 payload signing via the
	// X-Signature-256 header.
	Secret string `json:"secret,omitempty"`

	Format string `json:"format"` // format of the message, must be "txt" or "json"
}

func (o *Options) applyDefaultsAndValidate() error {
	if o.Endpoint == "" {
		return errors.New("endpoint must be provided")
	}

	u, err := url.Parse(o.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.Errorf("invalid endpoint: %v", o.Endpoint)
	}

	if o.Method == "" {
		o.Method = http.MethodPost
	}

	if o.Method != http.MethodPost && o.Method != http.MethodPut {
		return errors.Errorf("invalid method: %v", o.Method)
	}

	return sender.ValidateMessageFormatAndSetDefault(&o.Format, sender.FormatJSON)
}
