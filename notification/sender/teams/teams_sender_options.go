package teams

import (
	"net/url"

	"github.com/pkg/errors"
)

// Options defines Microsoft Teams notification provider options.
type Options struct {
	// Endpoint is the Teams Workflows URL (or legacy incoming webhook URL)
	// the Adaptive Card is POSTed to.
	Endpoint string `json:"endpoint"`
}

func (o *Options) applyDefaultsAndValidate() error {
	if o.Endpoint == "" {
		return errors.New("endpoint must be provided")
	}

	u, err := url.Parse(o.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.Errorf("invalid endpoint: %v", o.Endpoint)
	}

	return nil
}
