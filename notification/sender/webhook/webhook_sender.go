// Package webhook provides webhook notification support.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/notification/sender"
)

// ProviderType defines the type of the webhook notification provider.
const ProviderType sender.Method = "webhook"

type webhookProvider struct {
	opt Options
}

func (p *webhookProvider) Send(ctx context.Context, msg *sender.Message) error {
	payload := []byte(msg.Body)

	req, err := http.NewRequestWithContext(ctx, p.opt.Method, p.opt.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "error preparing notification")
	}

	if p.Format() == sender.FormatJSON {
		req.Header.Set("Content-Type", "application/json")
	} else {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}

	req.Header.Set("Subject", msg.Subject)

	// copy headers from message
	for k, v := range msg.Headers {
		req.Header.Set(k, v)
	}

	if p.opt.Secret != "" {
		req.Header.Set("X-Signature-256", "sha256="+signPayload(p.opt.Secret, payload))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "error sending webhook notification")
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("error sending webhook notification: %v", resp.Status)
	}

	return nil
}

func (p *webhookProvider) Summary() string {
	return fmt.Sprintf("Webhook %v %v", p.opt.Method, p.opt.Endpoint)
}

func (p *webhookProvider) Format() string {
	return p.opt.Format
}

func signPayload(secret string, payload []byte) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(payload) //nolint:errcheck

	return hex.EncodeToString(m.Sum(nil))
}

func init() {
	sender.Register(ProviderType, func(ctx context.Context, options *Options) (sender.Provider, error) {
		if err := options.applyDefaultsAndValidate(); err != nil {
			return nil, errors.Wrap(err, "invalid notification configuration")
		}

		return &webhookProvider{
			opt: *options,
		}, nil
	})
}
