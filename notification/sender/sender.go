// Package sender defines the interface for notification providers and their
// registry.
package sender

import (
	"context"
	"sort"

	"github.com/pkg/errors"
)

// Method identifies the notification method ("webhook", "email", ...).
type Method string

// Supported message formats.
const (
	FormatPlainText = "txt"
	FormatJSON      = "json"
)

// SeverityHeader carries the run severity ("success", "warning" or "error")
// alongside each message.
const SeverityHeader = "X-Gitvault-Severity"

// Message represents a notification message.
type Message struct {
	Subject string            `json:"subject"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body"`
}

// Provider delivers notification messages via a single method.
type Provider interface {
	// Send delivers the message.
	Send(ctx context.Context, msg *Message) error

	// Summary returns a human-readable description of the provider.
	Summary() string

	// Format returns the message body format the provider expects.
	Format() string
}

type factoryFunc func(ctx context.Context, options any) (Provider, error)

var allProviders = map[Method]factoryFunc{}

// Register registers a notification provider with strongly-typed options.
func Register[T any](method Method, fac func(ctx context.Context, options *T) (Provider, error)) {
	allProviders[method] = func(ctx context.Context, options any) (Provider, error) {
		o, ok := options.(*T)
		if !ok {
			return nil, errors.Errorf("invalid options type %T for %v", options, method)
		}

		return fac(ctx, o)
	}
}

// GetSender returns a Provider of the given registered method.
func GetSender(ctx context.Context, method Method, options any) (Provider, error) {
	fac, ok := allProviders[method]
	if !ok {
		return nil, errors.Errorf("unsupported notification method: %v", method)
	}

	return fac(ctx, options)
}

// SupportedMethods returns the sorted list of registered methods.
func SupportedMethods() []Method {
	result := make([]Method, 0, len(allProviders))
	for k := range allProviders {
		result = append(result, k)
	}

	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })

	return result
}

// ValidateMessageFormatAndSetDefault validates the message format and sets the
// default value if empty.
func ValidateMessageFormatAndSetDefault(f *string, defaultValue string) error {
	switch *f {
	case FormatJSON, FormatPlainText:
		return nil

	case "":
		*f = defaultValue
		return nil

	default:
		return errors.Errorf("invalid format: %v", *f)
	}
}
