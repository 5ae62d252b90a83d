// Package retry implements exponential retry policy.
package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/repo/logging"
)

var log = logging.Module("retry")

var (
	maxAttempts             = 10
	retryInitialSleepAmount = 1 * time.Second
	retryMaxSleepAmount     = 32 * time.Second
)

// AttemptFunc performs an attempt and returns a value (optional, may be nil) and an error.
type AttemptFunc func() (interface{}, error)

// IsRetriableFunc is a function that determines whether an error is retriable.
type IsRetriableFunc func(err error) bool

// WithExponentialBackoff runs the provided attempt until it succeeds, retrying on all errors that are
// deemed retriable by the provided function. The delay between retries grows exponentially up to
// a certain limit.
func WithExponentialBackoff(ctx context.Context, desc string, attempt AttemptFunc, isRetriable IsRetriableFunc) (interface{}, error) {
	sleepAmount := retryInitialSleepAmount

	var (
		v   interface{}
		err error
	)

	for i := 0; i < maxAttempts; i++ {
		v, err = attempt()
		if err == nil || !isRetriable(err) {
			return v, err
		}

		log(ctx).Debugf("got error %v when %v (#%v), sleeping for %v before retrying", err, desc, i, sleepAmount)

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "canceled while %v", desc)
		case <-time.After(sleepAmount):
		}

		sleepAmount *= 2
		if sleepAmount > retryMaxSleepAmount {
			sleepAmount = retryMaxSleepAmount
		}
	}

	return nil, errors.Wrapf(err, "unable to complete %v despite %v retries", desc, maxAttempts)
}

// WithExponentialBackoffNoValue is a shorthand for WithExponentialBackoff for attempts
// that do not return a value.
func WithExponentialBackoffNoValue(ctx context.Context, desc string, attempt func() error, isRetriable IsRetriableFunc) error {
	_, err := WithExponentialBackoff(ctx, desc, func() (interface{}, error) {
		return nil, attempt()
	}, isRetriable)

	return err
}
