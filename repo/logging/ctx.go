package logging

import "context"

type contextKey string

const loggerCacheKey contextKey = "logger"

// WithLogger returns a derived context with the provided logger factory attached.
func WithLogger(ctx context.Context, l LoggerFactory) context.Context {
	if l == nil {
		l = getNullLogger
	}

	return context.WithValue(ctx, loggerCacheKey, l)
}
