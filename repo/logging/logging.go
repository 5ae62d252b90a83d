// Package logging provides loggers for the rest of the codebase.
package logging

import "context"

// Logger is an interface used by gitvault to output logs.
type Logger interface {
	Debugf(msg string, args ...interface{})
	Debugw(msg string, keyValuePairs ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

// LoggerFactory retrieves a named logger for a given module.
type LoggerFactory func(module string) Logger

// Module returns an function that returns a logger for a given module when provided with context.
func Module(module string) func(ctx context.Context) Logger {
	return func(ctx context.Context) Logger {
		if l, ok := ctx.Value(loggerCacheKey).(LoggerFactory); ok {
			return l(module)
		}

		return nullLogger{}
	}
}
