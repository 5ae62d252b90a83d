package cli

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gitvault/gitvault/repo/logging"
)

// rootContext builds the base context with the configured zap logger attached.
// The returned finish function flushes buffered log entries.
func (a *App) rootContext() (context.Context, func(), error) {
	level := zapcore.InfoLevel

	if err := level.Set(a.logLevel); err != nil {
		return nil, nil, errors.Wrap(err, "invalid log level")
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	if !a.noColor {
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}

	if a.logFile != "" {
		f, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, errors.Wrap(err, "unable to open log file")
		}

		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder

		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.Lock(f), zapcore.DebugLevel))
	}

	l := zap.New(zapcore.NewTee(cores...))

	ctx := logging.WithLogger(context.Background(), logging.Zap(l))

	return ctx, func() {
		_ = l.Sync()
	}, nil
}
