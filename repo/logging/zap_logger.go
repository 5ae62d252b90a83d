package logging

import "go.uber.org/zap"

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapLogger) Debugf(msg string, args ...interface{})          { l.sugar.Debugf(msg, args...) }
func (l zapLogger) Debugw(msg string, keyValuePairs ...interface{}) { l.sugar.Debugw(msg, keyValuePairs...) }
func (l zapLogger) Infof(msg string, args ...interface{})           { l.sugar.Infof(msg, args...) }
func (l zapLogger) Warnf(msg string, args ...interface{})           { l.sugar.Warnf(msg, args...) }
func (l zapLogger) Errorf(msg string, args ...interface{})          { l.sugar.Errorf(msg, args...) }

// Zap returns a LoggerFactory producing named loggers backed by the provided zap logger.
func Zap(l *zap.Logger) LoggerFactory {
	return func(module string) Logger {
		return zapLogger{l.Named(module).Sugar()}
	}
}
