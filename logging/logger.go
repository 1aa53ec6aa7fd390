package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface used throughout this module, satisfied by
// *impl. It mirrors a zap SugaredLogger's leveled methods plus the
// appender/level plumbing impl.go adds on top.
type Logger interface {
	Debug(args ...interface{})
	CDebug(ctx context.Context, args ...interface{})
	Debugf(template string, args ...interface{})
	CDebugf(ctx context.Context, template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})

	NewLogEntry() *LogEntry
	AddAppender(appender Appender)
	Desugar() *zap.Logger
	SetLevel(level Level)
	GetLevel() Level
	Level() zapcore.Level
	Sublogger(subname string) Logger
	Named(name string) *zap.SugaredLogger
	Sync() error
	With(args ...interface{}) *zap.SugaredLogger
	WithOptions(opts ...zap.Option) *zap.SugaredLogger
	AsZap() *zap.SugaredLogger
}
