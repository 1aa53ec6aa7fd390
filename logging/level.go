package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a logging severity. Lower values are more verbose.
type Level int8

const (
	// DEBUG is the most verbose level.
	DEBUG Level = iota
	// INFO is the default level.
	INFO
	// WARN indicates a potential problem.
	WARN
	// ERROR indicates a definite problem.
	ERROR
)

// String returns the lowercase name of the level.
func (level Level) String() string {
	switch level {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return "unknown"
	}
}

// AsZap converts a Level to the equivalent zapcore.Level.
func (level Level) AsZap() zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LevelFromString parses a case-insensitive level name, as used by
// LoggerPatternConfig's Level field.
func LevelFromString(levelStr string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", levelStr)
	}
}

// AtomicLevel is a thread-safe, mutable Level. It wraps zap's AtomicLevel so
// loggers built on top of a zap core observe changes made through Set.
type AtomicLevel struct {
	level zap.AtomicLevel
}

// NewAtomicLevelAt constructs an AtomicLevel initialized to level.
func NewAtomicLevelAt(level Level) AtomicLevel {
	return AtomicLevel{level: zap.NewAtomicLevelAt(level.AsZap())}
}

// Get returns the current level.
func (al AtomicLevel) Get() Level {
	switch al.level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	default:
		return INFO
	}
}

// Set updates the level.
func (al AtomicLevel) Set(level Level) {
	al.level.SetLevel(level.AsZap())
}

// GlobalLogLevel is observed by every logger's AsZap conversion so that
// toggling it affects loggers built earlier, mirroring zap's own global
// debug flag pattern.
var GlobalLogLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

// NewZapLoggerConfig mirrors NewLoggerConfig but is used internally by
// impl.AsZap to build the zap.Logger backing a SugaredLogger view.
func NewZapLoggerConfig() zap.Config {
	return NewLoggerConfig()
}

const (
	// DefaultTimeFormatStr is the timestamp layout used by NewTestAppender.
	DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"
)

func callerToString(caller *zapcore.EntryCaller) string {
	return caller.TrimmedPath()
}
