package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// Appender is a log sink. Its method set is deliberately the same shape as
// zapcore.Core's Write/Sync pair, so a zapcore.Core (such as the one backing
// zaptest/observer.New) can be passed directly to AddAppender without a
// wrapper.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

type stdoutAppender struct {
	encoder zapcore.Encoder
}

func newStdoutAppender(encoderConfig zapcore.EncoderConfig) *stdoutAppender {
	return &stdoutAppender{encoder: zapcore.NewConsoleEncoder(encoderConfig)}
}

func (sa *stdoutAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := sa.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(buf.Bytes())
	buf.Free()
	return err
}

func (sa *stdoutAppender) Sync() error {
	return os.Stdout.Sync()
}

// NewStdoutAppender returns an appender that writes to stdout using the
// package's default console encoding, in the style of NewLoggerConfig.
func NewStdoutAppender() Appender {
	cfg := NewLoggerConfig()
	return newStdoutAppender(cfg.EncoderConfig)
}

// NewStdoutTestAppender returns an appender with the same console encoding as
// NewStdoutAppender. It does not convert time zones: timestamps are printed in
// the zone the logger gives each entry, which is local time for NewTestLogger.
func NewStdoutTestAppender() Appender {
	cfg := NewLoggerConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return newStdoutAppender(cfg.EncoderConfig)
}
