package ztm

import (
	"context"
	"log/slog"
)

// Logger is a lazy three-channel (debug/info/warn) log sink. Message
// suppliers are only invoked when the corresponding channel is enabled,
// matching the contract that logging must never do real work on the hot
// path when nothing will read it.
type Logger struct {
	logger *slog.Logger
}

// NewLogger wraps an existing *slog.Logger. A nil logger discards every
// message.
func NewLogger(l *slog.Logger) Logger {
	return Logger{logger: l}
}

func (l Logger) log() *slog.Logger {
	if l.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.logger
}

// Debugf invokes msg and logs its result at debug level, but only if debug
// logging is enabled.
func (l Logger) Debugf(msg func() string) {
	lg := l.log()
	if lg.Enabled(context.Background(), slog.LevelDebug) {
		lg.Debug(msg())
	}
}

// Infof invokes msg and logs its result at info level, but only if info
// logging is enabled.
func (l Logger) Infof(msg func() string) {
	lg := l.log()
	if lg.Enabled(context.Background(), slog.LevelInfo) {
		lg.Info(msg())
	}
}

// Warnf invokes msg and logs its result at warn level, but only if warn
// logging is enabled.
func (l Logger) Warnf(msg func() string) {
	lg := l.log()
	if lg.Enabled(context.Background(), slog.LevelWarn) {
		lg.Warn(msg())
	}
}
