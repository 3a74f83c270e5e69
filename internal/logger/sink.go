package logger

import "go.uber.org/zap"

// LineSink adapts a zap logger to a Printf style line sink, such as the
// controller's diagnostic output. Lines are written at debug level so the
// per-poll chatter stays out of normal logs.
type LineSink struct {
	l *zap.SugaredLogger
}

// Sink returns a LineSink writing through l.
func Sink(l *zap.SugaredLogger) *LineSink {
	return &LineSink{l: l}
}

// Printf writes one line.
func (s *LineSink) Printf(format string, args ...any) {
	s.l.Debugf(format, args...)
}
