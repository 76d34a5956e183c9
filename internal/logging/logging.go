package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a leveled structured logger. Call sites pass alternating
// key/value pairs after the message.
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a new Logger. The level is taken from LOG_LEVEL and
// defaults to info.
func NewLogger() *Logger {
	l := logrus.New()
	switch os.Getenv("LOG_LEVEL") {
	case "DEBUG":
		l.SetLevel(logrus.DebugLevel)
	case "WARN":
		l.SetLevel(logrus.WarnLevel)
	case "ERROR":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return &Logger{Logger: l}
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) {
	l.WithFields(fields(args)).Info(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.WithFields(fields(args)).Warn(msg)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.WithFields(fields(args)).Error(msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.WithFields(fields(args)).Debug(msg)
}

func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = "?"
		}
		f[key] = args[i+1]
	}
	return f
}
