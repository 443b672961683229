package obs

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var base = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	return l
}

// EnableDebug globally enables debug logs.
func EnableDebug(v bool) {
	if v {
		base.SetLevel(logrus.DebugLevel)
		return
	}
	base.SetLevel(logrus.InfoLevel)
}

// SetFormat selects "text" (human readable, colored on a TTY) or "json" output.
func SetFormat(format string) error {
	switch format {
	case "", "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// SetOutput redirects all log output, mostly useful in tests.
func SetOutput(w io.Writer) { base.SetOutput(w) }

type Fields map[string]any

func logWith(level logrus.Level, msg string, f Fields) {
	if !base.IsLevelEnabled(level) {
		return
	}
	base.WithFields(logrus.Fields(f)).Log(level, msg)
}

func Info(msg string, f Fields)  { logWith(logrus.InfoLevel, msg, f) }
func Error(msg string, f Fields) { logWith(logrus.ErrorLevel, msg, f) }
func Debug(msg string, f Fields) { logWith(logrus.DebugLevel, msg, f) }
