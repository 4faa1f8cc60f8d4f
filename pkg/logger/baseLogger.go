package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// BaseLogger пишет через logrus, префикс уходит в поле component.
type BaseLogger struct {
	mu     sync.Mutex
	prefix string
	out    *logrus.Logger
}

func NewLogger(writer io.Writer, prefix string) *BaseLogger {
	if writer == nil {
		writer = os.Stdout
	}
	out := logrus.New()
	out.SetOutput(writer)
	out.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &BaseLogger{
		out:    out,
		prefix: prefix,
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *BaseLogger {
	return NewLogger(io.Discard, "")
}

func (l *BaseLogger) entry() *logrus.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.prefix == "" {
		return logrus.NewEntry(l.out)
	}
	return l.out.WithField("component", l.prefix)
}

func (l *BaseLogger) Log(format string, v ...interface{}) {
	l.entry().Info(fmt.Sprintf(format, v...))
}

func (l *BaseLogger) Warn(format string, v ...interface{}) {
	l.entry().Warn(fmt.Sprintf(format, v...))
}

func (l *BaseLogger) Error(format string, v ...interface{}) {
	l.entry().Error(fmt.Sprintf(format, v...))
}

// WithFields logs a structured info line, mostly for end-of-pass summaries.
func (l *BaseLogger) WithFields(fields map[string]interface{}, msg string) {
	l.entry().WithFields(logrus.Fields(fields)).Info(msg)
}

func (l *BaseLogger) WithPrefix(extraPrefix string) *BaseLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := extraPrefix
	if l.prefix != "" {
		prefix = l.prefix + " " + extraPrefix
	}
	return &BaseLogger{
		out:    l.out,
		prefix: prefix,
	}
}

func (l *BaseLogger) SetPrefix(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prefix = prefix
}

func (l *BaseLogger) SetWriter(writer io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.SetOutput(writer)
}

// Configure applies level and format ("json" or "text") from config.
func (l *BaseLogger) Configure(level, format string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		l.out.SetLevel(lvl)
	}
	switch format {
	case "", "text":
		l.out.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.out.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}
