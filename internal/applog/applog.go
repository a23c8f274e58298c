// Package applog appends audit lines to <dir>/app.log. Write failures are
// swallowed: logging never aborts the operation that triggered it.
package applog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"classroom/internal/queue"
)

type Logger struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func New(dir string) *Logger {
	return &Logger{dir: dir, now: time.Now}
}

// Path is the log file location.
func (l *Logger) Path() string { return filepath.Join(l.dir, "app.log") }

func (l *Logger) Info(format string, args ...any)  { l.line("INFO", fmt.Sprintf(format, args...)) }
func (l *Logger) Error(format string, args ...any) { l.line("ERROR", fmt.Sprintf(format, args...)) }

// Record writes a domain event as an INFO line.
func (l *Logger) Record(msg queue.Message) {
	l.Info("%s", msg.Text)
}

// Publish makes the logger usable as a synchronous queue.Publisher.
func (l *Logger) Publish(_ context.Context, msg queue.Message) error {
	l.Record(msg)
	return nil
}

// Drain records every message from msgs until the channel closes.
func (l *Logger) Drain(msgs <-chan queue.Message) {
	for msg := range msgs {
		l.Record(msg)
	}
}

func (l *Logger) line(level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = fmt.Fprintf(f, "%s [%s] %s\n", l.now().UTC().Format(time.RFC3339Nano), level, message)
}
