// Package logs is a small leveled-logging backend in the style the teacher
// codebase reaches for: per-subsystem loggers sharing a common set of
// writers, no external logging framework.
package logs

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// BackendWriter is a sink attached to a Backend. minLevel is the lowest
// level this writer accepts; messages below it are dropped for this writer
// only (other writers still see them).
type BackendWriter struct {
	w        io.Writer
	minLevel Level
}

// NewAllLevelsBackendWriter returns a BackendWriter that receives every
// level.
func NewAllLevelsBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelTrace}
}

// NewErrorBackendWriter returns a BackendWriter that only receives Error and
// Critical level messages.
func NewErrorBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelError}
}

// Backend is the shared sink for every subsystem Logger created from it.
type Backend struct {
	mtx     sync.Mutex
	writers []*BackendWriter
	closed  bool
}

// NewBackend creates a Backend writing to the given writers.
func NewBackend(writers []*BackendWriter) *Backend {
	return &Backend{writers: writers}
}

// Logger creates a new Logger for the given subsystem tag, sharing this
// Backend.
func (b *Backend) Logger(tag string) Logger {
	return &logger{tag: tag, backend: b, level: LevelInfo}
}

func (b *Backend) write(level Level, tag, msg string) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return
	}
	line := fmt.Sprintf("%s [%s] %s %s\n", time.Now().UTC().Format(time.RFC3339Nano), level, tag, msg)
	for _, bw := range b.writers {
		if level < bw.minLevel {
			continue
		}
		_, _ = io.WriteString(bw.w, line)
	}
}

// Close marks the backend closed; subsequent writes are silently dropped.
// Matches the teacher's Backend().Close() call made from panics.HandlePanic
// once the fatal message has been flushed.
func (b *Backend) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.closed = true
	return nil
}

// Logger is a per-subsystem leveled logger.
type Logger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})
	SetLevel(level Level)
	Level() Level
	Backend() *Backend
}

type logger struct {
	tag     string
	backend *Backend
	level   Level
}

func (l *logger) log(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.backend.write(level, l.tag, fmt.Sprintf(format, args...))
}

func (l *logger) Tracef(format string, args ...interface{})    { l.log(LevelTrace, format, args...) }
func (l *logger) Debugf(format string, args ...interface{})    { l.log(LevelDebug, format, args...) }
func (l *logger) Infof(format string, args ...interface{})     { l.log(LevelInfo, format, args...) }
func (l *logger) Warnf(format string, args ...interface{})     { l.log(LevelWarn, format, args...) }
func (l *logger) Errorf(format string, args ...interface{})    { l.log(LevelError, format, args...) }
func (l *logger) Criticalf(format string, args ...interface{}) { l.log(LevelCritical, format, args...) }

func (l *logger) SetLevel(level Level) { l.level = level }
func (l *logger) Level() Level         { return l.level }
func (l *logger) Backend() *Backend    { return l.backend }

// Disabled is a Logger that drops everything. Useful as a zero-value
// default for packages constructed without an explicit logger.
var Disabled Logger = &logger{tag: "DISABLED", backend: NewBackend(nil), level: LevelOff}

var _ io.Writer = (*nopWriter)(nil)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// NewStderrBackend is a convenience constructor used by command
// entrypoints that have not yet set up log rotation.
func NewStderrBackend() *Backend {
	return NewBackend([]*BackendWriter{NewAllLevelsBackendWriter(os.Stderr)})
}
