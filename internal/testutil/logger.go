package testutil

import (
	"maps"
	"sync"
	"time"

	"github.com/intenvy/down-to-earth/logger"
)

// LoggedEvent is one event captured by FakeLogger.
type LoggedEvent struct {
	Level   string
	Fields  map[string]any
	Message string
}

// FakeLogger implements logger.Logger and records every event that is sent.
// It is safe for concurrent use.
type FakeLogger struct {
	mu     sync.Mutex
	events []LoggedEvent
	fields map[string]any
	root   *FakeLogger
}

var _ logger.Logger = (*FakeLogger)(nil)

// NewFakeLogger returns an empty FakeLogger.
func NewFakeLogger() *FakeLogger {
	return &FakeLogger{}
}

func (l *FakeLogger) sink() *FakeLogger {
	if l.root != nil {
		return l.root
	}
	return l
}

func (l *FakeLogger) event(level string) logger.LogEvent {
	return &fakeLogEvent{logger: l.sink(), level: level, fields: maps.Clone(l.fields)}
}

func (l *FakeLogger) Info() logger.LogEvent {
	return l.event("info")
}

func (l *FakeLogger) Error() logger.LogEvent {
	return l.event("error")
}

func (l *FakeLogger) Debug() logger.LogEvent {
	return l.event("debug")
}

func (l *FakeLogger) Warn() logger.LogEvent {
	return l.event("warn")
}

func (l *FakeLogger) Fatal() logger.LogEvent {
	return l.event("fatal")
}

// WithContext returns the same logger.
func (l *FakeLogger) WithContext(_ any) logger.Logger {
	return l
}

// WithFields returns a child whose events carry fields and land in the same sink.
func (l *FakeLogger) WithFields(fields map[string]any) logger.Logger {
	merged := maps.Clone(l.fields)
	if merged == nil {
		merged = map[string]any{}
	}
	maps.Copy(merged, fields)
	return &FakeLogger{fields: merged, root: l.sink()}
}

// Events returns a copy of every captured event.
func (l *FakeLogger) Events() []LoggedEvent {
	s := l.sink()
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LoggedEvent(nil), s.events...)
}

// EventsByLevel returns the captured events of one level.
func (l *FakeLogger) EventsByLevel(level string) []LoggedEvent {
	var out []LoggedEvent
	for _, e := range l.Events() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// EventsByMessage returns the captured events with the given message.
func (l *FakeLogger) EventsByMessage(msg string) []LoggedEvent {
	var out []LoggedEvent
	for _, e := range l.Events() {
		if e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

func (l *FakeLogger) record(e LoggedEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

type fakeLogEvent struct {
	logger *FakeLogger
	level  string
	fields map[string]any
}

func (e *fakeLogEvent) set(key string, value any) logger.LogEvent {
	if e.fields == nil {
		e.fields = map[string]any{}
	}
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Msg(msg string) {
	e.logger.record(LoggedEvent{Level: e.level, Fields: maps.Clone(e.fields), Message: msg})
}

// Msgf captures the format string as the message.
func (e *fakeLogEvent) Msgf(format string, _ ...any) {
	e.Msg(format)
}

func (e *fakeLogEvent) Err(err error) logger.LogEvent {
	return e.set("error", err)
}

func (e *fakeLogEvent) Str(key, value string) logger.LogEvent {
	return e.set(key, value)
}

func (e *fakeLogEvent) Int(key string, value int) logger.LogEvent {
	return e.set(key, value)
}

func (e *fakeLogEvent) Int64(key string, value int64) logger.LogEvent {
	return e.set(key, value)
}

func (e *fakeLogEvent) Uint64(key string, value uint64) logger.LogEvent {
	return e.set(key, value)
}

func (e *fakeLogEvent) Dur(key string, d time.Duration) logger.LogEvent {
	return e.set(key, d)
}

func (e *fakeLogEvent) Interface(key string, i any) logger.LogEvent {
	return e.set(key, i)
}

func (e *fakeLogEvent) Bytes(key string, val []byte) logger.LogEvent {
	return e.set(key, val)
}
