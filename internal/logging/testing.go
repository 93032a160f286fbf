package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that records every entry at Debug and above.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger returns an observing logger for tests.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(zapcore.DebugLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, logs: logs}
}

// FilterMessage returns the entries whose message contains snippet.
func (t *TestLogger) FilterMessage(snippet string) *observer.ObservedLogs {
	return t.logs.FilterMessageSnippet(snippet)
}

// AssertLogged fails tb unless an entry at level contains snippet.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	for _, e := range t.logs.All() {
		if e.Level == level && strings.Contains(e.Message, snippet) {
			return
		}
	}
	tb.Errorf("no %v entry containing %q among %d entries", level, snippet, t.logs.Len())
}

// AssertField fails tb unless an entry containing snippet carries key=want.
func (t *TestLogger) AssertField(tb testing.TB, snippet, key string, want interface{}) {
	tb.Helper()
	for _, e := range t.logs.FilterMessageSnippet(snippet).All() {
		if got, ok := e.ContextMap()[key]; ok && reflect.DeepEqual(got, want) {
			return
		}
	}
	tb.Errorf("no entry containing %q with %s=%v", snippet, key, want)
}
