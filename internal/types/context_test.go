package types

import (
	"context"
	"testing"
)

type recordingLogger struct {
	messages []string
}

func (m *recordingLogger) Info(msg string, args ...any)  { m.messages = append(m.messages, "info:"+msg) }
func (m *recordingLogger) Error(msg string, args ...any) { m.messages = append(m.messages, "error:"+msg) }
func (m *recordingLogger) Warn(msg string, args ...any)  { m.messages = append(m.messages, "warn:"+msg) }
func (m *recordingLogger) With(args ...any) Logger        { return m }

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	if got := GetRequestID(ctx); got != "req-42" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-42")
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %q, want empty", got)
	}
}

func TestLoggerRoundTrip(t *testing.T) {
	l := &recordingLogger{}
	ctx := WithLogger(context.Background(), l)

	got := LoggerFromContext(ctx)
	if got == nil {
		t.Fatal("expected logger from context")
	}
	got.Info("hello")
	if len(l.messages) != 1 || l.messages[0] != "info:hello" {
		t.Errorf("unexpected messages: %v", l.messages)
	}
	if LoggerFromContext(context.Background()) != nil {
		t.Error("expected nil logger on empty context")
	}
}
