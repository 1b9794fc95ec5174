package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestErrorCarriesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithOrderID(ctx, "order-9")
	log.Error(ctx, "boom", errors.New("boom"))

	out := buf.String()
	for _, want := range []string{`"request_id":"req-123"`, `"order_id":"order-9"`, `"stack"`, `"service":"test"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in entry %s", want, out)
		}
	}
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	log.Warn(context.Background(), "quiet")
	if strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("stack should be omitted when warn stack is off")
	}

	buf.Reset()
	log = New(Options{ServiceName: "test", Output: buf, WarnStack: true})
	log.Warn(context.Background(), "loud")
	if !strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("expected stack when warn stack enabled")
	}
}

func TestFieldsDoNotLeakAcrossContexts(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	base := context.Background()
	_ = log.WithUserID(base, "user-1")
	log.Info(base, "plain")

	if strings.Contains(buf.String(), "user-1") {
		t.Fatalf("parent context picked up child field: %s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected info for empty, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("expected info for invalid, got %v", lvl)
	}
	if lvl := ParseLevel(" DEBUG "); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %v", lvl)
	}
}

func TestSensitiveFieldsAreRedacted(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	ctx := log.WithFields(context.Background(), map[string]any{
		"Password": "hunter2",
		"email":    "a@example.com",
	})
	ctx = log.WithField(ctx, "refresh_token", "abc.def")
	log.Info(ctx, "login")

	out := buf.String()
	for _, secret := range []string{"hunter2", "abc.def"} {
		if strings.Contains(out, secret) {
			t.Fatalf("secret %q leaked: %s", secret, out)
		}
	}
	if !strings.Contains(out, `"email":"a@example.com"`) {
		t.Fatalf("expected ordinary field to pass through: %s", out)
	}
}

func TestConsoleFormatFromEnvironment(t *testing.T) {
	t.Setenv("MEDCART_LOG_FORMAT", "console")
	t.Setenv("MEDCART_LOG_COLOR", "false")
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	log.Info(log.WithSubscriptionID(context.Background(), "sub-1"), "hello")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Fatalf("expected console output, got json: %s", out)
	}
	if !strings.Contains(out, "subscription_id=sub-1") {
		t.Fatalf("expected subscription field: %s", out)
	}
}
