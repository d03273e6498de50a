package log

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := New("debug", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level to be enabled")
	}

	if _, err := New("loud", true); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":       zapcore.InfoLevel,
		"DEBUG":  zapcore.DebugLevel,
		" warn ": zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	FromContext(ctx).Info("hello")
	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}

	// tanpa logger tetap aman
	FromContext(context.Background()).Info("dropped")
}

func TestWithLogger_NilContextPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	//nolint:staticcheck
	WithLogger(nil, zap.NewNop())
}
