package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_ReturnsAttachedLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	attached := zap.New(core)

	ctx := ContextWithLogger(context.Background(), attached)
	got := FromContext(ctx)

	got.Info("hello")
	if logs.Len() != 1 {
		t.Fatalf("expected the attached logger to receive the entry, got %d entries", logs.Len())
	}
	if logs.All()[0].Message != "hello" {
		t.Errorf("unexpected message %q", logs.All()[0].Message)
	}
}

func TestFromContext_NopWithoutLogger(t *testing.T) {
	got := FromContext(context.Background())
	if got == nil {
		t.Fatal("expected a usable logger, got nil")
	}
	got.Info("dropped") // must not panic
}
