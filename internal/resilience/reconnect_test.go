package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReconnect_EventuallySucceeds(t *testing.T) {
	attempts := 0
	err := Reconnect(context.Background(), "test", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("nats: no servers available for connection")
		}
		return nil
	}, &ReconnectConfig{MaxAttempts: 5, Backoff: time.Millisecond, Multiplier: 2, MaxBackoff: 5 * time.Millisecond})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestReconnect_GivesUp(t *testing.T) {
	cause := errors.New("unreachable")
	err := Reconnect(context.Background(), "test", func() error {
		return cause
	}, &ReconnectConfig{MaxAttempts: 2, Backoff: time.Millisecond, Multiplier: 1, MaxBackoff: time.Millisecond})

	if !errors.Is(err, cause) {
		t.Errorf("Expected last error to be wrapped, got %v", err)
	}
}

func TestReconnect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Reconnect(ctx, "test", func() error { return nil }, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
