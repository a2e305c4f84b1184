package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 100*time.Millisecond {
		t.Errorf("expected InitialDelay=100ms, got %v", cfg.InitialDelay)
	}
	if cfg.OnlyRetryable {
		t.Error("expected DefaultConfig to retry every error")
	}
	if !HTTPConfig().OnlyRetryable {
		t.Error("expected HTTPConfig to retry only transient errors")
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestDo_MaxRetriesExhausted(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastConfig(2), func() error {
		callCount++
		return fmt.Errorf("attempt %d failed", callCount)
	})

	if err == nil || err.Error() != "attempt 3 failed" {
		t.Errorf("expected last error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", callCount)
	}
}

func TestDo_ContextCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 1}

	callCount := 0
	err := Do(ctx, cfg, func() error {
		callCount++
		cancel()
		return errors.New("fail")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestDoWithResult_OnlyRetryableStopsOnPermanentError(t *testing.T) {
	cfg := fastConfig(3)
	cfg.OnlyRetryable = true

	callCount := 0
	_, err := DoWithResult(context.Background(), cfg, func() (int, error) {
		callCount++
		return 0, errors.New("HTTP 404 not found")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 1 {
		t.Errorf("expected permanent error to stop after 1 call, got %d", callCount)
	}
}

func TestDoWithResult_ReturnsValue(t *testing.T) {
	callCount := 0
	v, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		callCount++
		if callCount == 1 {
			return "", errors.New("connection refused")
		}
		return "pool", nil
	})

	if err != nil || v != "pool" {
		t.Errorf("expected pool, got %q, %v", v, err)
	}
}

type statusErr struct{ retryable bool }

func (e statusErr) Error() string     { return "status" }
func (e statusErr) IsRetryable() bool { return e.retryable }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"gateway timeout", errors.New("HTTP 504 gateway timeout"), true},
		{"rate limited", errors.New("429 Too Many Requests"), true},
		{"bad request", errors.New("HTTP 400 bad request"), false},
		{"syntax error", errors.New("syntax error at or near SELEC"), false},
		{"explicitly retryable", statusErr{retryable: true}, true},
		{"explicitly permanent even with pattern", fmt.Errorf("503: %w", statusErr{retryable: false}), false},
		{"context cancelled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}
