package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failingCall(_ context.Context) error { return errors.New("boom") }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), failingCall)
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsCounter(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	_ = cb.Execute(context.Background(), failingCall)
	_ = cb.Execute(context.Background(), failingCall)
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	_ = cb.Execute(context.Background(), failingCall)

	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after success reset, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbeRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})

	now := time.Now()
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), failingCall)
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	// Advance past the reset timeout; the next call is a probe.
	now = now.Add(11 * time.Second)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}

	val, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || val != 42 {
		t.Fatalf("probe failed: val=%d err=%v", val, err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})

	now := time.Now()
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), failingCall)
	now = now.Add(11 * time.Second)

	_ = cb.Execute(context.Background(), failingCall)
	if cb.State() != CircuitOpen {
		t.Errorf("expected reopened circuit, got %s", cb.State())
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), failingCall)
	cb.Reset()

	want := []string{"closed->open", "open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}
