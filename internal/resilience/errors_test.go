package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("bad request"), false},
		{"explicit transient", NewTransientError(errors.New("503"), 503), true},
		{"wrapped transient", fmt.Errorf("call failed: %w", NewTransientError(errors.New("429"), 429)), true},
		{"connection reset string", errors.New("read tcp: connection reset by peer"), true},
		{"dns failure string", errors.New("dial tcp: lookup api.example.com: no such host"), true},
		{"io timeout string", errors.New("i/o timeout"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to not be transient", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("rate limited")
	te := NewTransientError(inner, 429)
	if !errors.Is(te, inner) {
		t.Error("expected errors.Is to find wrapped error")
	}
	if te.StatusCode != 429 {
		t.Errorf("expected status 429, got %d", te.StatusCode)
	}
}
