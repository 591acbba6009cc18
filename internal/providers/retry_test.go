package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"http 429", &HTTPError{Status: 429}, true},
		{"http 500", &HTTPError{Status: 500}, true},
		{"http 502", &HTTPError{Status: 502}, true},
		{"http 503", &HTTPError{Status: 503}, true},
		{"http 401", &HTTPError{Status: 401}, false},
		{"http 400", &HTTPError{Status: 400}, false},
		{"overloaded body", &HTTPError{Status: 529, Body: "Overloaded, try later"}, true},
		{"rate limit body", &HTTPError{Status: 413, Body: "rate limit exceeded"}, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("request: %w", context.DeadlineExceeded), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"no such host", errors.New("lookup api.example: no such host"), true},
		{"generic timeout text", errors.New("client timeout exceeded"), true},
		{"decode error", errors.New("invalid character 'x'"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryDo_SucceedsAfterRetryableFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}
	calls := 0

	got, err := RetryDo(context.Background(), cfg, func() (string, error) {
		calls++
		if calls <= 2 {
			return "", &HTTPError{Status: 503, Body: "unavailable"}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("RetryDo: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls, want ok after 3", got, calls)
	}
}

func TestRetryDo_NonRetryableFailsFast(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond}
	calls := 0

	_, err := RetryDo(context.Background(), cfg, func() (string, error) {
		calls++
		return "", &HTTPError{Status: 401, Body: "invalid api key"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("non-retryable error retried %d times", calls-1)
	}
}

func TestRetryDo_ExhaustsRetries(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}
	calls := 0

	_, err := RetryDo(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, &HTTPError{Status: 500}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestRetryDo_ExponentialBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: 50 * time.Millisecond}
	var times []time.Time

	RetryDo(context.Background(), cfg, func() (int, error) {
		times = append(times, time.Now())
		return 0, &HTTPError{Status: 503}
	})

	if len(times) != 3 {
		t.Fatalf("calls = %d, want 3", len(times))
	}
	// first retry after ~base, second after ~2*base
	if d := times[1].Sub(times[0]); d < 45*time.Millisecond {
		t.Errorf("first retry delay %v, want >= base", d)
	}
	if d := times[2].Sub(times[1]); d < 90*time.Millisecond {
		t.Errorf("second retry delay %v, want >= 2*base", d)
	}
}

func TestRetryDo_HonorsRetryAfter(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond}
	var times []time.Time

	RetryDo(context.Background(), cfg, func() (int, error) {
		times = append(times, time.Now())
		return 0, &HTTPError{Status: 429, RetryAfter: 100 * time.Millisecond}
	})

	if len(times) != 2 {
		t.Fatalf("calls = %d, want 2", len(times))
	}
	if d := times[1].Sub(times[0]); d < 90*time.Millisecond {
		t.Errorf("retry delay %v, want >= Retry-After", d)
	}
}

func TestRetryDo_ContextCancelDuringBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Minute}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := RetryDo(ctx, cfg, func() (int, error) {
		calls++
		return 0, &HTTPError{Status: 503}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context deadline", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{" 10 ", 10 * time.Second},
		{"-1", 0},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0},
	}

	for _, tt := range tests {
		if got := ParseRetryAfter(tt.in); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
