package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestPolicy(maxAttempts int, halt *Halt) (*Policy, *[]time.Duration) {
	sleeps := &[]time.Duration{}
	p := New(maxAttempts, time.Second, []string{"rate limit", "429", "too many requests"}, halt)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	p.jitter = func() float64 { return 1.0 }
	return p, sleeps
}

func TestTransientMatchesIndicatorsCaseInsensitively(t *testing.T) {
	p, _ := newTestPolicy(3, &Halt{})

	cases := []struct {
		err       error
		transient bool
	}{
		{errors.New("429 Too Many Requests"), true},
		{errors.New("provider said RATE LIMIT exceeded"), true},
		{errors.New("invalid prompt"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := p.Transient(c.err); got != c.transient {
			t.Fatalf("Transient(%v) = %v, want %v", c.err, got, c.transient)
		}
	}
}

func TestRetryDelaysIncreaseExponentially(t *testing.T) {
	halt := &Halt{}
	p, sleeps := newTestPolicy(4, halt)

	calls := 0
	out := p.Do(context.Background(), "unit", func(ctx context.Context) error {
		calls++
		if calls <= 3 {
			return errors.New("429 slow down")
		}
		return nil
	})

	if out.State != StateSucceeded {
		t.Fatalf("expected success, got %s", out.State)
	}
	if !out.Recovered {
		t.Fatal("success after retries must be marked recovered")
	}
	if out.Retries != 3 || out.TransientFailures != 3 {
		t.Fatalf("expected 3 retries and 3 transient failures, got %+v", out)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("expected %d sleeps, got %d", len(want), len(*sleeps))
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Fatalf("sleep %d: expected %s, got %s", i, d, (*sleeps)[i])
		}
	}
	if halt.Raised() {
		t.Fatal("halt must not be raised on recovery")
	}
}

func TestNonTransientFailureGetsOneAttempt(t *testing.T) {
	halt := &Halt{}
	p, sleeps := newTestPolicy(3, halt)

	calls := 0
	out := p.Do(context.Background(), "unit", func(ctx context.Context) error {
		calls++
		return errors.New("invalid prompt")
	})

	if calls != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", calls)
	}
	if out.Err == nil || out.State == StateSucceeded {
		t.Fatalf("expected failure outcome, got %+v", out)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("permanent failures must not back off, slept %d times", len(*sleeps))
	}
	if halt.Raised() {
		t.Fatal("permanent failure must not raise halt")
	}
}

func TestExhaustionRaisesHalt(t *testing.T) {
	halt := &Halt{}
	p, sleeps := newTestPolicy(3, halt)

	calls := 0
	out := p.Do(context.Background(), "camp-1/shitpost#0", func(ctx context.Context) error {
		calls++
		return errors.New("429 too many requests")
	})

	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts at ceiling 3, got %d", calls)
	}
	if out.State != StateExhausted {
		t.Fatalf("expected exhausted state, got %s", out.State)
	}
	if len(*sleeps) != 2 {
		t.Fatalf("exhaustion at attempt 3 means 2 backoffs, got %d", len(*sleeps))
	}
	if !halt.Raised() {
		t.Fatal("exhaustion must raise the halt flag")
	}
	if halt.Reason() == "" {
		t.Fatal("halt reason must name the exhausted operation")
	}
}

func TestAttemptsStartFreshPerOperation(t *testing.T) {
	halt := &Halt{}
	p, _ := newTestPolicy(3, halt)

	for i := 0; i < 2; i++ {
		calls := 0
		out := p.Do(context.Background(), "unit", func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return errors.New("rate limit")
			}
			return nil
		})
		if out.State != StateSucceeded || out.Retries != 1 {
			t.Fatalf("operation %d: expected 1-retry success, got %+v", i, out)
		}
	}
	if halt.Raised() {
		t.Fatal("independent operations must not accumulate attempts toward the ceiling")
	}
}

func TestContextCancelDuringBackoffAbandons(t *testing.T) {
	halt := &Halt{}
	p, _ := newTestPolicy(3, halt)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	calls := 0
	out := p.Do(context.Background(), "unit", func(ctx context.Context) error {
		calls++
		return errors.New("429")
	})

	if calls != 1 {
		t.Fatalf("expected 1 attempt before canceled backoff, got %d", calls)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", out.Err)
	}
	if halt.Raised() {
		t.Fatal("cancellation is not exhaustion")
	}
}

func TestHaltFirstReasonWins(t *testing.T) {
	halt := &Halt{}
	halt.Raise("first")
	halt.Raise("second")

	if !halt.Raised() {
		t.Fatal("expected halt raised")
	}
	if got := halt.Reason(); got != "first" {
		t.Fatalf("expected first reason to win, got %q", got)
	}
}
