package retry

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"
)

// State tracks where a single operation is in its retry lifecycle.
type State int

const (
	StateFresh State = iota
	StateRetrying
	StateSucceeded
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Outcome summarizes one operation's trip through the policy so the
// caller can fold it into run statistics.
type Outcome struct {
	State State
	// Attempts is how many times the operation was invoked.
	Attempts int
	// Retries is how many backoff sleeps were performed.
	Retries int
	// TransientFailures counts rate-limit-shaped errors observed.
	TransientFailures int
	// Recovered is true when the operation succeeded after at least
	// one retry.
	Recovered bool
	// Err is the final error for abandoned operations.
	Err error
}

// Policy retries transient provider failures with exponential backoff
// and jitter, up to a ceiling. Each call to Do runs one independent
// operation: attempts always start from zero.
//
// Failures whose text matches none of the configured transient
// indicators are never retried: exactly one attempt, unit abandoned,
// the run continues. Exhausting the ceiling raises the process-wide
// halt flag.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Indicators  []string
	Halt        *Halt

	// sleep and jitter are injectable for tests; nil means real sleep
	// and rand-based jitter in [0.8, 1.2].
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// New builds a Policy wired to the shared halt flag.
func New(maxAttempts int, baseDelay time.Duration, indicators []string, halt *Halt) *Policy {
	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Indicators:  indicators,
		Halt:        halt,
	}
}

// Transient reports whether the error is rate-limit shaped: its text
// matches one of the configured indicators, case-insensitively.
func (p *Policy) Transient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, indicator := range p.Indicators {
		if strings.Contains(msg, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}

// Do runs fn for one unit of work, retrying transient failures with
// backoff until success or the ceiling.
func (p *Policy) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) Outcome {
	out := Outcome{State: StateFresh}

	for {
		out.Attempts++
		err := fn(ctx)
		if err == nil {
			out.State = StateSucceeded
			out.Recovered = out.Retries > 0
			return out
		}

		if !p.Transient(err) {
			// Permanent failure: one attempt, no retry, run continues.
			out.Err = err
			return out
		}

		out.TransientFailures++
		attempts := out.TransientFailures
		if attempts >= p.MaxAttempts {
			log.Printf("  ❌ %s: retries exhausted after %d attempts: %v", operation, attempts, err)
			out.State = StateExhausted
			out.Err = err
			p.Halt.Raise(fmt.Sprintf("%s exhausted %d retry attempts: %v", operation, attempts, err))
			return out
		}

		delay := p.delay(attempts)
		log.Printf("  ⏳ %s: transient failure (attempt %d/%d), retrying in %s: %v",
			operation, attempts, p.MaxAttempts, delay.Round(time.Millisecond), err)

		out.State = StateRetrying
		if err := p.doSleep(ctx, delay); err != nil {
			// Operator interrupt during backoff: abandon quietly.
			out.Err = err
			return out
		}
		out.Retries++
	}
}

// delay computes base * 2^(attempts-1) * jitter with jitter in
// [0.8, 1.2].
func (p *Policy) delay(attempts int) time.Duration {
	backoff := float64(p.BaseDelay) * float64(int64(1)<<uint(attempts-1))
	j := p.jitter
	if j == nil {
		j = func() float64 { return 0.8 + rand.Float64()*0.4 }
	}
	return time.Duration(backoff * j())
}

func (p *Policy) doSleep(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
