package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/llmovies/llmovies/pkg/fn"
)

var errBoom = errors.New("boom")

func failing(context.Context) error { return errBoom }
func succeeding(context.Context) error { return nil }

func newTestBreaker(threshold int, timeout time.Duration) (*Breaker, *time.Time) {
	b := NewBreaker(BreakerOpts{FailThreshold: threshold, Timeout: timeout, HalfOpenMax: 1})
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Call(ctx, failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
	if err := b.Call(ctx, succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	_ = b.Call(ctx, failing)
	_ = b.Call(ctx, failing)
	_ = b.Call(ctx, succeeding)
	_ = b.Call(ctx, failing)
	_ = b.Call(ctx, failing)

	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	_ = b.Call(ctx, failing)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	*now = now.Add(2 * time.Minute)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	if err := b.Call(ctx, succeeding); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after probe, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	_ = b.Call(ctx, failing)
	*now = now.Add(2 * time.Minute)

	if err := b.Call(ctx, failing); !errors.Is(err, errBoom) {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open after failed probe, got %s", b.State())
	}
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	_ = b.Call(ctx, failing)
	*now = now.Add(2 * time.Minute)

	// Admit one slow probe, then reject the second.
	if err := b.admit(); err != nil {
		t.Fatalf("first probe: %v", err)
	}
	if err := b.Call(ctx, succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCallResult(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	r := CallResult(b, ctx, func(context.Context) fn.Result[int] {
		return fn.Err[int](errBoom)
	})
	if _, err := r.Unwrap(); !errors.Is(err, errBoom) {
		t.Fatalf("got %v", err)
	}

	r = CallResult(b, ctx, func(context.Context) fn.Result[int] {
		return fn.Ok(1)
	})
	if _, err := r.Unwrap(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerStage(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)
	stage := BreakerStage(b, fn.MapStage(func(v int) int { return v + 1 }))

	v, err := stage(context.Background(), 1).Unwrap()
	if err != nil || v != 2 {
		t.Fatalf("stage: %d, %v", v, err)
	}
}

func TestStateString(t *testing.T) {
	for st, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	} {
		if st.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", st, st.String(), want)
		}
	}
}
