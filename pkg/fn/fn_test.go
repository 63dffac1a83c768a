package fn

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestResult_OkErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("expected ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unwrap: %d, %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() {
		t.Fatal("expected err")
	}
	if got := e.UnwrapOr(7); got != 7 {
		t.Fatalf("UnwrapOr: %d", got)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Fatal("expected ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Fatal("expected err")
	}
}

func TestThen_ShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	first := func(_ context.Context, s string) Result[int] {
		return Err[int](boom)
	}
	called := false
	second := func(_ context.Context, i int) Result[string] {
		called = true
		return Ok(strconv.Itoa(i))
	}

	r := Then(first, second)(context.Background(), "x")
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if called {
		t.Fatal("second stage should not run after error")
	}
}

func TestThen_Composes(t *testing.T) {
	parse := func(_ context.Context, s string) Result[int] {
		return FromPair(strconv.Atoi(s))
	}
	double := MapStage(func(i int) int { return i * 2 })

	v, err := Then(parse, double)(context.Background(), "21").Unwrap()
	if err != nil || v != 42 {
		t.Fatalf("got %d, %v", v, err)
	}
}

func TestTapStage(t *testing.T) {
	var seen int
	tap := TapStage(func(_ context.Context, v int) { seen = v })
	v, err := tap(context.Background(), 5).Unwrap()
	if err != nil || v != 5 || seen != 5 {
		t.Fatalf("tap: v=%d seen=%d err=%v", v, seen, err)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}

	r := Retry(context.Background(), opts, func(context.Context) Result[string] {
		if calls.Add(1) < 3 {
			return Err[string](errors.New("transient"))
		}
		return Ok("done")
	})

	v, err := r.Unwrap()
	if err != nil || v != "done" {
		t.Fatalf("retry: %q, %v", v, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestRetry_Exhausts(t *testing.T) {
	boom := errors.New("permanent")
	opts := RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}

	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		return Err[int](boom)
	})
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := RetryOpts{MaxAttempts: 5, InitialWait: 50 * time.Millisecond, MaxWait: time.Second}

	r := Retry(ctx, opts, func(context.Context) Result[int] {
		return Err[int](errors.New("transient"))
	})
	if _, err := r.Unwrap(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParMap_PreservesOrder(t *testing.T) {
	in := []int{1, 2, 3, 4, 5}
	out := ParMap(in, 2, func(v int) int { return v * v })
	want := []int{1, 4, 9, 16, 25}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestParMap_Empty(t *testing.T) {
	out := ParMap([]int{}, 4, func(v int) int { return v })
	if len(out) != 0 {
		t.Fatalf("expected empty, got %v", out)
	}
}

func TestMapFilter(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
	if doubled[2] != 6 {
		t.Fatalf("map: %v", doubled)
	}
	even := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if len(even) != 2 || even[0] != 2 {
		t.Fatalf("filter: %v", even)
	}
}
