package fn

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestResultUnwrap(t *testing.T) {
	v, err := Ok(42).Unwrap()
	if v != 42 || err != nil {
		t.Errorf("Ok: got %v, %v", v, err)
	}

	boom := errors.New("boom")
	_, err = Err[int](boom).Unwrap()
	if !errors.Is(err, boom) {
		t.Errorf("Err: got %v", err)
	}

	if Err[int](boom).UnwrapOr(7) != 7 {
		t.Error("UnwrapOr should return fallback on error")
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Error("nil error should be ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Error("non-nil error should be err")
	}
}

func TestCollect(t *testing.T) {
	vals, err := Collect([]Result[int]{Ok(1), Ok(2)}).Unwrap()
	if err != nil || len(vals) != 2 {
		t.Errorf("got %v, %v", vals, err)
	}

	boom := errors.New("boom")
	_, err = Collect([]Result[int]{Ok(1), Err[int](boom)}).Unwrap()
	if !errors.Is(err, boom) {
		t.Errorf("expected first error, got %v", err)
	}
}

func TestThenShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	first := func(_ context.Context, s string) Result[int] {
		return Err[int](boom)
	}
	called := false
	second := func(_ context.Context, n int) Result[string] {
		called = true
		return Ok(strconv.Itoa(n))
	}

	_, err := Then(first, second)(context.Background(), "in").Unwrap()
	if !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
	if called {
		t.Error("second stage should not run after error")
	}
}

func TestThenComposes(t *testing.T) {
	parse := func(_ context.Context, s string) Result[int] {
		return FromPair(strconv.Atoi(s))
	}
	double := func(_ context.Context, n int) Result[int] {
		return Ok(n * 2)
	}

	v, err := Then(parse, double)(context.Background(), "21").Unwrap()
	if err != nil || v != 42 {
		t.Errorf("got %v, %v", v, err)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}

	r := Retry(context.Background(), opts, func(_ context.Context) Result[string] {
		attempts++
		if attempts < 3 {
			return Errf[string]("attempt %d failed", attempts)
		}
		return Ok("done")
	})

	v, err := r.Unwrap()
	if err != nil || v != "done" {
		t.Errorf("got %v, %v", v, err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryExhausts(t *testing.T) {
	opts := RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	boom := errors.New("boom")

	_, err := Retry(context.Background(), opts, func(_ context.Context) Result[int] {
		return Err[int](boom)
	}).Unwrap()
	if !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestRetryHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := RetryOpts{MaxAttempts: 5, InitialWait: time.Hour, MaxWait: time.Hour}

	_, err := Retry(ctx, opts, func(_ context.Context) Result[int] {
		return Errf[int]("always fails")
	}).Unwrap()
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
}

func TestBatchStagePreservesOrder(t *testing.T) {
	stage := func(_ context.Context, n int) Result[int] {
		return Ok(n * 10)
	}

	vals, err := BatchStage(2, stage)(context.Background(), []int{1, 2, 3, 4}).Unwrap()
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	for i, v := range vals {
		if v != (i+1)*10 {
			t.Errorf("index %d = %d", i, v)
		}
	}
}

func TestBatchStageReturnsError(t *testing.T) {
	stage := func(_ context.Context, n int) Result[int] {
		if n == 2 {
			return Errf[int]("bad item")
		}
		return Ok(n)
	}

	if _, err := BatchStage(2, stage)(context.Background(), []int{1, 2, 3}).Unwrap(); err == nil {
		t.Error("expected error from failing item")
	}
}

func TestSliceHelpers(t *testing.T) {
	doubled := Map([]int{1, 2}, func(n int) int { return n * 2 })
	if doubled[0] != 2 || doubled[1] != 4 {
		t.Errorf("Map: %v", doubled)
	}

	evens := Filter([]int{1, 2, 3, 4}, func(n int) bool { return n%2 == 0 })
	if len(evens) != 2 {
		t.Errorf("Filter: %v", evens)
	}

	uniq := UniqueBy([]string{"aa", "ab", "ba"}, func(s string) byte { return s[0] })
	if len(uniq) != 2 || uniq[0] != "aa" || uniq[1] != "ba" {
		t.Errorf("UniqueBy: %v", uniq)
	}

	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 {
		t.Errorf("Chunk: %v", chunks)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Error("Chunk with n<=0 should be nil")
	}
}
