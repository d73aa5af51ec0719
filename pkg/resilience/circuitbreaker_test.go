package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/fn"
)

var errDown = errors.New("backend down")

func TestBreakerStartsClosed(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	if b.State() != StateClosed {
		t.Fatalf("new breaker state = %v, want closed", b.State())
	}
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Call(ctx, func(context.Context) error { return errDown })
	}
	if b.State() != StateOpen {
		t.Fatalf("state after %d failures = %v, want open", 3, b.State())
	}

	if err := b.Call(ctx, func(context.Context) error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker returned %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	ctx := context.Background()

	_ = b.Call(ctx, func(context.Context) error { return errDown })
	_ = b.Call(ctx, func(context.Context) error { return errDown })
	_ = b.Call(ctx, func(context.Context) error { return nil })

	// two more failures should not reach the threshold again
	_ = b.Call(ctx, func(context.Context) error { return errDown })
	_ = b.Call(ctx, func(context.Context) error { return errDown })
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed after the counter reset", b.State())
	}
}

func trippedBreaker(now *time.Time, opts BreakerOpts) *Breaker {
	b := NewBreaker(opts)
	b.now = func() time.Time { return *now }
	ctx := context.Background()
	for i := 0; i < opts.FailThreshold; i++ {
		_ = b.Call(ctx, func(context.Context) error { return errDown })
	}
	return b
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	now := time.Now()
	b := trippedBreaker(&now, BreakerOpts{FailThreshold: 2, Timeout: 5 * time.Second, HalfOpenMax: 1})

	now = now.Add(6 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("state after timeout = %v, want half-open", b.State())
	}

	if err := b.Call(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state after successful probe = %v, want closed", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := trippedBreaker(&now, BreakerOpts{FailThreshold: 2, Timeout: 5 * time.Second, HalfOpenMax: 1})

	now = now.Add(6 * time.Second)
	_ = b.Call(context.Background(), func(context.Context) error { return errDown })
	if b.State() != StateOpen {
		t.Fatalf("state after failed probe = %v, want open", b.State())
	}
}

func TestBreakerHalfOpenProbeCap(t *testing.T) {
	now := time.Now()
	b := trippedBreaker(&now, BreakerOpts{FailThreshold: 2, Timeout: 5 * time.Second, HalfOpenMax: 1})

	now = now.Add(6 * time.Second)
	b.mu.Lock()
	b.currentState()
	b.halfOpenCount = b.opts.HalfOpenMax
	b.mu.Unlock()

	if err := b.Call(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("probe beyond HalfOpenMax returned %v, want ErrCircuitOpen", err)
	}
}

func TestCallResult(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: time.Second})
	ctx := context.Background()

	r := CallResult(b, ctx, func(context.Context) fn.Result[string] { return fn.Ok("SUPPORTS") })
	if r.Must() != "SUPPORTS" {
		t.Fatal("CallResult lost the value")
	}

	for i := 0; i < 2; i++ {
		CallResult(b, ctx, func(context.Context) fn.Result[string] { return fn.Err[string](errDown) })
	}
	rejected := CallResult(b, ctx, func(context.Context) fn.Result[string] { return fn.Ok("x") })
	if _, err := rejected.Unwrap(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("tripped CallResult returned %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerStage(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: time.Second})
	ctx := context.Background()

	stage := BreakerStage(b, func(ctx context.Context, in int) fn.Result[int] {
		return fn.Err[int](errDown)
	})

	_ = stage(ctx, 1)
	_ = stage(ctx, 2)

	if _, err := stage(ctx, 3).Unwrap(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("stage behind tripped breaker returned %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerConcurrentCalls(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 100, Timeout: time.Second})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Call(ctx, func(context.Context) error { return nil })
		}()
	}
	wg.Wait()
	if b.State() != StateClosed {
		t.Fatalf("state after concurrent successes = %v, want closed", b.State())
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestNewBreakerZeroOptsUseDefaults(t *testing.T) {
	b := NewBreaker(BreakerOpts{})
	if b.opts.FailThreshold != DefaultBreakerOpts.FailThreshold ||
		b.opts.Timeout != DefaultBreakerOpts.Timeout ||
		b.opts.HalfOpenMax != DefaultBreakerOpts.HalfOpenMax {
		t.Fatalf("zero opts resolved to %+v", b.opts)
	}
}
