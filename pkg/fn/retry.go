package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts controls attempt count and backoff shape.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// DefaultRetry is the backoff profile used when callers have no opinion.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// Retry calls f until it succeeds, the context ends, or MaxAttempts is spent.
// Waits double between attempts, capped at MaxWait.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	var result Result[T]
	wait := opts.InitialWait

	for attempt := 1; ; attempt++ {
		result = f(ctx)
		if result.IsOk() || attempt >= opts.MaxAttempts {
			return result
		}

		select {
		case <-ctx.Done():
			return Err[T](ctx.Err())
		case <-time.After(backoff(wait, opts)):
		}

		if wait *= 2; wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
}

// backoff applies jitter and the MaxWait cap to one sleep interval.
func backoff(wait time.Duration, opts RetryOpts) time.Duration {
	if opts.Jitter {
		wait = time.Duration(float64(wait) * (0.5 + rand.Float64()))
	}
	if wait > opts.MaxWait {
		wait = opts.MaxWait
	}
	return wait
}

// RetryStage lifts Retry onto a Stage.
func RetryStage[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return Retry(ctx, opts, func(ctx context.Context) Result[Out] {
			return stage(ctx, in)
		})
	}
}
