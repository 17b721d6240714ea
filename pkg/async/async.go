// Package async provides helpers for background work: fire-and-forget side
// effects with panic isolation, and futures for call sites that need a result.
package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Fire runs fn on its own goroutine. Errors and panics are logged under the
// given task name and never propagated; the calling request proceeds
// regardless of the task's outcome. The context passed to fn is detached from
// the caller's so that the task survives the originating request completing.
func Fire(log *slog.Logger, name string, fn func(context.Context) error) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("background task panicked",
					slog.String("task", name),
					slog.String("panic", fmt.Sprint(rec)),
				)
			}
		}()

		if err := fn(context.WithoutCancel(context.Background())); err != nil {
			log.Error("background task failed",
				slog.String("task", name),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Future represents the result of an asynchronous computation.
type Future[U any] struct {
	result U
	err    error
	once   sync.Once
	done   chan struct{}
}

// Await blocks until the computation completes and returns its result.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitWithTimeout waits for completion up to the given timeout.
func (f *Future[U]) AwaitWithTimeout(timeout time.Duration) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-time.After(timeout):
		var zero U
		return zero, ErrTimeout
	}
}

// IsComplete reports completion without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Async executes fn asynchronously and returns a Future for its result.
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)

		// Early exit prevents goroutine leak when context is pre-canceled
		select {
		case <-ctx.Done():
			f.err = ctx.Err()
			return
		default:
		}

		res, err := fn(ctx, param)

		f.once.Do(func() {
			f.result = res
			f.err = err
		})
	}()

	return f
}
