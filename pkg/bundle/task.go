package bundle

import (
	"context"

	"github.com/ligustah/bundlefetch/internal/progress"
)

// Task is the pending result of an asynchronous pipeline operation.
//
// Progress fractions arrive on Progress. The channel is closed before Done,
// so a consumer that drains Progress and then calls Wait always sees every
// progress value it received before the outcome. Slow consumers may miss
// intermediate values but never the final one.
type Task[T any] struct {
	progress chan float64
	done     chan struct{}

	val T
	err error
}

func start[T any](ctx context.Context, fn func(context.Context, progress.Func) (T, error)) *Task[T] {
	t := &Task[T]{
		progress: make(chan float64, 1),
		done:     make(chan struct{}),
	}
	tracker := progress.NewTracker(t.publish)
	go func() {
		t.val, t.err = fn(ctx, tracker.Report)
		tracker.Close()
		close(t.progress)
		close(t.done)
	}()
	return t
}

// publish replaces an unread value with f so the producer never blocks.
// Calls are serialized by the Tracker that wraps it.
func (t *Task[T]) publish(f float64) {
	select {
	case <-t.progress:
	default:
	}
	t.progress <- f
}

// Progress returns the channel of completion fractions. It is closed when
// the operation finishes.
func (t *Task[T]) Progress() <-chan float64 {
	return t.progress
}

// Done is closed once the outcome is available.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the operation finishes or ctx is done. Giving up on a
// Task does not cancel it; cancel the context passed to the operation for
// that.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
