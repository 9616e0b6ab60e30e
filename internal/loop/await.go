package loop

import (
	"context"
	"fmt"
)

// Await runs work on a new goroutine and posts then(result, err) back to l.
// A panic in work is converted into an error for then.
func Await[T any](l *Loop, ctx context.Context, work func(context.Context) (T, error), then func(T, error)) {
	l.begin()
	go func() {
		v, err := safeWork(ctx, work)
		l.finish(func() { then(v, err) })
	}()
}

// Pair holds the results of two concurrent computations.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Await2 runs two work functions concurrently and posts then once both have
// finished. The first non-nil error wins, preferring a's.
func Await2[A, B any](l *Loop, ctx context.Context,
	a func(context.Context) (A, error),
	b func(context.Context) (B, error),
	then func(Pair[A, B], error),
) {
	Await(l, ctx, func(ctx context.Context) (Pair[A, B], error) {
		type resultB struct {
			v   B
			err error
		}
		ch := make(chan resultB, 1)
		go func() {
			v, err := safeWork(ctx, b)
			ch <- resultB{v, err}
		}()

		va, errA := safeWork(ctx, a)
		rb := <-ch

		if errA != nil {
			return Pair[A, B]{}, errA
		}
		if rb.err != nil {
			return Pair[A, B]{}, rb.err
		}
		return Pair[A, B]{First: va, Second: rb.v}, nil
	}, then)
}

func safeWork[T any](ctx context.Context, work func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("async work panicked: %v", r)
		}
	}()
	return work(ctx)
}
