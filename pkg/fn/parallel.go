package fn

import (
	"context"
	"sync"
)

// ParMapResult applies f with at most workers concurrent calls, returning
// Results in input order. Items not started before ctx is done get ctx.Err().
func ParMapResult[T, U any](ctx context.Context, items []T, workers int, f func(context.Context, T) Result[U]) []Result[U] {
	out := make([]Result[U], len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, v := range items {
		if err := ctx.Err(); err != nil {
			out[i] = Err[U](err)
			continue
		}
		select {
		case <-ctx.Done():
			out[i] = Err[U](ctx.Err())
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(ctx, v)
		}(i, v)
	}
	wg.Wait()
	return out
}

// Async runs f on its own goroutine and delivers its Result on the returned
// channel, which is buffered so the goroutine never blocks on an absent reader.
func Async[T any](ctx context.Context, f func(context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		ch <- FromPair(f(ctx))
	}()
	return ch
}

// Await waits for the Result of an Async call or for ctx to finish.
func Await[T any](ctx context.Context, ch <-chan Result[T]) Result[T] {
	select {
	case r := <-ch:
		return r
	case <-ctx.Done():
		return Err[T](ctx.Err())
	}
}
