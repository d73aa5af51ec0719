package fn

import "sync"

// parFor runs f(i, items[i]) on up to workers goroutines and waits for all.
// workers <= 0 means one goroutine per item.
func parFor[T any](items []T, workers int, f func(int, T)) {
	if workers <= 0 {
		workers = len(items)
	}
	if workers == 0 {
		return
	}
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, v := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			f(i, v)
		}(i, v)
	}
	wg.Wait()
}

// ParMap applies f across items on up to workers goroutines, preserving order.
func ParMap[T, U any](items []T, workers int, f func(T) U) []U {
	out := make([]U, len(items))
	parFor(items, workers, func(i int, v T) {
		out[i] = f(v)
	})
	return out
}

// ParMapResult is ParMap for fallible f; Results come back in input order.
func ParMapResult[T, U any](items []T, workers int, f func(T) Result[U]) []Result[U] {
	out := make([]Result[U], len(items))
	parFor(items, workers, func(i int, v T) {
		out[i] = f(v)
	})
	return out
}

// FanOut runs each function on its own goroutine and returns results in order.
func FanOut[T any](fns ...func() T) []T {
	out := make([]T, len(fns))
	var wg sync.WaitGroup
	for i, f := range fns {
		wg.Add(1)
		go func(i int, f func() T) {
			defer wg.Done()
			out[i] = f()
		}(i, f)
	}
	wg.Wait()
	return out
}

// FanOutResult runs fallible functions concurrently and collects their Results.
func FanOutResult[T any](fns ...func() Result[T]) Result[[]T] {
	results := make([]Result[T], len(fns))
	var wg sync.WaitGroup
	for i, f := range fns {
		wg.Add(1)
		go func(i int, f func() Result[T]) {
			defer wg.Done()
			results[i] = f()
		}(i, f)
	}
	wg.Wait()
	return Collect(results)
}
