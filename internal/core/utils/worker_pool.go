package utils

import "sync"

type indexed[T any] struct {
	index  int
	result T
	err    error
}

// MapInPool applies fn to every item on at most maxWorkers goroutines and
// returns the results in input order. If any call fails, the error of the
// lowest failing index is returned.
func MapInPool[In any, Out any](items []In, maxWorkers int, fn func(In) (Out, error)) ([]Out, error) {
	queue := make(chan int, len(items))
	for i := range items {
		queue <- i
	}
	close(queue)

	completed := make(chan indexed[Out], len(items))

	workers := max(min(len(items), maxWorkers), 1)
	wg := sync.WaitGroup{}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range queue {
				res, err := fn(items[i])
				completed <- indexed[Out]{index: i, result: res, err: err}
			}
		}()
	}

	wg.Wait()
	close(completed)

	results := make([]Out, len(items))
	errIndex := -1
	var firstErr error
	for c := range completed {
		if c.err != nil {
			if errIndex == -1 || c.index < errIndex {
				errIndex, firstErr = c.index, c.err
			}
			continue
		}
		results[c.index] = c.result
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
