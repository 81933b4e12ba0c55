package service

import (
	"context"
	"sync"
	"sync/atomic"
)

// forEachDevice runs fn for every job, fanning out over up to slots
// goroutines. It returns how many jobs failed and whether cancellation cut
// the pass short. Cancellation is honored between jobs, never mid-job, and
// any job not handed to a worker counts the pass as aborted so callers know
// the results are partial.
func forEachDevice[T any](ctx context.Context, slots int, jobs []T, fn func(context.Context, T) error) (int, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if slots <= 1 || len(jobs) <= 1 {
		failed := 0
		for _, job := range jobs {
			if ctx.Err() != nil {
				return failed, true
			}
			if err := fn(ctx, job); err != nil {
				failed++
			}
		}
		return failed, false
	}

	tasks := make(chan T)
	var wg sync.WaitGroup
	var failed atomic.Int64
	var aborted atomic.Bool

	for i := 0; i < slots; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range tasks {
				if ctx.Err() != nil {
					// The job was already dequeued; dropping it makes the
					// pass partial even though the distributor never saw
					// the cancellation.
					aborted.Store(true)
					continue
				}
				if err := fn(ctx, job); err != nil {
					failed.Add(1)
				}
			}
		}()
	}

distribute:
	for _, job := range jobs {
		select {
		case tasks <- job:
		case <-ctx.Done():
			aborted.Store(true)
			break distribute
		}
	}
	close(tasks)
	wg.Wait()

	return int(failed.Load()), aborted.Load()
}
