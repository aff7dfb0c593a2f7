package planner

import "sync"

// persistBatchSize caps how many store writes are in flight at once.
const persistBatchSize = 5

// runBatches runs fn over items in groups of size, waiting for each group
// before starting the next. Every item runs regardless of sibling failures;
// the returned slice holds the per-item results positionally.
func runBatches[T any](items []T, size int, fn func(T) error) []error {
	errs := make([]error, len(items))
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = fn(items[i])
			}(i)
		}
		wg.Wait()
	}
	return errs
}
