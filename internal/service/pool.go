package service

import (
	"context"
	"sync"
)

// runPool feeds indexes 0..n-1 to numWorkers goroutines. Workers write their
// results by index, so output order does not depend on scheduling. When ctx
// is cancelled no further work is queued and ctx.Err() is returned once the
// workers have drained.
func (m *Manager) runPool(ctx context.Context, n int, work func(workerID, i int)) error {
	queue := make(chan int, m.numWorkers)
	var wg sync.WaitGroup

	for w := 0; w < m.numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range queue {
				work(workerID, i)
			}
		}(w)
	}

	var err error
feed:
	for i := 0; i < n; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case queue <- i:
		}
	}

	close(queue)
	wg.Wait()
	return err
}
