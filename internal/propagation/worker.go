package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// stepJob is a unit of work for the worker pool.
type stepJob struct {
	index int
	at    time.Time
}

// stepResult is the output of a single step. Exactly one of sample or err
// is meaningful.
type stepResult struct {
	sample Sample
	err    error
}

// WorkerPool manages a fixed number of goroutines that evaluate steps in
// parallel.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int { return wp.workers }

// run evaluates p at every time in times. Results are stored by step index,
// so the output order matches the input regardless of completion order.
// A cancelled context stops feeding jobs and returns ctx.Err().
func (wp *WorkerPool) run(ctx context.Context, p *Propagator, times []time.Time) ([]stepResult, error) {
	results := make([]stepResult, len(times))
	if len(times) == 0 {
		return results, nil
	}

	workers := wp.workers
	if workers > len(times) {
		workers = len(times)
	}

	jobs := make(chan stepJob, workers*2)

	// Each worker writes only to its own job's slot.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					continue
				}
				s, err := p.SampleAt(job.index, job.at)
				results[job.index] = stepResult{sample: s, err: err}
			}
		}()
	}

	// Feed jobs.
	go func() {
		defer close(jobs)
		for i, at := range times {
			select {
			case jobs <- stepJob{index: i, at: at}:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		wp.logger.Debug("step evaluation cancelled", "steps", len(times), "error", err)
		return nil, err
	}
	return results, nil
}
