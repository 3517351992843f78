package sweep

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/perceptron-sweep/internal/predictor"
)

// DefaultWorkers is the pool size used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// JobFunc executes one job on the given worker.
type JobFunc func(worker int, job predictor.Job) Result

// Pool is a fixed-size set of workers draining an ordered job queue. Each
// worker blocks on its own simulator process; a job that has started always
// runs to completion.
type Pool struct {
	Workers int
	Run     JobFunc
	// FailFast stops handing out new jobs after the first failure and makes
	// Execute return that failure. In-flight jobs still finish.
	FailFast bool
}

// Execute runs jobs and calls onResult once per finished job, from a single
// goroutine, in completion order. It returns the first job error when
// FailFast is set, ctx.Err() if ctx was cancelled, and nil otherwise.
func (p *Pool) Execute(ctx context.Context, jobs []predictor.Job, onResult func(Result)) error {
	workers := p.Workers
	if workers < 1 {
		workers = DefaultWorkers()
	}
	if workers > len(jobs) && len(jobs) > 0 {
		workers = len(jobs)
	}

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan predictor.Job)
	results := make(chan Result)

	g.Go(func() error {
		defer close(queue)
		for _, job := range jobs {
			select {
			case queue <- job:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 1; w <= workers; w++ {
		g.Go(func() error {
			for job := range queue {
				// select may still hand over a job after cancellation.
				if gctx.Err() != nil {
					continue
				}
				res := p.Run(w, job)
				results <- res
				if res.Err != nil && p.FailFast {
					return res.Err
				}
			}
			return nil
		})
	}

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for res := range results {
			if onResult != nil {
				onResult(res)
			}
		}
	}()

	err := g.Wait()
	close(results)
	<-collected

	if err != nil {
		return err
	}
	return ctx.Err()
}
