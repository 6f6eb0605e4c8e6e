package backtest

import (
	"context"
	"fmt"
	"sync"
)

// Job is one independent unit of scheduled work, normally a Run's Execute.
type Job func(ctx context.Context) error

// JobResult is the per-job outcome in the scheduler's aggregate result.
type JobResult struct {
	Name string
	Err  error
}

// Failed reports whether the job failed.
func (r JobResult) Failed() bool { return r.Err != nil }

// ParallelJobs runs independent jobs concurrently under a worker bound.
// Jobs must not share mutable state; the scheduler provides wall-clock
// concurrency only and never changes a run's semantics.
type ParallelJobs struct {
	limit int

	mu    sync.Mutex
	names []string
	jobs  []Job
}

// NewParallelJobs creates a scheduler running at most limit jobs at once.
// A non-positive limit means no bound.
func NewParallelJobs(limit int) *ParallelJobs {
	return &ParallelJobs{limit: limit}
}

// Add registers one named job. Jobs run in JoinAll.
func (p *ParallelJobs) Add(name string, job Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names = append(p.names, name)
	p.jobs = append(p.jobs, job)
}

// AddRun registers a run under its own id.
func (p *ParallelJobs) AddRun(r *Run) {
	p.Add(r.RunID(), r.Execute)
}

// Len returns the number of registered jobs.
func (p *ParallelJobs) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// JoinAll launches every registered job and blocks until all have
// finished. Results are returned in registration order. One job's failure
// or panic is captured in its result and never cancels a sibling.
func (p *ParallelJobs) JoinAll(ctx context.Context) []JobResult {
	p.mu.Lock()
	names := make([]string, len(p.names))
	copy(names, p.names)
	jobs := make([]Job, len(p.jobs))
	copy(jobs, p.jobs)
	p.mu.Unlock()

	results := make([]JobResult, len(jobs))

	var sem chan struct{}
	if p.limit > 0 {
		sem = make(chan struct{}, p.limit)
	}

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = JobResult{Name: names[i], Err: runJob(ctx, job)}
		}(i, job)
	}
	wg.Wait()

	return results
}

// runJob invokes one job, converting a panic into an error so a faulty
// run cannot take the scheduler down.
func runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return job(ctx)
}
