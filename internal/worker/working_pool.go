package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Job is a unit of asynchronous work, typically one pipeline run.
type Job func(ctx context.Context) error

// WorkingPool runs submitted jobs on a fixed set of worker goroutines. Used
// for asynchronous pipeline triggers so the HTTP handler can return 202
// immediately.
type WorkingPool struct {
	NumWorkers int
	jobChan    chan Job

	mu      sync.Mutex
	stopped bool
}

func NewWorkingPool(numWorkers int, queueSize int) *WorkingPool {
	return &WorkingPool{
		NumWorkers: numWorkers,
		jobChan:    make(chan Job, queueSize),
	}
}

// TrySubmit enqueues a job without blocking. Returns false when the queue is
// full, or when the pool has begun shutting down, so the caller can report
// back-pressure instead of hanging a request. The mutex orders submissions
// against the channel close in Start.
func (p *WorkingPool) TrySubmit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}
	select {
	case p.jobChan <- job:
		return true
	default:
		return false
	}
}

// Start runs the pool until ctx is canceled, then drains and stops.
func (p *WorkingPool) Start(ctx context.Context, managerWg *sync.WaitGroup) {
	defer managerWg.Done()

	var workerWg sync.WaitGroup

	for i := range p.NumWorkers {
		workerWg.Add(1)
		go p.worker(ctx, &workerWg, i+1)
	}

	<-ctx.Done()

	slog.Info("WorkingPool shutdown signaled, closing job channel")
	p.mu.Lock()
	p.stopped = true
	close(p.jobChan)
	p.mu.Unlock()

	workerWg.Wait()
	slog.Info("WorkingPool all workers stopped")
}

// worker is the internal goroutine for a single worker
func (p *WorkingPool) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()
	slog.Info("WorkingPool worker started", "worker_id", id)

	for {
		select {
		case job, ok := <-p.jobChan:
			if !ok {
				slog.Info("WorkingPool job channel closed, worker exiting", "worker_id", id)
				return
			}
			p.safeExecution(ctx, job, id)

		case <-ctx.Done():
			// Exit immediately, even if the job channel is not closed.
			slog.Info("WorkingPool context canceled, worker exiting", "worker_id", id)
			return
		}
	}
}

func (p *WorkingPool) safeExecution(ctx context.Context, job Job, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("WorkingPool panic recovered in job", "worker_id", workerID, "panic", r)
		}
	}()

	if err := job(ctx); err != nil {
		slog.Error("WorkingPool job failed", "worker_id", workerID, "error", err)
	}
}
