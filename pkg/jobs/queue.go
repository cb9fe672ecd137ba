package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Enqueue errors.
var (
	ErrNotStarted = errors.New("queue not started")
	ErrStopped    = errors.New("queue stopped")
	ErrFull       = errors.New("queue full")
)

// Job is a unit of background work. Jobs sharing a non-empty Key coalesce
// while one of them is still waiting in the buffer.
type Job struct {
	ID       string
	Key      string
	Payload  interface{}
	Enqueued time.Time
}

// Handler processes a job. Failures are logged; retrying is the handler's concern.
type Handler func(context.Context, Job) error

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
}

// Queue dispatches jobs to a fixed pool of goroutines.
type Queue struct {
	name    string
	handler Handler
	workers int
	size    int
	logger  *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	pending map[string]Job
}

// NewQueue builds a queue that feeds handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		workers: cfg.Workers,
		size:    cfg.BufferSize,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
		pending: make(map[string]Job),
	}
}

// Start launches the workers. Later calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.workers))
}

// Stop cancels the workers and waits for them. Buffered jobs are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped", zap.Int("dropped", len(q.jobs)))
}

// Enqueue buffers job without blocking and returns the job that will run.
// When a job with the same Key is still buffered, that job is returned and
// nothing new is added.
func (q *Queue) Enqueue(job Job) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return Job{}, fmt.Errorf("%s: %w", q.name, ErrNotStarted)
	}
	if err := q.ctx.Err(); err != nil {
		return Job{}, fmt.Errorf("%s: %w", q.name, ErrStopped)
	}
	if job.Key != "" {
		if waiting, ok := q.pending[job.Key]; ok {
			return waiting, nil
		}
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case q.jobs <- job:
	default:
		return Job{}, fmt.Errorf("%s: %w (%d pending)", q.name, ErrFull, q.size)
	}
	if job.Key != "" {
		q.pending[job.Key] = job
	}
	return job, nil
}

// Pending returns the number of buffered jobs.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

func (q *Queue) take(job Job) {
	if job.Key == "" {
		return
	}
	q.mu.Lock()
	if waiting, ok := q.pending[job.Key]; ok && waiting.ID == job.ID {
		delete(q.pending, job.Key)
	}
	q.mu.Unlock()
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.take(job)
			start := time.Now()
			fields := []zap.Field{
				zap.Int("worker", id),
				zap.String("job_id", job.ID),
				zap.Duration("waited", start.Sub(job.Enqueued)),
			}
			if err := q.handler(q.ctx, job); err != nil {
				q.logger.Error("job failed", append(fields, zap.Duration("duration", time.Since(start)), zap.Error(err))...)
				continue
			}
			q.logger.Debug("job done", append(fields, zap.Duration("duration", time.Since(start)))...)
		}
	}
}
