package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meridian-works/meridian/internal/metrics"
	"github.com/meridian-works/meridian/pkg/log"
)

// Job is a unit of background work.
type Job func(ctx context.Context) error

// ErrQueueFull is returned by Enqueue when the backlog has no room left.
var ErrQueueFull = errors.New("worker queue is full")

const defaultBacklog = 256

// Queue runs named fire-and-forget jobs on a Pool. Jobs run at most once:
// failures are logged and counted but never retried.
type Queue struct {
	pool    *Pool
	ctx     context.Context
	backlog chan pending
	pending sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type pending struct {
	name string
	job  Job
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithBacklog bounds how many jobs may wait for a free worker.
func WithBacklog(n int) QueueOption {
	return func(q *Queue) {
		if n < 1 {
			n = 1
		}
		q.backlog = make(chan pending, n)
	}
}

// NewQueue returns a queue whose jobs run under ctx, detached from the
// request that enqueued them.
func NewQueue(ctx context.Context, pool *Pool, opts ...QueueOption) *Queue {
	if pool == nil {
		pool = NewPool(1)
	}
	q := &Queue{pool: pool, ctx: ctx}
	for _, opt := range opts {
		opt(q)
	}
	if q.backlog == nil {
		q.backlog = make(chan pending, defaultBacklog)
	}
	go q.dispatch()
	return q
}

// Enqueue schedules job without blocking. It fails with ErrQueueFull when
// the backlog is saturated and with the context error once the queue's
// context is done.
func (q *Queue) Enqueue(name string, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return q.ctx.Err()
	}
	if err := q.ctx.Err(); err != nil {
		return err
	}

	q.pending.Add(1)
	select {
	case q.backlog <- pending{name: name, job: job}:
		return nil
	default:
		q.pending.Done()
		metrics.JobsTotal.WithLabelValues(name, "dropped").Inc()
		log.Warn("dropping background job", "job", name, "backlog", cap(q.backlog))
		return ErrQueueFull
	}
}

func (q *Queue) dispatch() {
	for {
		select {
		case <-q.ctx.Done():
			q.drain()
			return
		case p := <-q.backlog:
			err := q.pool.Submit(q.ctx, func() {
				defer q.pending.Done()
				_ = q.run(p.name, p.job)
			})
			if err != nil {
				log.Warn("background job abandoned", "job", p.name, "error", err)
				q.pending.Done()
			}
		}
	}
}

// drain discards jobs still waiting after shutdown.
func (q *Queue) drain() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for {
		select {
		case p := <-q.backlog:
			log.Warn("background job abandoned", "job", p.name, "error", q.ctx.Err())
			q.pending.Done()
		default:
			return
		}
	}
}

// Run executes job synchronously with the queue's logging and metrics.
func (q *Queue) Run(name string, job Job) error {
	return q.run(name, job)
}

func (q *Queue) run(name string, job Job) (err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}

		status := "succeeded"
		if err != nil {
			status = "failed"
			log.Error("background job failed", "job", name, "error", err)
		} else {
			log.Debug("background job finished", "job", name, "duration", time.Since(start))
		}

		metrics.JobsTotal.WithLabelValues(name, status).Inc()
		metrics.JobDurationSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	return job(q.ctx)
}

// Wait blocks until every enqueued job has finished or been abandoned.
func (q *Queue) Wait() {
	q.pending.Wait()
	q.pool.Wait()
}
