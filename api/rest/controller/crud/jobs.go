package crud

import (
	"context"

	"github.com/meridian-works/meridian/internal/worker"
	"github.com/meridian-works/meridian/pkg/log"
)

// Enqueue hands job to q. Without a queue the job runs inline, detached
// from the request context.
func Enqueue(q *worker.Queue, name string, job worker.Job) {
	if q == nil {
		if err := job(context.Background()); err != nil {
			log.Error("background job failed", "job", name, "error", err)
		}
		return
	}

	if err := q.Enqueue(name, job); err != nil {
		log.Warn("failed to enqueue job", "job", name, "error", err)
	}
}
