package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-works/meridian/internal/metrics"
	"github.com/meridian-works/meridian/internal/trigger"
	"github.com/meridian-works/meridian/internal/worker"
	"github.com/meridian-works/meridian/pkg/log"
	"github.com/robfig/cron"
)

var _ trigger.Trigger = (*Cron)(nil)

// Cron fires a named job on a five field cron schedule.
type Cron struct {
	name     string
	schedule cron.Schedule
	location *time.Location
	job      worker.Job
	queue    *worker.Queue
	now      func() time.Time
}

type Option func(*Cron)

// WithQueue runs fired jobs on the queue instead of inline.
func WithQueue(q *worker.Queue) Option {
	return func(c *Cron) { c.queue = q }
}

// WithLocation evaluates the schedule in loc rather than UTC.
func WithLocation(loc *time.Location) Option {
	return func(c *Cron) {
		if loc != nil {
			c.location = loc
		}
	}
}

func New(name, expr string, job worker.Job, opts ...Option) (*Cron, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("cron trigger requires a name")
	}
	if job == nil {
		return nil, fmt.Errorf("cron trigger %s requires a job", name)
	}

	sched, err := Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("cron trigger %s: %w", name, err)
	}

	c := &Cron{
		name:     name,
		schedule: sched,
		location: time.UTC,
		job:      job,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Parse parses a standard five field expression.
func Parse(expr string) (cron.Schedule, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("cron expression is empty")
	}

	parser := cron.NewParser(
		cron.Minute |
			cron.Hour |
			cron.Dom |
			cron.Month |
			cron.Dow,
	)
	return parser.Parse(expr)
}

// Listen fires the job at every scheduled tick until ctx is done.
func (c *Cron) Listen(ctx context.Context) {
	log.Info("trigger listening", "trigger", c.name)

	for {
		timer := time.NewTimer(time.Until(c.nextTick()))

		select {
		case <-timer.C:
			if err := c.Fire(ctx); err != nil {
				log.Error("trigger fire failure", "trigger", c.name, "error", err)
			}
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// Fire runs the job once, on the queue when one is configured.
func (c *Cron) Fire(ctx context.Context) error {
	log.Info("trigger firing", "trigger", c.name)
	metrics.TriggerFiresTotal.WithLabelValues(c.name).Inc()

	if c.queue != nil {
		return c.queue.Enqueue(c.name, c.job)
	}
	return c.job(ctx)
}

func (c *Cron) Name() string {
	return c.name
}

func (c *Cron) nextTick() time.Time {
	return c.schedule.Next(c.now().In(c.location))
}
