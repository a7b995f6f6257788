package deadline

import (
	"context"
	"errors"
	"time"

	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/worker"
	"github.com/meridian-works/meridian/pkg/log"
	"gorm.io/gorm"
)

// ErrInvalidSource is returned when a notification does not reference
// exactly one task, milestone or sprint.
var ErrInvalidSource = errors.New("deadline: notification needs exactly one of task, milestone or sprint")

// Config holds the reminder policy.
type Config struct {
	OffsetsDays []int
	Hour        int
	Debounce    time.Duration
}

// DefaultConfig reminds two days and one day ahead at 09:00 UTC.
func DefaultConfig() Config {
	return Config{OffsetsDays: []int{2, 1}, Hour: 9, Debounce: 10 * time.Second}
}

// Scheduler keeps derived notifications in step with due dates.
type Scheduler struct {
	db      *gorm.DB
	cfg     Config
	sweeper *Sweeper
	queue   *worker.Queue
	now     func() time.Time
}

func NewScheduler(db *gorm.DB, cfg Config, sweeper *Sweeper, queue *worker.Queue) *Scheduler {
	return &Scheduler{
		db:      db,
		cfg:     cfg,
		sweeper: sweeper,
		queue:   queue,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Reschedule drops the unsent notifications of src and creates new ones
// for its current due date. It uses tx when given so the change commits
// together with the due date.
func (s *Scheduler) Reschedule(ctx context.Context, tx *gorm.DB, src Source) ([]models.DeadlineNotification, error) {
	if !src.valid() {
		return nil, ErrInvalidSource
	}
	if tx == nil {
		tx = s.db
	}
	tx = tx.WithContext(ctx)

	column, id := src.column()
	if err := tx.Where(column+" = ? AND sent = ?", id, false).
		Delete(&models.DeadlineNotification{}).Error; err != nil {
		return nil, err
	}

	created := []models.DeadlineNotification{}
	for _, at := range Reminders(src.Due, s.cfg.OffsetsDays, s.cfg.Hour, s.now()) {
		created = append(created, models.DeadlineNotification{
			ProjectID:   src.ProjectID,
			TaskID:      src.TaskID,
			MilestoneID: src.MilestoneID,
			SprintID:    src.SprintID,
			NotifyAt:    at,
		})
	}

	if len(created) > 0 {
		if err := tx.Create(&created).Error; err != nil {
			return nil, err
		}
	}

	return created, nil
}

// RescheduleTask reschedules the reminders of a task.
func (s *Scheduler) RescheduleTask(ctx context.Context, tx *gorm.DB, task *models.Task) error {
	_, err := s.Reschedule(ctx, tx, TaskSource(task))
	return err
}

// Trigger asks for a sweep once pending writes have committed. The
// sweeper's debounce absorbs bursts.
func (s *Scheduler) Trigger() {
	if s.sweeper == nil {
		return
	}

	job := func(ctx context.Context) error {
		_, err := s.sweeper.Sweep(ctx)
		return err
	}

	if s.queue == nil {
		if err := job(context.Background()); err != nil {
			log.Error("deadline sweep failed", "error", err)
		}
		return
	}

	if err := s.queue.Enqueue("deadline_sweep", job); err != nil {
		log.Warn("failed to enqueue deadline sweep", "error", err)
	}
}
