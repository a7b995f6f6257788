package deadline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/meridian-works/meridian/internal/metrics"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/notify"
	"github.com/meridian-works/meridian/pkg/log"
	"gorm.io/gorm"
)

// Sweeper dispatches due notifications and raises escalations.
type Sweeper struct {
	db       *gorm.DB
	notifier notify.Notifier
	debounce time.Duration
	now      func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

type SweeperOption func(*Sweeper)

// WithClock replaces the sweeper's time source.
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

func NewSweeper(db *gorm.DB, notifier notify.Notifier, debounce time.Duration, opts ...SweeperOption) *Sweeper {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	s := &Sweeper{
		db:       db,
		notifier: notifier,
		debounce: debounce,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Skipped     bool `json:"skipped"`
	Sent        int  `json:"sent"`
	Failed      int  `json:"failed"`
	Escalations int  `json:"escalations"`
}

// Sweep sends every unsent notification that is due and escalates
// overdue work. Runs closer together than the debounce window are
// skipped. A notification that fails to send stays unsent for the next
// run.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()

	s.mu.Lock()
	if !s.lastRun.IsZero() && now.Sub(s.lastRun) < s.debounce {
		s.mu.Unlock()
		log.Debug("skipping deadline sweep due to debounce")
		metrics.DeadlineSweepsTotal.WithLabelValues("skipped").Inc()
		return SweepResult{Skipped: true}, nil
	}
	s.lastRun = now
	s.mu.Unlock()

	res := SweepResult{}

	var due []models.DeadlineNotification
	if err := s.db.WithContext(ctx).
		Where("sent = ? AND notify_at <= ?", false, now).
		Order("notify_at, id").
		Find(&due).Error; err != nil {
		metrics.DeadlineSweepsTotal.WithLabelValues("error").Inc()
		return res, fmt.Errorf("load due notifications: %w", err)
	}

	for i := range due {
		n := &due[i]

		msg, err := s.reminder(ctx, n)
		if err != nil {
			log.Warn("failed to build reminder", "notification_id", n.ID, "error", err)
			res.Failed++
			continue
		}

		if err := s.notifier.Notify(ctx, msg); err != nil {
			res.Failed++
			continue
		}

		if err := s.db.WithContext(ctx).Model(n).Update("sent", true).Error; err != nil {
			log.Error("failed to mark notification sent", "notification_id", n.ID, "error", err)
			res.Failed++
			continue
		}
		res.Sent++
	}

	escalations, err := s.escalate(ctx, now)
	res.Escalations = escalations
	if err != nil {
		metrics.DeadlineSweepsTotal.WithLabelValues("error").Inc()
		return res, err
	}

	metrics.DeadlineSweepsTotal.WithLabelValues("ok").Inc()
	log.Info("deadline sweep finished", "sent", res.Sent, "failed", res.Failed, "escalations", res.Escalations)

	return res, nil
}

func (s *Sweeper) reminder(ctx context.Context, n *models.DeadlineNotification) (notify.Message, error) {
	msg := notify.Message{
		Kind:        notify.KindReminder,
		ProjectID:   n.ProjectID,
		TaskID:      n.TaskID,
		MilestoneID: n.MilestoneID,
		SprintID:    n.SprintID,
	}

	db := s.db.WithContext(ctx)

	switch {
	case n.TaskID != nil:
		var task models.Task
		if err := db.First(&task, *n.TaskID).Error; err != nil {
			return msg, err
		}
		msg.Subject = task.Title
		msg.Due = task.DueDate
		msg.Recipients = s.recipients(ctx, &task)
	case n.MilestoneID != nil:
		var m models.Milestone
		if err := db.First(&m, *n.MilestoneID).Error; err != nil {
			return msg, err
		}
		msg.Subject = m.Name
		msg.Due = m.EndDate
	case n.SprintID != nil:
		var sp models.Sprint
		if err := db.First(&sp, *n.SprintID).Error; err != nil {
			return msg, err
		}
		msg.Subject = sp.Name
		msg.Due = sp.EndDate
	default:
		return msg, ErrInvalidSource
	}

	msg.Text = fmt.Sprintf("%s is due on %s", msg.Subject, msg.Due.Format(time.DateOnly))
	return msg, nil
}

func (s *Sweeper) recipients(ctx context.Context, task *models.Task) []string {
	if task.AssigneeID == nil {
		return nil
	}

	var e models.Employee
	if err := s.db.WithContext(ctx).First(&e, "id = ?", *task.AssigneeID).Error; err != nil || e.Email == "" {
		return nil
	}
	return []string{e.Email}
}

// escalate records one escalation per overdue task or milestone per day.
func (s *Sweeper) escalate(ctx context.Context, now time.Time) (int, error) {
	today := models.Date(now)
	db := s.db.WithContext(ctx)

	var tasks []models.Task
	if err := db.Where("due_date < ? AND status <> ?", today, models.TaskDone).
		Order("id").
		Find(&tasks).Error; err != nil {
		return 0, fmt.Errorf("load overdue tasks: %w", err)
	}

	var milestones []models.Milestone
	if err := db.Where("end_date < ? AND is_completed = ?", today, false).
		Order("id").
		Find(&milestones).Error; err != nil {
		return 0, fmt.Errorf("load overdue milestones: %w", err)
	}

	count := 0

	for i := range tasks {
		t := &tasks[i]
		id := t.ID
		msg := notify.Message{
			Kind:       notify.KindEscalation,
			ProjectID:  t.ProjectID,
			TaskID:     &id,
			Subject:    t.Title,
			Due:        t.DueDate,
			Text:       fmt.Sprintf("task %q is overdue since %s", t.Title, t.DueDate.Format(time.DateOnly)),
			Recipients: s.recipients(ctx, t),
		}
		raised, err := s.raise(ctx, "task_id", id, today, msg)
		if err != nil {
			return count, err
		}
		if raised {
			metrics.EscalationsTotal.WithLabelValues("task").Inc()
			count++
		}
	}

	for i := range milestones {
		m := &milestones[i]
		id := m.ID
		msg := notify.Message{
			Kind:        notify.KindEscalation,
			ProjectID:   m.ProjectID,
			MilestoneID: &id,
			Subject:     m.Name,
			Due:         m.EndDate,
			Text:        fmt.Sprintf("milestone %q is overdue since %s", m.Name, m.EndDate.Format(time.DateOnly)),
		}
		raised, err := s.raise(ctx, "milestone_id", id, today, msg)
		if err != nil {
			return count, err
		}
		if raised {
			metrics.EscalationsTotal.WithLabelValues("milestone").Inc()
			count++
		}
	}

	return count, nil
}

func (s *Sweeper) raise(ctx context.Context, column string, id uint, today time.Time, msg notify.Message) (bool, error) {
	db := s.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&models.EscalationLog{}).
		Where(column+" = ? AND created_at >= ?", id, today).
		Count(&existing).Error; err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}

	notified, _ := json.Marshal(msg.Recipients)
	entry := &models.EscalationLog{
		ProjectID:   msg.ProjectID,
		TaskID:      msg.TaskID,
		MilestoneID: msg.MilestoneID,
		Message:     msg.Text,
		Notified:    notified,
		CreatedAt:   s.now(),
	}
	if err := db.Create(entry).Error; err != nil {
		return false, err
	}

	if err := s.notifier.Notify(ctx, msg); err != nil {
		log.Warn("escalation notification failed", column, id, "error", err)
	}

	return true, nil
}
