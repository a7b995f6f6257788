package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-works/meridian/internal/event"
	"github.com/meridian-works/meridian/internal/metrics"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/pkg/log"
	"gorm.io/gorm"
)

var (
	// ErrInvalidDelay is returned for a non-positive delay.
	ErrInvalidDelay = errors.New("schedule: delay_days must be a positive integer")
	// ErrInvalidRange is returned when an adjustment would leave a task
	// starting after it is due.
	ErrInvalidRange = errors.New("schedule: start date is after due date")
)

// Rescheduler recreates the deadline reminders derived from a task's due
// date. It runs inside the adjustment transaction.
type Rescheduler interface {
	RescheduleTask(ctx context.Context, tx *gorm.DB, task *models.Task) error
}

// Engine runs critical-path analysis against stored projects.
type Engine struct {
	db          *gorm.DB
	hoursPerDay float64
	emitter     *event.Emitter
	rescheduler Rescheduler
}

type Option func(*Engine)

func WithEmitter(e *event.Emitter) Option {
	return func(engine *Engine) { engine.emitter = e }
}

func WithRescheduler(r Rescheduler) Option {
	return func(engine *Engine) { engine.rescheduler = r }
}

func NewEngine(db *gorm.DB, hoursPerDay float64, opts ...Option) *Engine {
	e := &Engine{db: db, hoursPerDay: hoursPerDay}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph loads the dependency graph of a project. A failing dependency
// lookup degrades to a graph without edges.
func (e *Engine) Graph(ctx context.Context, projectID uint) (Graph, error) {
	var tasks []models.Task
	if err := e.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("id").
		Find(&tasks).Error; err != nil {
		return Graph{}, fmt.Errorf("load tasks of project %d: %w", projectID, err)
	}

	g := Graph{Nodes: make([]Node, 0, len(tasks))}
	if len(tasks) == 0 {
		return g, nil
	}

	ids := make([]uint, 0, len(tasks))
	for i := range tasks {
		ids = append(ids, tasks[i].ID)
		g.Nodes = append(g.Nodes, Node{ID: tasks[i].ID, Hours: tasks[i].Hours()})
	}

	var deps []models.TaskDependency
	if err := e.db.WithContext(ctx).
		Where("task_id IN ?", ids).
		Find(&deps).Error; err != nil {
		log.Warn("dependency lookup failed, assuming no dependencies",
			"project_id", projectID, "error", err)
		return g, nil
	}

	g.Edges = make([]Edge, 0, len(deps))
	for _, d := range deps {
		g.Edges = append(g.Edges, Edge{Task: d.TaskID, DependsOn: d.DependsOnID})
	}

	return g, nil
}

// CriticalPath computes the critical path of a stored project.
func (e *Engine) CriticalPath(ctx context.Context, projectID uint, overrides map[uint]float64) (Result, error) {
	g, err := e.Graph(ctx, projectID)
	if err != nil {
		metrics.CriticalPathComputationsTotal.WithLabelValues("critical_path", "error").Inc()
		return Result{}, err
	}

	res, err := CriticalPath(g, overrides)
	if err != nil {
		metrics.CriticalPathComputationsTotal.WithLabelValues("critical_path", "error").Inc()
		return Result{}, err
	}

	metrics.CriticalPathComputationsTotal.WithLabelValues("critical_path", "ok").Inc()
	metrics.CriticalPathDurationHours.Observe(res.DurationHours)

	return res, nil
}

// Impact is the outcome of delaying one task.
type Impact struct {
	ProjectID             uint     `json:"project_id"`
	TaskID                uint     `json:"task_id"`
	DelayDays             int      `json:"delay_days"`
	OriginalDurationHours float64  `json:"original_duration_hours"`
	NewDurationHours      float64  `json:"new_duration_hours"`
	ShiftHours            float64  `json:"shift_hours"`
	ShiftDays             *float64 `json:"shift_days"`
	OriginalPath          []uint   `json:"original_path"`
	NewPath               []uint   `json:"new_path"`
}

// Impact simulates delaying a task by delayDays working days and reports
// how the project's critical path moves.
func (e *Engine) Impact(ctx context.Context, taskID uint, delayDays int) (*Impact, error) {
	if delayDays <= 0 {
		return nil, ErrInvalidDelay
	}

	var task models.Task
	if err := e.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, err
	}

	g, err := e.Graph(ctx, task.ProjectID)
	if err != nil {
		metrics.CriticalPathComputationsTotal.WithLabelValues("impact", "error").Inc()
		return nil, err
	}

	original, err := CriticalPath(g, nil)
	if err != nil {
		metrics.CriticalPathComputationsTotal.WithLabelValues("impact", "error").Inc()
		return nil, err
	}

	delayed := task.Hours() + float64(delayDays)*e.hoursPerDay
	updated, err := CriticalPath(g, map[uint]float64{task.ID: delayed})
	if err != nil {
		metrics.CriticalPathComputationsTotal.WithLabelValues("impact", "error").Inc()
		return nil, err
	}

	metrics.CriticalPathComputationsTotal.WithLabelValues("impact", "ok").Inc()

	shift := Round(updated.DurationHours - original.DurationHours)
	impact := &Impact{
		ProjectID:             task.ProjectID,
		TaskID:                task.ID,
		DelayDays:             delayDays,
		OriginalDurationHours: original.DurationHours,
		NewDurationHours:      updated.DurationHours,
		ShiftHours:            shift,
		OriginalPath:          original.PathTaskIDs,
		NewPath:               updated.PathTaskIDs,
	}
	if e.hoursPerDay != 0 {
		days := Round(shift / e.hoursPerDay)
		impact.ShiftDays = &days
	}

	return impact, nil
}

// AdjustRequest carries new dates for a task. Nil dates are left alone.
type AdjustRequest struct {
	TaskID    uint       `json:"task_id"`
	StartDate *time.Time `json:"start_date,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`
}

// Adjustment reports what AdjustTimeline changed.
type Adjustment struct {
	TaskID             uint              `json:"task_id"`
	Changed            map[string]string `json:"changed"`
	DependentsImpacted []uint            `json:"dependents_impacted"`
}

// AdjustTimeline updates a task's dates and pushes the start of every
// direct dependent that would begin before the new due date. Only one hop
// is followed; dependents without a start date are reported but left
// untouched.
func (e *Engine) AdjustTimeline(ctx context.Context, req AdjustRequest) (*Adjustment, error) {
	out := &Adjustment{
		TaskID:             req.TaskID,
		Changed:            map[string]string{},
		DependentsImpacted: []uint{},
	}

	var projectID uint

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.First(&task, req.TaskID).Error; err != nil {
			return err
		}
		projectID = task.ProjectID

		if req.StartDate != nil {
			start := models.Date(*req.StartDate)
			task.StartDate = &start
			out.Changed["start_date"] = start.Format(time.DateOnly)
		}

		dueChanged := false
		if req.DueDate != nil {
			due := models.Date(*req.DueDate)
			dueChanged = !due.Equal(models.Date(task.DueDate))
			task.DueDate = due
			out.Changed["due_date"] = due.Format(time.DateOnly)
		}

		if task.StartDate != nil && task.StartDate.After(task.DueDate) {
			return ErrInvalidRange
		}

		if err := tx.Model(&task).Updates(map[string]any{
			"start_date": task.StartDate,
			"due_date":   task.DueDate,
		}).Error; err != nil {
			return err
		}

		if dueChanged && e.rescheduler != nil {
			if err := e.rescheduler.RescheduleTask(ctx, tx, &task); err != nil {
				return err
			}
		}

		var dependents []models.Task
		if err := tx.
			Where("id IN (?)", tx.Model(&models.TaskDependency{}).
				Select("task_id").
				Where("depends_on_id = ?", task.ID)).
			Order("id").
			Find(&dependents).Error; err != nil {
			return err
		}

		for i := range dependents {
			dep := &dependents[i]
			out.DependentsImpacted = append(out.DependentsImpacted, dep.ID)

			if req.DueDate == nil || dep.StartDate == nil || !dep.StartDate.Before(task.DueDate) {
				continue
			}

			if err := tx.Model(dep).Update("start_date", task.DueDate).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emitter.Emit(ctx, event.New(event.TypeTimelineAdjusted, projectID, req.TaskID, out))

	return out, nil
}
