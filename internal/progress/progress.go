// Package progress derives burndown series, gantt payloads and
// completion metrics for a project, and renders them into stored reports.
package progress

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/meridian-works/meridian/internal/models"
	"gorm.io/gorm"
)

const DefaultBurndownDays = 30

// Point is the remaining estimate at the end of a day.
type Point struct {
	Date           string  `json:"date"`
	RemainingHours float64 `json:"remaining_hours"`
}

type burndownKey struct {
	project uint
	days    int
	today   string
}

type Service struct {
	db    *gorm.DB
	cache *expirable.LRU[burndownKey, []Point]
	now   func() time.Time
}

// NewService caches burndown series for ttl, keeping at most size series.
// A non-positive size disables caching.
func NewService(db *gorm.DB, size int, ttl time.Duration) *Service {
	s := &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
	if size > 0 {
		s.cache = expirable.NewLRU[burndownKey, []Point](size, nil, ttl)
	}
	return s
}

// Burndown returns one point per day for the last days days, ending
// today. Each point is the sum over the project's tasks of the estimate
// minus hours logged up to that day, floored at zero per task.
func (s *Service) Burndown(ctx context.Context, projectID uint, days int) ([]Point, error) {
	if days <= 0 {
		days = DefaultBurndownDays
	}
	today := models.Date(s.now())
	key := burndownKey{project: projectID, days: days, today: today.Format(time.DateOnly)}

	if s.cache != nil {
		if series, ok := s.cache.Get(key); ok {
			return series, nil
		}
	}

	var tasks []models.Task
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Find(&tasks).Error; err != nil {
		return nil, err
	}

	type dailyLog struct {
		TaskID uint
		Date   time.Time
		Hours  float64
	}
	var logs []dailyLog
	if err := s.db.WithContext(ctx).
		Model(&models.TimeLog{}).
		Select("time_logs.task_id AS task_id, time_logs.date AS date, SUM(time_logs.hours) AS hours").
		Joins("JOIN tasks ON tasks.id = time_logs.task_id").
		Where("tasks.project_id = ? AND time_logs.date <= ?", projectID, today).
		Group("time_logs.task_id, time_logs.date").
		Scan(&logs).Error; err != nil {
		return nil, err
	}

	start := today.AddDate(0, 0, -(days - 1))
	logged := make(map[uint]float64, len(tasks))
	byDay := map[time.Time][]dailyLog{}
	for _, l := range logs {
		d := models.Date(l.Date)
		if d.Before(start) {
			logged[l.TaskID] += l.Hours
			continue
		}
		byDay[d] = append(byDay[d], l)
	}

	series := make([]Point, 0, days)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		for _, l := range byDay[d] {
			logged[l.TaskID] += l.Hours
		}

		remaining := 0.0
		for i := range tasks {
			if left := tasks[i].Hours() - logged[tasks[i].ID]; left > 0 {
				remaining += left
			}
		}
		series = append(series, Point{Date: d.Format(time.DateOnly), RemainingHours: round2(remaining)})
	}

	if s.cache != nil {
		s.cache.Add(key, series)
	}
	return series, nil
}

// Invalidate drops cached burndown series of a project.
func (s *Service) Invalidate(projectID uint) {
	if s.cache == nil {
		return
	}
	for _, k := range s.cache.Keys() {
		if k.project == projectID {
			s.cache.Remove(k)
		}
	}
}

type GanttTask struct {
	ID           uint              `json:"id"`
	Title        string            `json:"title"`
	StartDate    *time.Time        `json:"start_date"`
	EndDate      time.Time         `json:"end_date"`
	Assignee     *string           `json:"assignee"`
	Status       models.TaskStatus `json:"status"`
	Priority     models.Priority   `json:"priority"`
	Dependencies []uint            `json:"dependencies"`
}

type GanttMilestone struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	IsCompleted bool      `json:"is_completed"`
}

type Gantt struct {
	Tasks      []GanttTask      `json:"tasks"`
	Milestones []GanttMilestone `json:"milestones"`
}

func (s *Service) Gantt(ctx context.Context, projectID uint) (*Gantt, error) {
	db := s.db.WithContext(ctx)

	var tasks []models.Task
	if err := db.Where("project_id = ?", projectID).Order("id").Find(&tasks).Error; err != nil {
		return nil, err
	}

	var deps []models.TaskDependency
	if err := db.Where("task_id IN (?)", db.Model(&models.Task{}).Select("id").Where("project_id = ?", projectID)).
		Order("depends_on_id").
		Find(&deps).Error; err != nil {
		return nil, err
	}
	depsOf := map[uint][]uint{}
	for _, d := range deps {
		depsOf[d.TaskID] = append(depsOf[d.TaskID], d.DependsOnID)
	}

	names, err := s.assigneeNames(ctx, tasks)
	if err != nil {
		return nil, err
	}

	out := &Gantt{Tasks: make([]GanttTask, 0, len(tasks)), Milestones: []GanttMilestone{}}
	for _, t := range tasks {
		gt := GanttTask{
			ID:           t.ID,
			Title:        t.Title,
			StartDate:    t.StartDate,
			EndDate:      t.DueDate,
			Status:       t.Status,
			Priority:     t.Priority,
			Dependencies: depsOf[t.ID],
		}
		if gt.Dependencies == nil {
			gt.Dependencies = []uint{}
		}
		if t.AssigneeID != nil {
			if name, ok := names[*t.AssigneeID]; ok {
				gt.Assignee = &name
			}
		}
		out.Tasks = append(out.Tasks, gt)
	}

	var milestones []models.Milestone
	if err := db.Where("project_id = ?", projectID).Order("start_date, id").Find(&milestones).Error; err != nil {
		return nil, err
	}
	for _, m := range milestones {
		out.Milestones = append(out.Milestones, GanttMilestone{
			ID:          m.ID,
			Name:        m.Name,
			StartDate:   m.StartDate,
			EndDate:     m.EndDate,
			IsCompleted: m.IsCompleted,
		})
	}

	return out, nil
}

func (s *Service) assigneeNames(ctx context.Context, tasks []models.Task) (map[uuid.UUID]string, error) {
	var ids []uuid.UUID
	for _, t := range tasks {
		if t.AssigneeID != nil {
			ids = append(ids, *t.AssigneeID)
		}
	}
	names := map[uuid.UUID]string{}
	if len(ids) == 0 {
		return names, nil
	}

	var employees []models.Employee
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&employees).Error; err != nil {
		return nil, err
	}
	for _, e := range employees {
		names[e.ID] = e.Name
	}
	return names, nil
}

// AssigneeMetrics counts tasks per assignee. A nil AssigneeID groups
// unassigned tasks.
type AssigneeMetrics struct {
	AssigneeID *uuid.UUID `json:"assignee_id"`
	Name       string     `json:"name"`
	TotalTasks int        `json:"total_tasks"`
	Completed  int        `json:"completed"`
}

type Metrics struct {
	TotalTasks       int               `json:"total_tasks"`
	CompletedTasks   int               `json:"completed_tasks"`
	CompletionRate   float64           `json:"completion_rate"`
	TotalLoggedHours float64           `json:"total_logged_hours"`
	ByAssignee       []AssigneeMetrics `json:"by_assignee"`
}

func (s *Service) Metrics(ctx context.Context, projectID uint) (*Metrics, error) {
	var tasks []models.Task
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Find(&tasks).Error; err != nil {
		return nil, err
	}

	logged, err := s.loggedHours(ctx, projectID)
	if err != nil {
		return nil, err
	}

	names, err := s.assigneeNames(ctx, tasks)
	if err != nil {
		return nil, err
	}

	m := &Metrics{TotalTasks: len(tasks), ByAssignee: []AssigneeMetrics{}}
	groups := map[uuid.UUID]*AssigneeMetrics{}
	var unassigned *AssigneeMetrics

	for _, t := range tasks {
		m.TotalLoggedHours += logged[t.ID]

		var group *AssigneeMetrics
		if t.AssigneeID == nil {
			if unassigned == nil {
				unassigned = &AssigneeMetrics{}
			}
			group = unassigned
		} else {
			group = groups[*t.AssigneeID]
			if group == nil {
				id := *t.AssigneeID
				group = &AssigneeMetrics{AssigneeID: &id, Name: names[id]}
				groups[id] = group
			}
		}

		group.TotalTasks++
		if t.Status == models.TaskDone {
			m.CompletedTasks++
			group.Completed++
		}
	}

	if m.TotalTasks > 0 {
		m.CompletionRate = round2(float64(m.CompletedTasks) / float64(m.TotalTasks))
	}
	m.TotalLoggedHours = round2(m.TotalLoggedHours)

	for _, g := range groups {
		m.ByAssignee = append(m.ByAssignee, *g)
	}
	sort.Slice(m.ByAssignee, func(i, j int) bool {
		return m.ByAssignee[i].AssigneeID.String() < m.ByAssignee[j].AssigneeID.String()
	})
	if unassigned != nil {
		m.ByAssignee = append(m.ByAssignee, *unassigned)
	}

	return m, nil
}

func (s *Service) loggedHours(ctx context.Context, projectID uint) (map[uint]float64, error) {
	var rows []struct {
		TaskID uint
		Hours  float64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.TimeLog{}).
		Select("time_logs.task_id AS task_id, SUM(time_logs.hours) AS hours").
		Joins("JOIN tasks ON tasks.id = time_logs.task_id").
		Where("tasks.project_id = ?", projectID).
		Group("time_logs.task_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("sum logged hours: %w", err)
	}

	out := make(map[uint]float64, len(rows))
	for _, r := range rows {
		out[r.TaskID] = r.Hours
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
