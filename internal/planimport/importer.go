// Package planimport persists validated plan manifests.
package planimport

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-works/meridian/internal/deadline"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/pkg/idgen"
	"github.com/meridian-works/meridian/pkg/labels"
	"github.com/meridian-works/meridian/pkg/plan"
	"gorm.io/gorm"
)

var ErrDuplicateProject = errors.New("project already exists")

// Importer coordinates persistence of plan definitions.
type Importer struct {
	db        *gorm.DB
	scheduler *deadline.Scheduler
}

// NewImporter creates a new importer. The provided db connection must be
// non-nil. A nil scheduler skips reminder creation.
func NewImporter(dbConn *gorm.DB, scheduler *deadline.Scheduler) *Importer {
	if dbConn == nil {
		panic("plan importer requires a database connection")
	}
	return &Importer{db: dbConn, scheduler: scheduler}
}

// ApplyOptions control optional behaviors for Apply.
type ApplyOptions struct {
	OrganizationID string
}

// Result is what one plan created.
type Result struct {
	Project    *models.Project `json:"project"`
	TaskIDs    map[string]uint `json:"task_ids"`
	Milestones []uint          `json:"milestone_ids"`
}

// Apply creates the project, its client if named and missing, tasks,
// dependencies, milestones and their reminders in one transaction.
func (i *Importer) Apply(ctx context.Context, def *plan.Definition, opts ApplyOptions) (*Result, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var result *Result
	err := i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := i.createProject(tx, &def.Project, opts)
		if err != nil {
			return err
		}

		taskByKey, err := i.createTasks(ctx, tx, project, def.Tasks)
		if err != nil {
			return err
		}

		if err := createDependencies(tx, def.Tasks, taskByKey); err != nil {
			return err
		}

		milestones, err := i.createMilestones(ctx, tx, project, def.Milestones)
		if err != nil {
			return err
		}

		ids := make(map[string]uint, len(taskByKey))
		for k, t := range taskByKey {
			ids[k] = t.ID
		}
		result = &Result{Project: project, TaskIDs: ids, Milestones: milestones}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if i.scheduler != nil {
		i.scheduler.Trigger()
	}
	return result, nil
}

func (i *Importer) createProject(tx *gorm.DB, p *plan.Project, opts ApplyOptions) (*models.Project, error) {
	var count int64
	if err := tx.Model(&models.Project{}).
		Where("organization_id = ? AND name = ?", opts.OrganizationID, p.Name).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateProject, p.Name)
	}

	code := p.Code
	if code == "" {
		generated, err := idgen.ProjectCode()
		if err != nil {
			return nil, err
		}
		code = generated
	}

	project := &models.Project{
		OrganizationID: opts.OrganizationID,
		Code:           code,
		Name:           p.Name,
		Description:    p.Description,
		StartDate:      p.Start,
		EndDate:        p.End,
		Status:         models.ProjectStatus(p.Status),
		Priority:       models.Priority(p.Priority),
		Department:     p.Department,
		Labels:         labels.ToJSON(p.Labels),
	}

	if p.Client != "" {
		client := models.Client{OrganizationID: opts.OrganizationID, Name: p.Client}
		if err := tx.Where(map[string]any{"organization_id": opts.OrganizationID, "name": p.Client}).
			FirstOrCreate(&client).Error; err != nil {
			return nil, err
		}
		project.ClientID = &client.ID
	}

	if err := tx.Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

func (i *Importer) createTasks(ctx context.Context, tx *gorm.DB, project *models.Project, tasks []plan.Task) (map[string]*models.Task, error) {
	taskByKey := make(map[string]*models.Task, len(tasks))

	for idx := range tasks {
		t := &tasks[idx]

		task := &models.Task{
			ProjectID:      project.ID,
			Title:          t.Title,
			Description:    t.Description,
			Category:       t.Category,
			Priority:       models.Priority(t.Priority),
			Status:         models.TaskToDo,
			EstimatedHours: t.Estimate,
			StartDate:      t.Start,
			DueDate:        t.Due,
		}
		if err := tx.Create(task).Error; err != nil {
			return nil, fmt.Errorf("task %s: %w", t.Key, err)
		}

		if i.scheduler != nil {
			if err := i.scheduler.RescheduleTask(ctx, tx, task); err != nil {
				return nil, fmt.Errorf("task %s reminders: %w", t.Key, err)
			}
		}

		taskByKey[t.Key] = task
	}

	return taskByKey, nil
}

func createDependencies(tx *gorm.DB, tasks []plan.Task, taskByKey map[string]*models.Task) error {
	var edges []*models.TaskDependency
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			from, ok := taskByKey[t.Key]
			if !ok {
				return fmt.Errorf("task %s missing mapping", t.Key)
			}
			to, ok := taskByKey[dep]
			if !ok {
				return fmt.Errorf("task %s dependency %s missing mapping", t.Key, dep)
			}
			edges = append(edges, &models.TaskDependency{TaskID: from.ID, DependsOnID: to.ID})
		}
	}

	if len(edges) == 0 {
		return nil
	}
	return tx.Create(&edges).Error
}

func (i *Importer) createMilestones(ctx context.Context, tx *gorm.DB, project *models.Project, milestones []plan.Milestone) ([]uint, error) {
	ids := make([]uint, 0, len(milestones))
	for _, m := range milestones {
		model := &models.Milestone{
			ProjectID:   project.ID,
			Name:        m.Name,
			Description: m.Description,
			StartDate:   m.Start,
			EndDate:     m.End,
		}
		if err := tx.Create(model).Error; err != nil {
			return nil, fmt.Errorf("milestone %s: %w", m.Name, err)
		}

		if i.scheduler != nil {
			if _, err := i.scheduler.Reschedule(ctx, tx, deadline.MilestoneSource(model)); err != nil {
				return nil, fmt.Errorf("milestone %s reminders: %w", m.Name, err)
			}
		}
		ids = append(ids, model.ID)
	}
	return ids, nil
}
