package schedule

import (
	"context"
	"errors"

	"github.com/meridian-works/meridian/internal/event"
	"github.com/meridian-works/meridian/internal/models"
	"gorm.io/gorm"
)

var (
	ErrSelfDependency      = errors.New("schedule: a task cannot depend on itself")
	ErrCrossProject        = errors.New("schedule: dependencies must stay within one project")
	ErrDuplicateDependency = errors.New("schedule: dependency already exists")
)

// ValidateDependency checks that adding the edge taskID -> dependsOnID
// keeps the project graph acyclic. It must run in the transaction that
// inserts the edge.
func ValidateDependency(tx *gorm.DB, taskID, dependsOnID uint) error {
	if taskID == dependsOnID {
		return ErrSelfDependency
	}

	var tasks []models.Task
	if err := tx.Where("id IN ?", []uint{taskID, dependsOnID}).Find(&tasks).Error; err != nil {
		return err
	}
	if len(tasks) != 2 {
		return gorm.ErrRecordNotFound
	}
	if tasks[0].ProjectID != tasks[1].ProjectID {
		return ErrCrossProject
	}

	var deps []models.TaskDependency
	if err := tx.
		Where("task_id IN (?)", tx.Model(&models.Task{}).
			Select("id").
			Where("project_id = ?", tasks[0].ProjectID)).
		Find(&deps).Error; err != nil {
		return err
	}

	edges := make([]Edge, 0, len(deps))
	for _, d := range deps {
		if d.TaskID == taskID && d.DependsOnID == dependsOnID {
			return ErrDuplicateDependency
		}
		edges = append(edges, Edge{Task: d.TaskID, DependsOn: d.DependsOnID})
	}

	if Reachable(edges, dependsOnID, taskID) {
		return ErrCycle
	}

	return nil
}

// AddDependency validates and records that taskID depends on dependsOnID.
func (e *Engine) AddDependency(ctx context.Context, taskID, dependsOnID uint) (*models.TaskDependency, error) {
	dep := &models.TaskDependency{TaskID: taskID, DependsOnID: dependsOnID}

	var projectID uint
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ValidateDependency(tx, taskID, dependsOnID); err != nil {
			return err
		}
		if err := tx.Model(&models.Task{}).Select("project_id").Where("id = ?", taskID).Scan(&projectID).Error; err != nil {
			return err
		}
		return tx.Create(dep).Error
	})
	if err != nil {
		return nil, err
	}

	e.emitter.Emit(ctx, event.New(event.TypeDependencyAdded, projectID, taskID, dep))

	return dep, nil
}

// RemoveDependency deletes a dependency edge by id.
func (e *Engine) RemoveDependency(ctx context.Context, id uint) error {
	var (
		dep       models.TaskDependency
		projectID uint
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&dep, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Task{}).Select("project_id").Where("id = ?", dep.TaskID).Scan(&projectID).Error; err != nil {
			return err
		}
		return tx.Delete(&dep).Error
	})
	if err != nil {
		return err
	}

	e.emitter.Emit(ctx, event.New(event.TypeDependencyRemoved, projectID, dep.TaskID, dep))
	return nil
}

// Dependencies lists the edges of a project, or of one task when taskID
// is non-zero.
func (e *Engine) Dependencies(ctx context.Context, projectID, taskID uint) ([]models.TaskDependency, error) {
	q := e.db.WithContext(ctx).Order("id")
	if taskID != 0 {
		q = q.Where("task_id = ?", taskID)
	}
	if projectID != 0 {
		q = q.Where("task_id IN (?)", e.db.Model(&models.Task{}).Select("id").Where("project_id = ?", projectID))
	}

	var deps []models.TaskDependency
	if err := q.Find(&deps).Error; err != nil {
		return nil, err
	}
	return deps, nil
}
