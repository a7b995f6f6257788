// Package task serves tasks, their dependencies and time logs.
package task

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/controller/crud"
	"github.com/meridian-works/meridian/api/rest/controller/project"
	"github.com/meridian-works/meridian/api/rest/service/record"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/capacity"
	"github.com/meridian-works/meridian/internal/deadline"
	"github.com/meridian-works/meridian/internal/event"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/progress"
	"github.com/meridian-works/meridian/internal/schedule"
	"github.com/meridian-works/meridian/internal/worker"
	"gorm.io/gorm"
)

type Controller struct {
	DB        *gorm.DB
	Engine    *schedule.Engine
	Scheduler *deadline.Scheduler
	Progress  *progress.Service
	Capacity  *capacity.Service
	Queue     *worker.Queue
	Emitter   *event.Emitter
}

func (ctrl *Controller) Tasks() *crud.Resource[models.Task] {
	return &crud.Resource[models.Task]{
		DB: ctrl.DB,
		New: func() *models.Task {
			return &models.Task{Status: models.TaskToDo, Priority: models.PriorityMedium}
		},
		Filters: []crud.Filter{
			crud.UintFilter("project", "project_id"),
			crud.UintFilter("sprint", "sprint_id"),
			crud.UUIDFilter("assignee", "assignee_id"),
			crud.StringFilter("status", "status"),
			crud.StringFilter("priority", "priority"),
		},
		Scope:    record.ProjectOrganization,
		Validate: validate,
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, prev *models.Task) error {
			if prev != nil && prev.ProjectID != row.ProjectID {
				return apierr.Invalidf("tasks cannot move between projects")
			}
			if prev == nil {
				if err := project.OwnProject(c, tx, row.ProjectID); err != nil {
					return err
				}
			}
			if row.SprintID != nil {
				var sprint models.Sprint
				if err := tx.First(&sprint, *row.SprintID).Error; err != nil {
					return err
				}
				if sprint.ProjectID != row.ProjectID {
					return apierr.Invalidf("sprint %d belongs to another project", sprint.ID)
				}
			}
			if row.AssigneeID != nil {
				return record.Exists(tx, &models.Employee{}, *row.AssigneeID, record.Organization(auth.Organization(c)))
			}
			return nil
		},
		AfterSave: func(c echo.Context, tx *gorm.DB, row, prev *models.Task) error {
			if ctrl.Scheduler == nil || (prev != nil && prev.DueDate.Equal(row.DueDate)) {
				return nil
			}
			return ctrl.Scheduler.RescheduleTask(c.Request().Context(), tx, row)
		},
		Committed: func(c echo.Context, row *models.Task) {
			if ctrl.Scheduler != nil {
				ctrl.Scheduler.Trigger()
			}
			ctrl.invalidate(row.ProjectID)
			ctrl.Emitter.Emit(c.Request().Context(), event.New(event.TypeTaskUpdated, row.ProjectID, row.ID, row))
		},
		AfterDelete: func(_ echo.Context, tx *gorm.DB, row *models.Task) error {
			if err := tx.Where("task_id = ? OR depends_on_id = ?", row.ID, row.ID).
				Delete(&models.TaskDependency{}).Error; err != nil {
				return err
			}
			if err := tx.Where("task_id = ?", row.ID).Delete(&models.TimeLog{}).Error; err != nil {
				return err
			}
			if err := tx.Where("task_id = ?", row.ID).Delete(&models.DeadlineNotification{}).Error; err != nil {
				return err
			}
			if err := tx.Where("task_id = ?", row.ID).Delete(&models.EscalationLog{}).Error; err != nil {
				return err
			}
			ctrl.invalidate(row.ProjectID)
			return nil
		},
	}
}

func validate(_ echo.Context, row *models.Task) error {
	if strings.TrimSpace(row.Title) == "" {
		return apierr.Invalidf("title is required")
	}
	if !row.Status.Valid() {
		return apierr.Invalidf("invalid status %q", row.Status)
	}
	if !row.Priority.Valid() {
		return apierr.Invalidf("invalid priority %q", row.Priority)
	}
	if row.EstimatedHours != nil && *row.EstimatedHours < 0 {
		return apierr.Invalidf("estimated_hours must not be negative")
	}
	if row.DueDate.IsZero() {
		return apierr.Invalidf("due_date is required")
	}

	row.DueDate = models.Date(row.DueDate)
	row.StartDate = models.DatePtr(row.StartDate)
	if row.StartDate != nil && row.StartDate.After(row.DueDate) {
		return schedule.ErrInvalidRange
	}
	return nil
}

func (ctrl *Controller) TimeLogs() *crud.Resource[models.TimeLog] {
	return &crud.Resource[models.TimeLog]{
		DB: ctrl.DB,
		Filters: []crud.Filter{
			crud.UintFilter("task", "task_id"),
			crud.UUIDFilter("employee", "employee_id"),
		},
		Scope: record.TaskOrganization,
		Validate: func(_ echo.Context, row *models.TimeLog) error {
			if row.Hours <= 0 || row.Hours > 24 {
				return apierr.Invalidf("hours must be in (0, 24]")
			}
			if row.Date.IsZero() {
				return apierr.Invalidf("date is required")
			}
			row.Date = models.Date(row.Date)
			return nil
		},
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, _ *models.TimeLog) error {
			org := auth.Organization(c)
			if err := record.Exists(tx, &models.Task{}, row.TaskID, record.ProjectOrganization(org)); err != nil {
				return err
			}
			return record.Exists(tx, &models.Employee{}, row.EmployeeID, record.Organization(org))
		},
		Committed: ctrl.logged,
		Deleted:   ctrl.logged,
	}
}

// logged drops the cached burndown of the log's project and refreshes
// the employee's utilization.
func (ctrl *Controller) logged(c echo.Context, row *models.TimeLog) {
	ctrl.invalidateTask(c, row.TaskID)

	if ctrl.Capacity == nil {
		return
	}
	employeeID := row.EmployeeID
	crud.Enqueue(ctrl.Queue, "utilization_refresh", func(ctx context.Context) error {
		_, err := ctrl.Capacity.Refresh(ctx, employeeID)
		return err
	})
}

func (ctrl *Controller) invalidate(projectID uint) {
	if ctrl.Progress != nil {
		ctrl.Progress.Invalidate(projectID)
	}
}
