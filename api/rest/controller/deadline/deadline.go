// Package deadline serves reminders, escalations and the critical-path
// analysis of project schedules.
package deadline

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/controller/crud"
	"github.com/meridian-works/meridian/api/rest/controller/project"
	"github.com/meridian-works/meridian/api/rest/service/record"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/deadline"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/progress"
	"github.com/meridian-works/meridian/internal/schedule"
	"gorm.io/gorm"
)

type Controller struct {
	DB        *gorm.DB
	Engine    *schedule.Engine
	Scheduler *deadline.Scheduler
	Progress  *progress.Service
}

// Notifications manages reminders directly. The project is taken from
// the referenced task, milestone or sprint.
func (ctrl *Controller) Notifications() *crud.Resource[models.DeadlineNotification] {
	return &crud.Resource[models.DeadlineNotification]{
		DB: ctrl.DB,
		Filters: []crud.Filter{
			crud.UintFilter("project", "project_id"),
			crud.UintFilter("task", "task_id"),
			crud.UintFilter("milestone", "milestone_id"),
			crud.UintFilter("sprint", "sprint_id"),
			crud.BoolFilter("sent", "sent"),
		},
		Scope: record.ProjectOrganization,
		Validate: func(_ echo.Context, row *models.DeadlineNotification) error {
			if row.SourceCount() != 1 {
				return deadline.ErrInvalidSource
			}
			if row.NotifyAt.IsZero() {
				return apierr.Invalidf("notify_at is required")
			}
			row.NotifyAt = row.NotifyAt.UTC()
			return nil
		},
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, _ *models.DeadlineNotification) error {
			projectID, err := sourceProject(tx, row)
			if err != nil {
				return err
			}
			row.ProjectID = projectID
			return project.OwnProject(c, tx, projectID)
		},
		Committed: func(echo.Context, *models.DeadlineNotification) {
			if ctrl.Scheduler != nil {
				ctrl.Scheduler.Trigger()
			}
		},
	}
}

func sourceProject(tx *gorm.DB, n *models.DeadlineNotification) (uint, error) {
	var (
		model any
		id    uint
	)
	switch {
	case n.TaskID != nil:
		model, id = &models.Task{}, *n.TaskID
	case n.MilestoneID != nil:
		model, id = &models.Milestone{}, *n.MilestoneID
	default:
		model, id = &models.Sprint{}, *n.SprintID
	}

	var projectIDs []uint
	if err := tx.Model(model).Where("id = ?", id).Pluck("project_id", &projectIDs).Error; err != nil {
		return 0, err
	}
	if len(projectIDs) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return projectIDs[0], nil
}

// Escalations lists escalation logs, newest first.
func (ctrl *Controller) Escalations(c echo.Context) error {
	req, err := crud.ParseListRequest(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
	}

	projectID, err := crud.QueryUint(c, "project", false)
	if err != nil {
		return apierr.From(err)
	}
	taskID, err := crud.QueryUint(c, "task", false)
	if err != nil {
		return apierr.From(err)
	}

	req.Filters = map[string]any{}
	if projectID != 0 {
		req.Filters["project_id"] = projectID
	}
	if taskID != 0 {
		req.Filters["task_id"] = taskID
	}
	if len(req.OrderBy) == 0 {
		req.OrderBy = []string{"created_at desc", "id desc"}
	}
	req.Scopes = append(req.Scopes, record.ProjectOrganization(auth.Organization(c)))

	logs, err := record.New[models.EscalationLog](c.Request().Context(), ctrl.DB).List(req)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, logs)
}

type RunResponse struct {
	Status string `json:"status"`
}

// RunNow queues a sweep of due reminders and overdue work.
func (ctrl *Controller) RunNow(c echo.Context) error {
	ctrl.Scheduler.Trigger()
	return c.JSON(http.StatusAccepted, RunResponse{Status: "queued"})
}

type CriticalPathResponse struct {
	ProjectID uint `json:"project_id"`
	schedule.Result
}

func (ctrl *Controller) CriticalPath(c echo.Context) error {
	ctx := c.Request().Context()

	projectID, err := crud.QueryUint(c, "project", true)
	if err != nil {
		return apierr.From(err)
	}
	if err := project.OwnProject(c, ctrl.DB.WithContext(ctx), projectID); err != nil {
		return apierr.From(err)
	}

	res, err := ctrl.Engine.CriticalPath(ctx, projectID, nil)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, CriticalPathResponse{ProjectID: projectID, Result: res})
}

// Impact simulates delaying a task by delay_days working days.
func (ctrl *Controller) Impact(c echo.Context) error {
	ctx := c.Request().Context()

	taskID, err := crud.QueryUint(c, "task", true)
	if err != nil {
		return apierr.From(err)
	}
	delay, err := crud.QueryInt(c, "delay_days", 0)
	if err != nil {
		return apierr.From(err)
	}
	if err := ctrl.ownTask(c, taskID); err != nil {
		return apierr.From(err)
	}

	impact, err := ctrl.Engine.Impact(ctx, taskID, delay)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, impact)
}

// Adjust moves a task's dates and pushes the start of its direct
// dependents.
func (ctrl *Controller) Adjust(c echo.Context) error {
	ctx := c.Request().Context()

	var req schedule.AdjustRequest
	if err := crud.Decode(c, &req); err != nil {
		return apierr.From(err)
	}
	if req.TaskID == 0 {
		return apierr.From(apierr.Invalidf("task_id is required"))
	}
	if req.StartDate == nil && req.DueDate == nil {
		return apierr.From(apierr.Invalidf("start_date or due_date is required"))
	}
	if err := ctrl.ownTask(c, req.TaskID); err != nil {
		return apierr.From(err)
	}

	out, err := ctrl.Engine.AdjustTimeline(ctx, req)
	if err != nil {
		return apierr.From(err)
	}

	if ctrl.Scheduler != nil && req.DueDate != nil {
		ctrl.Scheduler.Trigger()
	}
	if ctrl.Progress != nil {
		var projectID uint
		if err := ctrl.DB.WithContext(ctx).Model(&models.Task{}).
			Select("project_id").Where("id = ?", req.TaskID).Scan(&projectID).Error; err == nil {
			ctrl.Progress.Invalidate(projectID)
		}
	}

	return c.JSON(http.StatusOK, out)
}

func (ctrl *Controller) ownTask(c echo.Context, taskID uint) error {
	return record.Exists(ctrl.DB.WithContext(c.Request().Context()), &models.Task{}, taskID,
		record.ProjectOrganization(auth.Organization(c)))
}
