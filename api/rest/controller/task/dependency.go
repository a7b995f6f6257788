package task

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/controller/crud"
	"github.com/meridian-works/meridian/api/rest/service/record"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/models"
)

type DependencyRequest struct {
	TaskID      uint `json:"task_id"`
	DependsOnID uint `json:"depends_on_id"`
}

// ListDependencies lists the edges of a project or a task. Callers bound
// to an organization must name one of them.
func (ctrl *Controller) ListDependencies(c echo.Context) error {
	projectID, err := crud.QueryUint(c, "project", false)
	if err != nil {
		return apierr.From(err)
	}
	taskID, err := crud.QueryUint(c, "task", false)
	if err != nil {
		return apierr.From(err)
	}

	if org := auth.Organization(c); org != "" {
		switch {
		case projectID != 0:
			err = record.Exists(ctrl.DB, &models.Project{}, projectID, record.Organization(org))
		case taskID != 0:
			err = record.Exists(ctrl.DB, &models.Task{}, taskID, record.ProjectOrganization(org))
		default:
			err = apierr.Invalidf("project or task is required")
		}
		if err != nil {
			return apierr.From(err)
		}
	}

	deps, err := ctrl.Engine.Dependencies(c.Request().Context(), projectID, taskID)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, deps)
}

// PostDependency records that task_id cannot finish before
// depends_on_id. Edges that would close a cycle are rejected with 409.
func (ctrl *Controller) PostDependency(c echo.Context) error {
	var req DependencyRequest
	if err := crud.Decode(c, &req); err != nil {
		return apierr.From(err)
	}
	if req.TaskID == 0 || req.DependsOnID == 0 {
		return apierr.From(apierr.Invalidf("task_id and depends_on_id are required"))
	}

	if err := ctrl.ownTask(c, req.TaskID); err != nil {
		return apierr.From(err)
	}

	dep, err := ctrl.Engine.AddDependency(c.Request().Context(), req.TaskID, req.DependsOnID)
	if err != nil {
		return apierr.From(err)
	}

	ctrl.invalidateTask(c, req.TaskID)

	return c.JSON(http.StatusCreated, dep)
}

func (ctrl *Controller) DeleteDependency(c echo.Context) error {
	id, err := crud.ParamUint(c, "id")
	if err != nil {
		return apierr.From(err)
	}

	var dep models.TaskDependency
	if err := ctrl.DB.WithContext(c.Request().Context()).Where("id = ?", id).First(&dep).Error; err != nil {
		return apierr.From(err)
	}
	if err := ctrl.ownTask(c, dep.TaskID); err != nil {
		return apierr.From(err)
	}

	if err := ctrl.Engine.RemoveDependency(c.Request().Context(), dep.ID); err != nil {
		return apierr.From(err)
	}

	ctrl.invalidateTask(c, dep.TaskID)

	return c.NoContent(http.StatusNoContent)
}

func (ctrl *Controller) ownTask(c echo.Context, taskID uint) error {
	return record.Exists(ctrl.DB.WithContext(c.Request().Context()), &models.Task{}, taskID,
		record.ProjectOrganization(auth.Organization(c)))
}

func (ctrl *Controller) invalidateTask(c echo.Context, taskID uint) {
	var projectID uint
	if err := ctrl.DB.WithContext(c.Request().Context()).Model(&models.Task{}).
		Select("project_id").Where("id = ?", taskID).Scan(&projectID).Error; err == nil {
		ctrl.invalidate(projectID)
	}
}
