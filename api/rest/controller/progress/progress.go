// Package progress serves burndown, Gantt and metrics views of a
// project and its generated reports.
package progress

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/controller/crud"
	"github.com/meridian-works/meridian/api/rest/controller/project"
	"github.com/meridian-works/meridian/api/rest/service/record"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/progress"
	"github.com/meridian-works/meridian/internal/worker"
	"gorm.io/gorm"
)

// MaxBurndownDays bounds the burndown window.
const MaxBurndownDays = 365

type Controller struct {
	DB       *gorm.DB
	Progress *progress.Service
	Reporter *progress.Reporter
	Queue    *worker.Queue
}

type BurndownResponse struct {
	ProjectID uint             `json:"project_id"`
	Days      int              `json:"days"`
	Points    []progress.Point `json:"points"`
}

func (ctrl *Controller) Burndown(c echo.Context) error {
	projectID, err := ctrl.project(c)
	if err != nil {
		return apierr.From(err)
	}
	days, err := crud.QueryInt(c, "days", progress.DefaultBurndownDays)
	if err != nil {
		return apierr.From(err)
	}
	if days < 1 || days > MaxBurndownDays {
		return apierr.From(apierr.Invalidf("days must be between 1 and %d", MaxBurndownDays))
	}

	points, err := ctrl.Progress.Burndown(c.Request().Context(), projectID, days)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, BurndownResponse{ProjectID: projectID, Days: days, Points: points})
}

func (ctrl *Controller) Gantt(c echo.Context) error {
	projectID, err := ctrl.project(c)
	if err != nil {
		return apierr.From(err)
	}

	gantt, err := ctrl.Progress.Gantt(c.Request().Context(), projectID)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, gantt)
}

func (ctrl *Controller) Metrics(c echo.Context) error {
	projectID, err := ctrl.project(c)
	if err != nil {
		return apierr.From(err)
	}

	m, err := ctrl.Progress.Metrics(c.Request().Context(), projectID)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, m)
}

// ListReports lists generated reports, newest first.
func (ctrl *Controller) ListReports(c echo.Context) error {
	req, err := crud.ParseListRequest(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
	}

	projectID, err := crud.QueryUint(c, "project", false)
	if err != nil {
		return apierr.From(err)
	}
	if projectID != 0 {
		req.Filters = map[string]any{"project_id": projectID}
	}
	if len(req.OrderBy) == 0 {
		req.OrderBy = []string{"generated_at desc", "id desc"}
	}
	req.Scopes = append(req.Scopes, record.ProjectOrganization(auth.Organization(c)))

	reports, err := record.New[models.ProgressReport](c.Request().Context(), ctrl.DB).List(req)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, reports)
}

type ReportRequest struct {
	ProjectID uint `json:"project_id"`
}

type ReportResponse struct {
	Status    string `json:"status"`
	ProjectID uint   `json:"project_id"`
}

// PostReport queues report generation and answers 202 straight away.
func (ctrl *Controller) PostReport(c echo.Context) error {
	var req ReportRequest
	if err := crud.Decode(c, &req); err != nil {
		return apierr.From(err)
	}
	if err := project.OwnProject(c, ctrl.DB.WithContext(c.Request().Context()), req.ProjectID); err != nil {
		return apierr.From(err)
	}

	generatedBy := auth.Anonymous.Subject
	if claims := auth.FromContext(c); claims != nil {
		generatedBy = claims.Subject
	}

	projectID := req.ProjectID
	crud.Enqueue(ctrl.Queue, "progress_report", func(ctx context.Context) error {
		_, err := ctrl.Reporter.Generate(ctx, projectID, generatedBy)
		return err
	})

	return c.JSON(http.StatusAccepted, ReportResponse{Status: "queued", ProjectID: projectID})
}

func (ctrl *Controller) project(c echo.Context) (uint, error) {
	projectID, err := crud.QueryUint(c, "project", true)
	if err != nil {
		return 0, err
	}
	return projectID, project.OwnProject(c, ctrl.DB.WithContext(c.Request().Context()), projectID)
}
