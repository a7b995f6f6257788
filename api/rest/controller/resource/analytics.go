package resource

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/controller/crud"
	"github.com/meridian-works/meridian/api/rest/controller/employee"
	"github.com/meridian-works/meridian/api/rest/controller/project"
	"github.com/meridian-works/meridian/api/rest/service/record"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/capacity"
	"github.com/meridian-works/meridian/internal/models"
)

type UtilizationResponse struct {
	capacity.Utilization
	Start     string `json:"start"`
	End       string `json:"end"`
	ProjectID uint   `json:"project_id,omitempty"`
}

// Utilization reports logged hours against capacity for one employee.
func (ctrl *Controller) Utilization(c echo.Context) error {
	ctx := c.Request().Context()

	employeeID, err := crud.QueryUUID(c, "employee")
	if err != nil {
		return apierr.From(err)
	}
	start, end, err := crud.QueryRange(c)
	if err != nil {
		return apierr.From(err)
	}
	projectID, err := crud.QueryUint(c, "project", false)
	if err != nil {
		return apierr.From(err)
	}

	if err := employee.OwnEmployee(c, ctrl.DB.WithContext(ctx), employeeID); err != nil {
		return apierr.From(err)
	}

	u, err := ctrl.Capacity.Utilization(ctx, employeeID, start, end, projectID)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, UtilizationResponse{
		Utilization: u,
		Start:       start.Format(time.DateOnly),
		End:         end.Format(time.DateOnly),
		ProjectID:   projectID,
	})
}

// Bands sorts the caller's active employees into over, under and optimal
// utilization.
func (ctrl *Controller) Bands(c echo.Context) error {
	ctx := c.Request().Context()

	start, end, err := crud.QueryRange(c)
	if err != nil {
		return apierr.From(err)
	}
	over, err := crud.QueryFloat(c, "over", 100)
	if err != nil {
		return apierr.From(err)
	}
	under, err := crud.QueryFloat(c, "under", 60)
	if err != nil {
		return apierr.From(err)
	}
	if under > over {
		return apierr.From(apierr.Invalidf("under must not exceed over"))
	}

	q := ctrl.DB.WithContext(ctx).Where("is_active = ?", true).Order("code")
	if scope := record.Organization(auth.Organization(c)); scope != nil {
		q = scope(q)
	}

	var employees []models.Employee
	if err := q.Find(&employees).Error; err != nil {
		return apierr.From(err)
	}

	bands, err := ctrl.Capacity.Bands(ctx, employees, start, end, over, under)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, bands)
}

// Recommend ranks candidates for a project's skill needs.
func (ctrl *Controller) Recommend(c echo.Context) error {
	ctx := c.Request().Context()

	var req capacity.RecommendRequest
	if err := crud.Decode(c, &req); err != nil {
		return apierr.From(err)
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return apierr.From(apierr.Invalidf("start and end are required"))
	}
	if req.Limit < 0 {
		return apierr.From(apierr.Invalidf("limit must not be negative"))
	}
	if req.ProjectID == 0 && len(req.Requirements) == 0 {
		return apierr.From(apierr.Invalidf("project_id or requirements are required"))
	}

	if req.ProjectID != 0 {
		if err := project.OwnProject(c, ctrl.DB.WithContext(ctx), req.ProjectID); err != nil {
			return apierr.From(err)
		}
	}
	req.OrganizationID = auth.Organization(c)

	recs, err := ctrl.Capacity.Recommend(ctx, req)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, recs)
}

// TimeSplit breaks an employee's logged hours down by project.
func (ctrl *Controller) TimeSplit(c echo.Context) error {
	ctx := c.Request().Context()

	employeeID, err := crud.QueryUUID(c, "employee")
	if err != nil {
		return apierr.From(err)
	}
	start, end, err := crud.QueryRange(c)
	if err != nil {
		return apierr.From(err)
	}

	if err := employee.OwnEmployee(c, ctrl.DB.WithContext(ctx), employeeID); err != nil {
		return apierr.From(err)
	}

	split, err := ctrl.Capacity.ProjectTimeSplit(ctx, employeeID, start, end)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, split)
}

// ForecastGaps compares forecast demand with planned assignments.
func (ctrl *Controller) ForecastGaps(c echo.Context) error {
	ctx := c.Request().Context()

	projectID, err := crud.QueryUint(c, "project", true)
	if err != nil {
		return apierr.From(err)
	}
	start, end, err := crud.QueryRange(c)
	if err != nil {
		return apierr.From(err)
	}

	if err := project.OwnProject(c, ctrl.DB.WithContext(ctx), projectID); err != nil {
		return apierr.From(err)
	}

	gaps, err := ctrl.Capacity.ForecastGaps(ctx, projectID, start, end)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, gaps)
}
