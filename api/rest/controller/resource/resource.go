// Package resource serves assignments, forecasts, skill requirements and
// the utilization analytics built on them.
package resource

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/controller/crud"
	"github.com/meridian-works/meridian/api/rest/controller/employee"
	"github.com/meridian-works/meridian/api/rest/controller/project"
	"github.com/meridian-works/meridian/api/rest/service/record"
	"github.com/meridian-works/meridian/internal/capacity"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/worker"
	"gorm.io/gorm"
)

type Controller struct {
	DB       *gorm.DB
	Capacity *capacity.Service
	Queue    *worker.Queue
}

// Assignments rejects writes that would book an employee above 100
// percent across overlapping assignments.
func (ctrl *Controller) Assignments() *crud.Resource[models.ResourceAssignment] {
	return &crud.Resource[models.ResourceAssignment]{
		DB: ctrl.DB,
		Filters: []crud.Filter{
			crud.UUIDFilter("employee", "employee_id"),
			crud.UintFilter("project", "project_id"),
		},
		Scope: record.ProjectOrganization,
		Validate: func(_ echo.Context, row *models.ResourceAssignment) error {
			if row.PlannedHoursPerWeek < 0 {
				return apierr.Invalidf("planned_hours_per_week must not be negative")
			}
			return project.NormalizeRange(&row.StartDate, &row.EndDate)
		},
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, _ *models.ResourceAssignment) error {
			if err := project.OwnProject(c, tx, row.ProjectID); err != nil {
				return err
			}
			if err := employee.OwnEmployee(c, tx, row.EmployeeID); err != nil {
				return err
			}
			return capacity.ValidateAssignment(tx, row)
		},
		Committed: ctrl.refresh,
		Deleted:   ctrl.refresh,
	}
}

func (ctrl *Controller) refresh(_ echo.Context, row *models.ResourceAssignment) {
	employeeID := row.EmployeeID
	crud.Enqueue(ctrl.Queue, "utilization_refresh", func(ctx context.Context) error {
		_, err := ctrl.Capacity.Refresh(ctx, employeeID)
		return err
	})
}

func (ctrl *Controller) Forecasts() *crud.Resource[models.ResourceForecast] {
	return &crud.Resource[models.ResourceForecast]{
		DB:  ctrl.DB,
		New: func() *models.ResourceForecast { return &models.ResourceForecast{Headcount: 1} },
		Filters: []crud.Filter{
			crud.UintFilter("project", "project_id"),
			crud.StringFilter("role", "role"),
		},
		Scope: record.ProjectOrganization,
		Validate: func(_ echo.Context, row *models.ResourceForecast) error {
			if row.Role == "" {
				return apierr.Invalidf("role is required")
			}
			if row.RequiredHoursPerWeek <= 0 {
				return apierr.Invalidf("required_hours_per_week must be positive")
			}
			if row.Headcount < 1 {
				return apierr.Invalidf("headcount must be at least 1")
			}
			return project.NormalizeRange(&row.StartDate, &row.EndDate)
		},
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, _ *models.ResourceForecast) error {
			return project.OwnProject(c, tx, row.ProjectID)
		},
	}
}

func (ctrl *Controller) SkillRequirements() *crud.Resource[models.ProjectSkillRequirement] {
	return &crud.Resource[models.ProjectSkillRequirement]{
		DB: ctrl.DB,
		New: func() *models.ProjectSkillRequirement {
			return &models.ProjectSkillRequirement{MinLevel: capacity.DefaultMinLevel}
		},
		Filters: []crud.Filter{
			crud.UintFilter("project", "project_id"),
			crud.UUIDFilter("skill", "skill_id"),
		},
		Scope: record.ProjectOrganization,
		Validate: func(_ echo.Context, row *models.ProjectSkillRequirement) error {
			if row.MinLevel < 1 || row.MinLevel > 5 {
				return apierr.Invalidf("min_level must be between 1 and 5")
			}
			row.StartDate = models.DatePtr(row.StartDate)
			row.EndDate = models.DatePtr(row.EndDate)
			if row.StartDate != nil && row.EndDate != nil && row.EndDate.Before(*row.StartDate) {
				return apierr.Invalidf("end_date must not be before start_date")
			}
			return nil
		},
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, _ *models.ProjectSkillRequirement) error {
			if err := project.OwnProject(c, tx, row.ProjectID); err != nil {
				return err
			}
			return record.Exists(tx, &models.Skill{}, row.SkillID, nil)
		},
	}
}
