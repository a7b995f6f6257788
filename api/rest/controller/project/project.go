// Package project serves clients, projects, milestones and sprints.
package project

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/controller/crud"
	"github.com/meridian-works/meridian/api/rest/service/record"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/pkg/idgen"
	"gorm.io/gorm"
)

func Clients(conn *gorm.DB) *crud.Resource[models.Client] {
	return &crud.Resource[models.Client]{
		DB:      conn,
		Filters: []crud.Filter{crud.StringFilter("name", "name")},
		Scope:   record.Organization,
		Validate: func(_ echo.Context, row *models.Client) error {
			if strings.TrimSpace(row.Name) == "" {
				return apierr.Invalidf("name is required")
			}
			return nil
		},
		BeforeSave: func(c echo.Context, _ *gorm.DB, row, _ *models.Client) error {
			row.OrganizationID = organization(c, row.OrganizationID)
			return nil
		},
	}
}

func Projects(conn *gorm.DB) *crud.Resource[models.Project] {
	return &crud.Resource[models.Project]{
		DB: conn,
		New: func() *models.Project {
			return &models.Project{Status: models.ProjectPlanning, Priority: models.PriorityMedium}
		},
		Filters: []crud.Filter{
			crud.StringFilter("status", "status"),
			crud.StringFilter("priority", "priority"),
			crud.StringFilter("department", "department"),
			crud.StringFilter("code", "code"),
			crud.UintFilter("client", "client_id"),
		},
		Scope:    record.Organization,
		Validate: validateProject,
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, _ *models.Project) error {
			row.OrganizationID = organization(c, row.OrganizationID)

			if row.Code == "" {
				code, err := idgen.ProjectCode()
				if err != nil {
					return err
				}
				row.Code = code
			}

			if row.ClientID != nil {
				return record.Exists(tx, &models.Client{}, *row.ClientID, record.Organization(row.OrganizationID))
			}
			return nil
		},
		AfterDelete: func(_ echo.Context, tx *gorm.DB, row *models.Project) error {
			return purge(tx, row.ID)
		},
	}
}

func validateProject(_ echo.Context, row *models.Project) error {
	if strings.TrimSpace(row.Name) == "" {
		return apierr.Invalidf("name is required")
	}
	if !row.Status.Valid() {
		return apierr.Invalidf("invalid status %q", row.Status)
	}
	if !row.Priority.Valid() {
		return apierr.Invalidf("invalid priority %q", row.Priority)
	}
	return NormalizeRange(&row.StartDate, &row.EndDate)
}

// organization resolves the owner of a written row. Callers bound to an
// organization always write into it.
func organization(c echo.Context, requested string) string {
	if org := auth.Organization(c); org != "" {
		return org
	}
	return requested
}

// purge removes everything that belongs to a project.
func purge(tx *gorm.DB, projectID uint) error {
	tasks := tx.Session(&gorm.Session{NewDB: true}).
		Model(&models.Task{}).Select("id").Where("project_id = ?", projectID)

	steps := []struct {
		model any
		query string
		args  []any
	}{
		{&models.TaskDependency{}, "task_id IN (?) OR depends_on_id IN (?)", []any{tasks, tasks}},
		{&models.TimeLog{}, "task_id IN (?)", []any{tasks}},
		{&models.DeadlineNotification{}, "project_id = ?", []any{projectID}},
		{&models.EscalationLog{}, "project_id = ?", []any{projectID}},
		{&models.Task{}, "project_id = ?", []any{projectID}},
		{&models.Milestone{}, "project_id = ?", []any{projectID}},
		{&models.Sprint{}, "project_id = ?", []any{projectID}},
		{&models.ResourceAssignment{}, "project_id = ?", []any{projectID}},
		{&models.ResourceForecast{}, "project_id = ?", []any{projectID}},
		{&models.ProjectSkillRequirement{}, "project_id = ?", []any{projectID}},
		{&models.ProgressReport{}, "project_id = ?", []any{projectID}},
	}

	for _, step := range steps {
		if err := tx.Where(step.query, step.args...).Delete(step.model).Error; err != nil {
			return err
		}
	}
	return nil
}
