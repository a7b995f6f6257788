package project

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/controller/crud"
	"github.com/meridian-works/meridian/api/rest/service/record"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/deadline"
	"github.com/meridian-works/meridian/internal/models"
	"gorm.io/gorm"
)

// Milestones keeps milestone reminders in step with their end dates.
func Milestones(conn *gorm.DB, scheduler *deadline.Scheduler) *crud.Resource[models.Milestone] {
	return &crud.Resource[models.Milestone]{
		DB: conn,
		Filters: []crud.Filter{
			crud.UintFilter("project", "project_id"),
			crud.BoolFilter("completed", "is_completed"),
		},
		Scope: record.ProjectOrganization,
		Validate: func(_ echo.Context, row *models.Milestone) error {
			if strings.TrimSpace(row.Name) == "" {
				return apierr.Invalidf("name is required")
			}
			return NormalizeRange(&row.StartDate, &row.EndDate)
		},
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, prev *models.Milestone) error {
			if row.IsCompleted && row.CompletedAt == nil {
				now := tx.NowFunc()
				row.CompletedAt = &now
			}
			if !row.IsCompleted {
				row.CompletedAt = nil
			}
			return ownProject(c, tx, row.ProjectID, prev != nil && prev.ProjectID == row.ProjectID)
		},
		AfterSave: func(c echo.Context, tx *gorm.DB, row, prev *models.Milestone) error {
			if scheduler == nil || (prev != nil && prev.EndDate.Equal(row.EndDate) && prev.ProjectID == row.ProjectID) {
				return nil
			}
			_, err := scheduler.Reschedule(c.Request().Context(), tx, deadline.MilestoneSource(row))
			return err
		},
		Committed: func(echo.Context, *models.Milestone) { trigger(scheduler) },
		AfterDelete: func(_ echo.Context, tx *gorm.DB, row *models.Milestone) error {
			return tx.Where("milestone_id = ?", row.ID).Delete(&models.DeadlineNotification{}).Error
		},
	}
}

// Sprints keeps sprint reminders in step with their end dates.
func Sprints(conn *gorm.DB, scheduler *deadline.Scheduler) *crud.Resource[models.Sprint] {
	return &crud.Resource[models.Sprint]{
		DB:      conn,
		Filters: []crud.Filter{crud.UintFilter("project", "project_id")},
		Scope:   record.ProjectOrganization,
		Validate: func(_ echo.Context, row *models.Sprint) error {
			if strings.TrimSpace(row.Name) == "" {
				return apierr.Invalidf("name is required")
			}
			return NormalizeRange(&row.StartDate, &row.EndDate)
		},
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, prev *models.Sprint) error {
			return ownProject(c, tx, row.ProjectID, prev != nil && prev.ProjectID == row.ProjectID)
		},
		AfterSave: func(c echo.Context, tx *gorm.DB, row, prev *models.Sprint) error {
			if scheduler == nil || (prev != nil && prev.EndDate.Equal(row.EndDate) && prev.ProjectID == row.ProjectID) {
				return nil
			}
			_, err := scheduler.Reschedule(c.Request().Context(), tx, deadline.SprintSource(row))
			return err
		},
		Committed: func(echo.Context, *models.Sprint) { trigger(scheduler) },
		AfterDelete: func(_ echo.Context, tx *gorm.DB, row *models.Sprint) error {
			if err := tx.Model(&models.Task{}).Where("sprint_id = ?", row.ID).Update("sprint_id", nil).Error; err != nil {
				return err
			}
			return tx.Where("sprint_id = ?", row.ID).Delete(&models.DeadlineNotification{}).Error
		},
	}
}

// OwnProject fails with gorm.ErrRecordNotFound unless the project exists
// and is visible to the caller.
func OwnProject(c echo.Context, tx *gorm.DB, projectID uint) error {
	return ownProject(c, tx, projectID, false)
}

func ownProject(c echo.Context, tx *gorm.DB, projectID uint, unchanged bool) error {
	if unchanged {
		return nil
	}
	if projectID == 0 {
		return apierr.Invalidf("project_id is required")
	}
	return record.Exists(tx, &models.Project{}, projectID, record.Organization(auth.Organization(c)))
}

// NormalizeRange truncates both dates to midnight UTC and checks their
// order.
func NormalizeRange(start, end *time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apierr.Invalidf("start_date and end_date are required")
	}
	*start = models.Date(*start)
	*end = models.Date(*end)
	if end.Before(*start) {
		return apierr.Invalidf("end_date must not be before start_date")
	}
	return nil
}

func trigger(scheduler *deadline.Scheduler) {
	if scheduler != nil {
		scheduler.Trigger()
	}
}
