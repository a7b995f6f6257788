// Package employee serves employees, skills and contracts.
package employee

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/controller/crud"
	"github.com/meridian-works/meridian/api/rest/service/record"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/leave"
	"github.com/meridian-works/meridian/internal/models"
	"gorm.io/gorm"
)

type Controller struct {
	DB    *gorm.DB
	Leave *leave.Service
}

// Employees opens zeroed leave balances for every new employee.
func (ctrl *Controller) Employees() *crud.Resource[models.Employee] {
	return &crud.Resource[models.Employee]{
		DB:  ctrl.DB,
		New: func() *models.Employee { return &models.Employee{IsActive: true} },
		ID:  crud.UUIDID,
		Filters: []crud.Filter{
			crud.StringFilter("code", "code"),
			crud.StringFilter("role", "role"),
			crud.BoolFilter("active", "is_active"),
		},
		Scope: record.Organization,
		Validate: func(_ echo.Context, row *models.Employee) error {
			if strings.TrimSpace(row.Code) == "" || strings.TrimSpace(row.Name) == "" {
				return apierr.Invalidf("code and name are required")
			}
			return nil
		},
		BeforeSave: func(c echo.Context, _ *gorm.DB, row, _ *models.Employee) error {
			if org := auth.Organization(c); org != "" {
				row.OrganizationID = org
			}
			return nil
		},
		AfterSave: func(_ echo.Context, tx *gorm.DB, row, prev *models.Employee) error {
			if prev != nil {
				return nil
			}
			return leave.InitBalances(tx, row.ID)
		},
		AfterDelete: func(_ echo.Context, tx *gorm.DB, row *models.Employee) error {
			for _, model := range []any{
				&models.EmployeeSkill{},
				&models.EmployeeContract{},
				&models.LeaveBalance{},
				&models.LeaveRequest{},
				&models.ResourceAssignment{},
				&models.UtilizationRecord{},
				&models.StandupReport{},
			} {
				if err := tx.Where("employee_id = ?", row.ID).Delete(model).Error; err != nil {
					return err
				}
			}
			return tx.Model(&models.Task{}).Where("assignee_id = ?", row.ID).Update("assignee_id", nil).Error
		},
	}
}

func (ctrl *Controller) Skills() *crud.Resource[models.Skill] {
	return &crud.Resource[models.Skill]{
		DB:      ctrl.DB,
		ID:      crud.UUIDID,
		Filters: []crud.Filter{crud.StringFilter("name", "name")},
		Validate: func(_ echo.Context, row *models.Skill) error {
			if strings.TrimSpace(row.Name) == "" {
				return apierr.Invalidf("name is required")
			}
			return nil
		},
		AfterDelete: func(_ echo.Context, tx *gorm.DB, row *models.Skill) error {
			if err := tx.Where("skill_id = ?", row.ID).Delete(&models.EmployeeSkill{}).Error; err != nil {
				return err
			}
			return tx.Where("skill_id = ?", row.ID).Delete(&models.ProjectSkillRequirement{}).Error
		},
	}
}

// EmployeeSkills records proficiency levels from 1 to 5.
func (ctrl *Controller) EmployeeSkills() *crud.Resource[models.EmployeeSkill] {
	return &crud.Resource[models.EmployeeSkill]{
		DB: ctrl.DB,
		Filters: []crud.Filter{
			crud.UUIDFilter("employee", "employee_id"),
			crud.UUIDFilter("skill", "skill_id"),
		},
		Scope: record.EmployeeOrganization,
		Validate: func(_ echo.Context, row *models.EmployeeSkill) error {
			if row.Level < 1 || row.Level > 5 {
				return apierr.Invalidf("level must be between 1 and 5")
			}
			return nil
		},
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, _ *models.EmployeeSkill) error {
			if err := OwnEmployee(c, tx, row.EmployeeID); err != nil {
				return err
			}
			return record.Exists(tx, &models.Skill{}, row.SkillID, nil)
		},
	}
}

// OwnEmployee fails with gorm.ErrRecordNotFound unless the employee
// exists and is visible to the caller.
func OwnEmployee(c echo.Context, tx *gorm.DB, id uuid.UUID) error {
	return record.Exists(tx, &models.Employee{}, id, record.Organization(auth.Organization(c)))
}

func (ctrl *Controller) Contracts() *crud.Resource[models.EmployeeContract] {
	return &crud.Resource[models.EmployeeContract]{
		DB:  ctrl.DB,
		New: func() *models.EmployeeContract { return &models.EmployeeContract{Status: models.ContractActive} },
		Filters: []crud.Filter{
			crud.UUIDFilter("employee", "employee_id"),
			crud.StringFilter("status", "status"),
		},
		Scope: record.EmployeeOrganization,
		Validate: func(_ echo.Context, row *models.EmployeeContract) error {
			if row.WeeklyHours <= 0 || row.WeeklyHours > 168 {
				return apierr.Invalidf("weekly_hours must be in (0, 168]")
			}
			if row.Status != models.ContractActive && row.Status != models.ContractExpired {
				return apierr.Invalidf("invalid status %q", row.Status)
			}
			if row.StartDate.IsZero() {
				return apierr.Invalidf("start_date is required")
			}
			row.StartDate = models.Date(row.StartDate)
			row.EndDate = models.DatePtr(row.EndDate)
			if row.EndDate != nil && row.EndDate.Before(row.StartDate) {
				return apierr.Invalidf("end_date must not be before start_date")
			}
			return nil
		},
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, _ *models.EmployeeContract) error {
			return OwnEmployee(c, tx, row.EmployeeID)
		},
	}
}

// Standups records daily standups, one per employee and day. The date
// defaults to today.
func (ctrl *Controller) Standups() *crud.Resource[models.StandupReport] {
	return &crud.Resource[models.StandupReport]{
		DB: ctrl.DB,
		Filters: []crud.Filter{
			crud.UUIDFilter("employee", "employee_id"),
			{Param: "date", Column: "date", Parse: func(raw string) (any, error) {
				t, err := time.Parse(time.DateOnly, raw)
				return models.Date(t), err
			}},
		},
		Scope: record.EmployeeOrganization,
		Validate: func(_ echo.Context, row *models.StandupReport) error {
			if strings.TrimSpace(row.Yesterday) == "" || strings.TrimSpace(row.Today) == "" {
				return apierr.Invalidf("yesterday and today are required")
			}
			if row.Date.IsZero() {
				row.Date = time.Now().UTC()
			}
			row.Date = models.Date(row.Date)
			return nil
		},
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, _ *models.StandupReport) error {
			return OwnEmployee(c, tx, row.EmployeeID)
		},
	}
}

// Balances lists an employee's leave balances.
func (ctrl *Controller) Balances(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
	}

	if err := OwnEmployee(c, ctrl.DB.WithContext(c.Request().Context()), id); err != nil {
		return apierr.From(err)
	}

	balances, err := ctrl.Leave.Balances(c.Request().Context(), id)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, balances)
}
