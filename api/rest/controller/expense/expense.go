// Package expense serves expense categories, budgets, expenses with their
// approval workflow and the category budget report.
package expense

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/controller/crud"
	"github.com/meridian-works/meridian/api/rest/controller/project"
	"github.com/meridian-works/meridian/api/rest/service/record"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/expense"
	"github.com/meridian-works/meridian/internal/models"
	"gorm.io/gorm"
)

type Controller struct {
	DB      *gorm.DB
	Expense *expense.Service
}

// Categories removes a category's budgets and reports with it. Its
// expenses are kept, uncategorized.
func (ctrl *Controller) Categories() *crud.Resource[models.ExpenseCategory] {
	return &crud.Resource[models.ExpenseCategory]{
		DB:      ctrl.DB,
		Filters: []crud.Filter{crud.StringFilter("name", "name")},
		Validate: func(_ echo.Context, row *models.ExpenseCategory) error {
			if strings.TrimSpace(row.Name) == "" {
				return apierr.Invalidf("name is required")
			}
			return nil
		},
		AfterDelete: func(_ echo.Context, tx *gorm.DB, row *models.ExpenseCategory) error {
			if err := tx.Where("category_id = ?", row.ID).Delete(&models.ExpenseBudget{}).Error; err != nil {
				return err
			}
			if err := tx.Where("category_id = ?", row.ID).Delete(&models.ExpenseReport{}).Error; err != nil {
				return err
			}
			return tx.Model(&models.Expense{}).Where("category_id = ?", row.ID).Update("category_id", nil).Error
		},
	}
}

func (ctrl *Controller) Budgets() *crud.Resource[models.ExpenseBudget] {
	return &crud.Resource[models.ExpenseBudget]{
		DB:      ctrl.DB,
		Filters: []crud.Filter{crud.UintFilter("category", "category_id")},
		Validate: func(_ echo.Context, row *models.ExpenseBudget) error {
			if row.Amount < 0 {
				return apierr.Invalidf("amount must not be negative")
			}
			return project.NormalizeRange(&row.StartDate, &row.EndDate)
		},
		BeforeSave: func(_ echo.Context, tx *gorm.DB, row, _ *models.ExpenseBudget) error {
			return record.Exists(tx, &models.ExpenseCategory{}, row.CategoryID, nil)
		},
	}
}

// Expenses lists, reads, edits and deletes expenses. Only pending
// expenses can be edited or deleted; submission and decisions go through
// the expense service.
func (ctrl *Controller) Expenses() *crud.Resource[models.Expense] {
	return &crud.Resource[models.Expense]{
		DB: ctrl.DB,
		Filters: []crud.Filter{
			crud.StringFilter("status", "status"),
			crud.UintFilter("category", "category_id"),
			crud.UintFilter("project", "project_id"),
			crud.StringFilter("submitted_by", "submitted_by"),
			crud.BoolFilter("over_budget", "over_budget"),
		},
		Scope:    record.Organization,
		Validate: validateExpense,
		BeforeSave: func(c echo.Context, tx *gorm.DB, row, prev *models.Expense) error {
			if err := ownProject(c, tx, row.ProjectID); err != nil {
				return err
			}
			return expense.Revise(tx, row, prev, subject(c))
		},
		AfterDelete: func(_ echo.Context, tx *gorm.DB, row *models.Expense) error {
			if row.Status != models.ExpensePending {
				return expense.ErrNotPending
			}
			return tx.Where("expense_id = ?", row.ID).Delete(&models.ExpenseAuditLog{}).Error
		},
	}
}

func validateExpense(_ echo.Context, row *models.Expense) error {
	if strings.TrimSpace(row.Title) == "" {
		return apierr.Invalidf("title is required")
	}
	return nil
}

// PostExpense submits an expense for the caller.
func (ctrl *Controller) PostExpense(c echo.Context) error {
	var row models.Expense
	if err := crud.Decode(c, &row); err != nil {
		return apierr.From(err)
	}
	if err := validateExpense(c, &row); err != nil {
		return apierr.From(err)
	}

	if org := auth.Organization(c); org != "" {
		row.OrganizationID = org
	}
	if err := ownProject(c, ctrl.DB.WithContext(c.Request().Context()), row.ProjectID); err != nil {
		return apierr.From(err)
	}

	if err := ctrl.Expense.Submit(c.Request().Context(), &row, subject(c)); err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusCreated, &row)
}

// DecisionRequest is the optional body of approve and reject.
type DecisionRequest struct {
	// Override approves even when the category budget would be exceeded.
	Override bool   `json:"override"`
	Notes    string `json:"notes"`
}

func (ctrl *Controller) Approve(c echo.Context) error {
	return ctrl.decide(c, func(ctx context.Context, id uint, approver string, req DecisionRequest) (*models.Expense, error) {
		return ctrl.Expense.Approve(ctx, id, approver, req.Override)
	})
}

func (ctrl *Controller) Reject(c echo.Context) error {
	return ctrl.decide(c, func(ctx context.Context, id uint, approver string, req DecisionRequest) (*models.Expense, error) {
		return ctrl.Expense.Reject(ctx, id, approver, req.Notes)
	})
}

type decision func(ctx context.Context, id uint, approver string, req DecisionRequest) (*models.Expense, error)

func (ctrl *Controller) decide(c echo.Context, fn decision) error {
	id, err := ctrl.visible(c)
	if err != nil {
		return apierr.From(err)
	}

	var req DecisionRequest
	if err := crud.Decode(c, &req); err != nil {
		return apierr.From(err)
	}

	row, err := fn(c.Request().Context(), id, subject(c), req)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, row)
}

// History lists the audit trail of an expense.
func (ctrl *Controller) History(c echo.Context) error {
	id, err := ctrl.visible(c)
	if err != nil {
		return apierr.From(err)
	}

	logs, err := ctrl.Expense.History(c.Request().Context(), id)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, logs)
}

// Budget reports how an expense stands against its category budget.
func (ctrl *Controller) Budget(c echo.Context) error {
	id, err := ctrl.visible(c)
	if err != nil {
		return apierr.From(err)
	}

	check, err := ctrl.Expense.Check(c.Request().Context(), id)
	if err != nil {
		return apierr.From(err)
	}
	if check == nil {
		return apierr.From(apierr.Invalidf("expense %d has no category", id))
	}

	return c.JSON(http.StatusOK, check)
}

// Report serves budget usage per category for start..end, defaulting to
// the current month. format=csv returns the rows as a CSV attachment.
func (ctrl *Controller) Report(c echo.Context) error {
	from, to := expense.MonthOf(time.Now().UTC())
	if c.QueryParam("start") != "" || c.QueryParam("end") != "" {
		var err error
		if from, to, err = crud.QueryRange(c); err != nil {
			return apierr.From(err)
		}
	}

	rows, err := ctrl.Expense.Report(c.Request().Context(), from, to, auth.Organization(c))
	if err != nil {
		return apierr.From(err)
	}

	if category, err := crud.QueryUint(c, "category", false); err != nil {
		return apierr.From(err)
	} else if category != 0 {
		filtered := rows[:0]
		for _, r := range rows {
			if r.CategoryID == category {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	switch c.QueryParam("format") {
	case "", "json":
		return c.JSON(http.StatusOK, rows)
	case "csv":
		data, err := expense.CSV(rows)
		if err != nil {
			return apierr.From(err)
		}
		name := fmt.Sprintf("expense_report_%s_%s.csv", from.Format("20060102"), to.Format("20060102"))
		c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+strconv.Quote(name))
		return c.Blob(http.StatusOK, "text/csv", data)
	default:
		return apierr.From(apierr.Invalidf("invalid format %q", c.QueryParam("format")))
	}
}

func (ctrl *Controller) visible(c echo.Context) (uint, error) {
	id, err := crud.ParamUint(c, "id")
	if err != nil {
		return 0, err
	}
	err = record.Exists(ctrl.DB.WithContext(c.Request().Context()), &models.Expense{}, id,
		record.Organization(auth.Organization(c)))
	return id, err
}

func ownProject(c echo.Context, tx *gorm.DB, projectID *uint) error {
	if projectID == nil {
		return nil
	}
	return record.Exists(tx, &models.Project{}, *projectID, record.Organization(auth.Organization(c)))
}

func subject(c echo.Context) string {
	if claims := auth.FromContext(c); claims != nil {
		return claims.Subject
	}
	return auth.Anonymous.Subject
}
