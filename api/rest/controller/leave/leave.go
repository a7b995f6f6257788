// Package leave serves leave types, requests and their decisions.
package leave

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/controller/crud"
	"github.com/meridian-works/meridian/api/rest/controller/employee"
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

func (ctrl *Controller) Types() *crud.Resource[models.LeaveType] {
	return &crud.Resource[models.LeaveType]{
		DB:  ctrl.DB,
		New: func() *models.LeaveType { return &models.LeaveType{RequiresApproval: true} },
		Validate: func(_ echo.Context, row *models.LeaveType) error {
			if strings.TrimSpace(row.Name) == "" {
				return apierr.Invalidf("name is required")
			}
			if row.AccrualPerMonth < 0 {
				return apierr.Invalidf("accrual_per_month must not be negative")
			}
			return nil
		},
	}
}

// Requests lists, reads and deletes requests. Only pending requests can
// be deleted; creation and decisions go through the leave service.
func (ctrl *Controller) Requests() *crud.Resource[models.LeaveRequest] {
	return &crud.Resource[models.LeaveRequest]{
		DB: ctrl.DB,
		Filters: []crud.Filter{
			crud.UUIDFilter("employee", "employee_id"),
			crud.UintFilter("leave_type", "leave_type_id"),
			crud.StringFilter("status", "status"),
		},
		Scope: record.EmployeeOrganization,
		AfterDelete: func(_ echo.Context, _ *gorm.DB, row *models.LeaveRequest) error {
			if row.Status != models.LeavePending {
				return leave.ErrNotPending
			}
			return nil
		},
	}
}

// PostRequest files a request. Types that need no approval are decided
// immediately when the balance allows.
func (ctrl *Controller) PostRequest(c echo.Context) error {
	var req models.LeaveRequest
	if err := crud.Decode(c, &req); err != nil {
		return apierr.From(err)
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return apierr.From(apierr.Invalidf("start_date and end_date are required"))
	}

	if err := employee.OwnEmployee(c, ctrl.DB.WithContext(c.Request().Context()), req.EmployeeID); err != nil {
		return apierr.From(err)
	}

	if err := ctrl.Leave.Request(c.Request().Context(), &req); err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusCreated, &req)
}

func (ctrl *Controller) Approve(c echo.Context) error {
	return ctrl.decide(c, ctrl.Leave.Approve)
}

func (ctrl *Controller) Reject(c echo.Context) error {
	return ctrl.decide(c, ctrl.Leave.Reject)
}

type decision func(ctx context.Context, id uint, approver string) (*models.LeaveRequest, error)

func (ctrl *Controller) decide(c echo.Context, fn decision) error {
	id, err := crud.ParamUint(c, "id")
	if err != nil {
		return apierr.From(err)
	}

	if err := record.Exists(ctrl.DB.WithContext(c.Request().Context()), &models.LeaveRequest{}, id,
		record.EmployeeOrganization(auth.Organization(c))); err != nil {
		return apierr.From(err)
	}

	approver := auth.Anonymous.Subject
	if claims := auth.FromContext(c); claims != nil {
		approver = claims.Subject
	}

	req, err := fn(c.Request().Context(), id, approver)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, req)
}
