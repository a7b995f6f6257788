// Package apierr maps domain errors onto echo HTTP errors.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/internal/capacity"
	"github.com/meridian-works/meridian/internal/deadline"
	"github.com/meridian-works/meridian/internal/expense"
	"github.com/meridian-works/meridian/internal/leave"
	"github.com/meridian-works/meridian/internal/planimport"
	"github.com/meridian-works/meridian/internal/schedule"
	"gorm.io/gorm"
)

// ValidationError is a request the caller has to fix.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Invalidf builds a ValidationError.
func Invalidf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

var badRequest = []error{
	schedule.ErrInvalidDelay,
	schedule.ErrInvalidRange,
	schedule.ErrSelfDependency,
	schedule.ErrCrossProject,
	capacity.ErrInvalidRange,
	capacity.ErrInvalidAllocation,
	leave.ErrInvalidRange,
	deadline.ErrInvalidSource,
	expense.ErrInvalidAmount,
	expense.ErrInvalidRange,
}

var conflict = []error{
	schedule.ErrCycle,
	schedule.ErrDuplicateDependency,
	capacity.ErrOverAllocated,
	leave.ErrInsufficientBalance,
	leave.ErrNotPending,
	expense.ErrBudgetExceeded,
	expense.ErrNotPending,
	planimport.ErrDuplicateProject,
	gorm.ErrDuplicatedKey,
}

// From converts err into an *echo.HTTPError. Client errors carry the
// error text; everything else is reported generically.
func From(err error) error {
	if err == nil {
		return nil
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var invalid *ValidationError
	if errors.As(err, &invalid) {
		return echo.NewHTTPError(http.StatusBadRequest, invalid.Error()).SetInternal(err)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound).SetInternal(err)
	}

	for _, target := range badRequest {
		if errors.Is(err, target) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
		}
	}

	for _, target := range conflict {
		if errors.Is(err, target) {
			return echo.NewHTTPError(http.StatusConflict, err.Error()).SetInternal(err)
		}
	}

	return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
}
