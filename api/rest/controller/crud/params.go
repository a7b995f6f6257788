package crud

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/internal/models"
)

// QueryUint reads a positive integer query parameter. A missing optional
// parameter yields zero.
func QueryUint(c echo.Context, name string, required bool) (uint, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		if required {
			return 0, apierr.Invalidf("%s is required", name)
		}
		return 0, nil
	}

	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, apierr.Invalidf("invalid %s: %q", name, raw)
	}
	return uint(v), nil
}

func QueryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.Invalidf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func QueryFloat(c echo.Context, name string, fallback float64) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apierr.Invalidf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func QueryUUID(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return uuid.Nil, apierr.Invalidf("%s is required", name)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apierr.Invalidf("invalid %s: %q", name, raw)
	}
	return id, nil
}

// QueryRange reads the required start and end dates (YYYY-MM-DD).
func QueryRange(c echo.Context) (start, end time.Time, err error) {
	if start, err = queryDate(c, "start"); err != nil {
		return
	}
	if end, err = queryDate(c, "end"); err != nil {
		return
	}
	if end.Before(start) {
		err = apierr.Invalidf("end must not be before start")
	}
	return
}

func queryDate(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, apierr.Invalidf("%s is required", name)
	}

	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apierr.Invalidf("invalid %s: expected YYYY-MM-DD", name)
	}
	return models.Date(t), nil
}

// ParamUint reads a positive integer path parameter.
func ParamUint(c echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apierr.Invalidf("invalid %s: %q", name, c.Param(name))
	}
	return uint(v), nil
}
