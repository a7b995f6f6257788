package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/pkg/log"
	"gorm.io/gorm"
)

var startedAt time.Time

func init() {
	startedAt = time.Now()
}

// HealthResponse defines the data the Health
// REST endpoint returns.
type HealthResponse struct {
	Status   Status        `json:"status"`
	Uptime   time.Duration `json:"uptime"`
	Database Status        `json:"database"`
}

// Health reports whether meridian and its database are reachable.
// The response also includes the uptime.
func Health(db *gorm.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := HealthResponse{
			Status:   Healthy,
			Uptime:   time.Since(startedAt),
			Database: Healthy,
		}

		if err := ping(c, db); err != nil {
			log.Warn("database health check failed", "error", err)
			resp.Status = Degraded
			resp.Database = Unhealthy
			return c.JSON(http.StatusServiceUnavailable, resp)
		}

		return c.JSON(http.StatusOK, resp)
	}
}

func ping(c echo.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(c.Request().Context())
}

// Status enumerates the health statues of meridian.
type Status string

const (
	// Healthy implies meridian is having no major issues.
	Healthy Status = "healthy"
	// Degraded implies meridian is up but a dependency is failing.
	Degraded Status = "degraded"
	// Unhealthy marks a failing dependency.
	Unhealthy Status = "unhealthy"
)
