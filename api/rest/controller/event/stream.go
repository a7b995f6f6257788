package event

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/controller/crud"
	"github.com/meridian-works/meridian/api/rest/controller/project"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/event"
	"github.com/meridian-works/meridian/pkg/log"
	"gorm.io/gorm"
)

// KeepAlive is the interval between comment frames on an idle stream.
const KeepAlive = 15 * time.Second

type Controller struct {
	bus event.Bus
	db  *gorm.DB
}

func New(bus event.Bus, db *gorm.DB) *Controller {
	return &Controller{bus: bus, db: db}
}

// Stream sends events as server-sent events. Callers bound to an
// organization must pick one of its projects.
func (ctrl *Controller) Stream(c echo.Context) error {
	ctx := c.Request().Context()

	projectID, err := crud.QueryUint(c, "project", false)
	if err != nil {
		return apierr.From(err)
	}

	if auth.Organization(c) != "" {
		if projectID == 0 {
			return apierr.From(apierr.Invalidf("project is required"))
		}
		if err := project.OwnProject(c, ctrl.db.WithContext(ctx), projectID); err != nil {
			return apierr.From(err)
		}
	}

	filter := event.Filter{ProjectID: projectID}
	if typesStr := c.QueryParam("types"); typesStr != "" {
		for _, s := range strings.Split(typesStr, ",") {
			filter.Types = append(filter.Types, event.Type(strings.TrimSpace(s)))
		}
	}

	ch, err := ctrl.bus.Subscribe(ctx, filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")

	if _, err := fmt.Fprintf(c.Response(), ": ping\n\n"); err != nil {
		return nil
	}
	c.Response().Flush()

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprintf(c.Response(), ": ping\n\n"); err != nil {
				return nil
			}
			c.Response().Flush()
		case e, ok := <-ch:
			if !ok {
				return nil
			}

			data, err := json.Marshal(e)
			if err != nil {
				log.Error("failed to marshal event for stream", "type", e.Type, "error", err)
				continue
			}

			if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
				return nil
			}
			c.Response().Flush()
		}
	}
}
