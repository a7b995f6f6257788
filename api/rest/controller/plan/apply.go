// Package plan applies declarative project plans.
package plan

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/planimport"
	"github.com/meridian-works/meridian/pkg/log"
	"github.com/meridian-works/meridian/pkg/plan"
)

// MaxPlanBytes bounds an uploaded plan body.
const MaxPlanBytes = 1 << 20

type Controller struct {
	Importer *planimport.Importer
}

type ApplyResponse struct {
	DryRun  bool                 `json:"dry_run"`
	Plans   int                  `json:"plans"`
	Results []*planimport.Result `json:"results"`
}

// Apply imports every plan in the body. YAML (and therefore JSON) is the
// default, though quoted JSON dates must be full RFC 3339 timestamps;
// send Content-Type application/toml for TOML. With
// ?dry_run=true plans are only validated. Plans are applied in order and
// each in its own transaction, so a failure leaves earlier plans in
// place.
func (ctrl *Controller) Apply(c echo.Context) error {
	dryRun := false
	if raw := c.QueryParam("dry_run"); raw != "" {
		var err error
		if dryRun, err = strconv.ParseBool(raw); err != nil {
			return apierr.From(apierr.Invalidf("invalid dry_run: %q", raw))
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxPlanBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
	}
	if len(body) > MaxPlanBytes {
		return echo.ErrStatusRequestEntityTooLarge
	}

	defs, err := plan.Parse(body, format(c.Request().Header.Get(echo.HeaderContentType)))
	if err != nil {
		return apierr.From(apierr.Invalidf("invalid plan: %v", err))
	}
	if len(defs) == 0 {
		return apierr.From(apierr.Invalidf("no plans in request body"))
	}

	resp := ApplyResponse{DryRun: dryRun, Plans: len(defs), Results: []*planimport.Result{}}
	if dryRun {
		return c.JSON(http.StatusOK, resp)
	}

	opts := planimport.ApplyOptions{OrganizationID: auth.Organization(c)}
	for i := range defs {
		res, err := ctrl.Importer.Apply(c.Request().Context(), &defs[i], opts)
		if err != nil {
			log.Warn("plan apply failed", "project", defs[i].Project.Name, "error", err)
			return apierr.From(err)
		}
		resp.Results = append(resp.Results, res)
	}

	return c.JSON(http.StatusCreated, resp)
}

func format(contentType string) plan.Format {
	if strings.Contains(strings.ToLower(contentType), "toml") {
		return plan.FormatTOML
	}
	return plan.FormatYAML
}
