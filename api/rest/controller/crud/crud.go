// Package crud serves list/get/create/update/delete endpoints for a
// model on top of the record service.
package crud

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/apierr"
	"github.com/meridian-works/meridian/api/rest/service/record"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/pkg/log"
	"gorm.io/gorm"
)

// Filter maps a query parameter onto an equality condition.
type Filter struct {
	Param  string
	Column string
	Parse  func(string) (any, error)
}

func UintFilter(param, column string) Filter {
	return Filter{Param: param, Column: column, Parse: UintID}
}

func UUIDFilter(param, column string) Filter {
	return Filter{Param: param, Column: column, Parse: UUIDID}
}

func StringFilter(param, column string) Filter {
	return Filter{Param: param, Column: column, Parse: func(s string) (any, error) { return s, nil }}
}

func BoolFilter(param, column string) Filter {
	return Filter{Param: param, Column: column, Parse: func(s string) (any, error) { return strconv.ParseBool(s) }}
}

func UintID(s string) (any, error) {
	return strconv.ParseUint(s, 10, 64)
}

func UUIDID(s string) (any, error) {
	return uuid.Parse(s)
}

// Hook runs inside the write transaction. prev is nil on create.
type Hook[T any] func(c echo.Context, tx *gorm.DB, row, prev *T) error

// Resource exposes T over REST.
type Resource[T any] struct {
	DB *gorm.DB
	// New returns a row holding the defaults applied before the body is
	// decoded.
	New     func() *T
	ID      func(string) (any, error)
	Filters []Filter
	// Scope narrows every read and write to the caller's organization.
	Scope func(org string) record.Scope
	// Validate runs before the transaction opens.
	Validate   func(c echo.Context, row *T) error
	BeforeSave Hook[T]
	AfterSave  Hook[T]
	// Committed runs once the write is durable.
	Committed func(c echo.Context, row *T)
	// AfterDelete runs inside the delete transaction.
	AfterDelete func(c echo.Context, tx *gorm.DB, row *T) error
	// Deleted runs once the delete is durable.
	Deleted func(c echo.Context, row *T)
}

// Bind registers the routes of r under path.
func (r *Resource[T]) Bind(g *echo.Group, path string, middleware ...echo.MiddlewareFunc) {
	g.GET(path, r.List)
	g.GET(path+"/:id", r.Get)
	g.POST(path, r.Post, middleware...)
	g.PUT(path+"/:id", r.Put, middleware...)
	g.DELETE(path+"/:id", r.Delete, middleware...)
}

func (r *Resource[T]) List(c echo.Context) error {
	req, err := r.parseListRequest(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
	}

	rows, err := record.New[T](c.Request().Context(), r.DB).List(req)
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, rows)
}

func (r *Resource[T]) Get(c echo.Context) error {
	id, err := r.id(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
	}

	row, err := record.New[T](c.Request().Context(), r.DB).Get(id, r.scope(c))
	if err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, row)
}

func (r *Resource[T]) Post(c echo.Context) error {
	row := r.fresh()
	if err := Decode(c, row); err != nil {
		return apierr.From(err)
	}

	if err := r.write(c, row, nil); err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusCreated, row)
}

func (r *Resource[T]) Put(c echo.Context) error {
	id, err := r.id(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
	}

	svc := record.New[T](c.Request().Context(), r.DB)
	prev, err := svc.Get(id, r.scope(c))
	if err != nil {
		return apierr.From(err)
	}

	// decoded into a separate copy so prev keeps the stored values
	row, err := svc.Get(id)
	if err != nil {
		return apierr.From(err)
	}
	if err := Decode(c, row); err != nil {
		return apierr.From(err)
	}

	if err := r.write(c, row, prev); err != nil {
		return apierr.From(err)
	}

	return c.JSON(http.StatusOK, row)
}

func (r *Resource[T]) Delete(c echo.Context) error {
	id, err := r.id(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
	}

	var (
		ctx = c.Request().Context()
		row *T
	)
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		if row, err = record.New[T](ctx, tx).Delete(id, r.scope(c)); err != nil {
			return err
		}
		if r.AfterDelete != nil {
			return r.AfterDelete(c, tx, row)
		}
		return nil
	})
	if err != nil {
		return apierr.From(err)
	}

	if r.Deleted != nil {
		r.Deleted(c, row)
	}

	return c.NoContent(http.StatusNoContent)
}

func (r *Resource[T]) write(c echo.Context, row, prev *T) error {
	if r.Validate != nil {
		if err := r.Validate(c, row); err != nil {
			return err
		}
	}

	ctx := c.Request().Context()
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.BeforeSave != nil {
			if err := r.BeforeSave(c, tx, row, prev); err != nil {
				return err
			}
		}

		svc := record.New[T](ctx, tx)
		if prev == nil {
			if err := svc.Create(row); err != nil {
				return err
			}
		} else if err := svc.Save(row); err != nil {
			return err
		}

		if r.AfterSave != nil {
			return r.AfterSave(c, tx, row, prev)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if r.Committed != nil {
		r.Committed(c, row)
	}
	return nil
}

func (r *Resource[T]) fresh() *T {
	if r.New != nil {
		return r.New()
	}
	return new(T)
}

func (r *Resource[T]) id(c echo.Context) (any, error) {
	if r.ID == nil {
		return UintID(c.Param("id"))
	}
	return r.ID(c.Param("id"))
}

func (r *Resource[T]) scope(c echo.Context) record.Scope {
	if r.Scope == nil {
		return nil
	}
	return r.Scope(auth.Organization(c))
}

func (r *Resource[T]) parseListRequest(c echo.Context) (req *record.ListRequest, err error) {
	req, err = ParseListRequest(c)
	if err != nil {
		return nil, err
	}

	for _, f := range r.Filters {
		raw := c.QueryParam(f.Param)
		if raw == "" {
			continue
		}
		v, err := f.Parse(raw)
		if err != nil {
			return nil, apierr.Invalidf("invalid %s: %v", f.Param, err)
		}
		if req.Filters == nil {
			req.Filters = map[string]any{}
		}
		req.Filters[f.Column] = v
	}

	req.Scopes = append(req.Scopes, r.scope(c))

	return req, nil
}

// ParseListRequest reads limit, offset and order_by.
func ParseListRequest(c echo.Context) (req *record.ListRequest, err error) {
	req = &record.ListRequest{}

	if limit := c.QueryParam("limit"); limit != "" {
		if req.Limit, err = strconv.ParseUint(limit, 10, 32); err != nil {
			return nil, apierr.Invalidf("invalid limit %q", limit)
		}
	}

	if offset := c.QueryParam("offset"); offset != "" {
		if req.Offset, err = strconv.ParseUint(offset, 10, 64); err != nil {
			return nil, apierr.Invalidf("invalid offset %q", offset)
		}
	}

	if orderBy := c.QueryParam("order_by"); orderBy != "" {
		req.OrderBy = strings.Split(orderBy, ",")
		if err = record.ValidateOrder(req.OrderBy); err != nil {
			return nil, apierr.Invalidf("%v", err)
		}
	}

	return
}

var (
	dateOnly = regexp.MustCompile(`^"\d{4}-\d{2}-\d{2}"$`)

	// server-managed fields are never taken from a request body
	readOnly = []string{"id", "created_at", "updated_at"}
)

// Decode merges the JSON object in the request body into v. Fields the
// server manages are ignored, and date fields may be given as plain
// YYYY-MM-DD.
func Decode(c echo.Context, v any) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return apierr.Invalidf("invalid JSON body: %v", err)
		}
	}

	for _, key := range readOnly {
		delete(fields, key)
	}

	for key, raw := range fields {
		if isDateField(key) && dateOnly.Match(raw) {
			fields[key] = json.RawMessage(`"` + string(raw[1:len(raw)-1]) + `T00:00:00Z"`)
		}
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(merged, v); err != nil {
		log.Debug("rejected request body", "path", c.Path(), "error", err)
		return apierr.Invalidf("invalid request body: %v", err)
	}
	return nil
}

func isDateField(key string) bool {
	return strings.HasSuffix(key, "date") || key == "start" || key == "end"
}
