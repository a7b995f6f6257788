package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/gql"
	"github.com/meridian-works/meridian/api/rest/bind"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
)

// ShutdownTimeout bounds how long in-flight requests may take once the
// server is asked to stop.
const ShutdownTimeout = 10 * time.Second

// Options configure the API beyond its services.
type Options struct {
	// Authenticator verifies bearer tokens; nil disables authentication.
	Authenticator *auth.Authenticator
	// Registry receives the HTTP metrics and backs /metrics. The default
	// Prometheus registry is used when nil.
	Registry *prometheus.Registry
}

// New builds meridian's HTTP API.
func New(deps bind.Dependencies, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// health
	e.GET("/health", Health(deps.DB))

	// metrics
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if opts.Registry != nil {
		registerer, gatherer = opts.Registry, opts.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "meridian",
		Registerer: registerer,
	}))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: gatherer,
	}))

	authenticate := auth.Middleware(opts.Authenticator)

	// REST
	bind.All(e.Group("/v1", authenticate), deps)

	// GraphQL
	graph := gql.Handler(deps.DB, deps.Engine)
	e.GET("/gql", graph, authenticate)
	e.POST("/gql", graph, authenticate)

	return e
}

// Start serves e on port until ctx is done, then shuts down gracefully.
func Start(ctx context.Context, e *echo.Echo, port int) error {
	errs := make(chan error, 1)
	go func() {
		log.Info("api listening", "port", port)
		errs <- e.Start(fmt.Sprintf(":%v", port))
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdown)
	}
}
