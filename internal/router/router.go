// Package router assembles the echo instance: the middleware stack, the
// probes, /metrics and the /api/v1 routes.
package router

import (
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/peer-support/internal/config"
	"github.com/iliyamo/peer-support/internal/handler"
	"github.com/iliyamo/peer-support/internal/logging"
	"github.com/iliyamo/peer-support/internal/metrics"
	"github.com/iliyamo/peer-support/internal/middleware"
	"github.com/iliyamo/peer-support/internal/service"
)

// Deps is everything the HTTP surface needs.  Metrics, Gatherer, Redis
// and Ready are optional.
type Deps struct {
	Svc          *service.Service
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	RateLimit    config.RateLimitConfig
	Redis        *redis.Client
	CookieSecure bool
	MaxUpload    int64
	Ready        map[string]handler.Pinger
}

// New builds the server.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(logging.RequestLogger(d.Logger))
	e.Use(d.Metrics.Middleware())
	if d.MaxUpload > 0 {
		// Room for the form fields around the file.
		e.Use(echomw.BodyLimit(bodyLimit(d.MaxUpload + 1<<20)))
	}

	RegisterRoutes(e, d)

	api := e.Group("/api/v1", middleware.NewTokenBucket(d.RateLimit, d.Redis))
	auth := middleware.JWTAuth(d.Svc.Credentials, d.Svc.Directory)

	RegisterAuth(api, handler.NewAuthHandler(d.Svc, d.CookieSecure, d.MaxUpload), auth)
	RegisterUsers(api, handler.NewUserHandler(d.Svc), auth)
	RegisterMessages(api, handler.NewMessageHandler(d.Svc, d.MaxUpload), auth)
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(d.Ready))
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
}

// bodyLimit renders n bytes in the size syntax BodyLimit expects.
func bodyLimit(n int64) string {
	return strconv.FormatInt(n/1024+1, 10) + "K"
}
