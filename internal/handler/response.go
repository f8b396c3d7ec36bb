package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-support/internal/service"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func ok(c echo.Context, status int, msg string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: msg, Data: data})
}

// statusOf maps a service error kind onto its HTTP status.
func statusOf(k service.Kind) int {
	switch k {
	case service.Validation:
		return http.StatusBadRequest
	case service.Unauthorized, service.InvalidCredential:
		return http.StatusUnauthorized
	case service.Forbidden:
		return http.StatusForbidden
	case service.NotFound:
		return http.StatusNotFound
	case service.Conflict:
		return http.StatusConflict
	case service.ExternalDependency:
		return http.StatusBadGateway
	case service.Timeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// fail writes the failure envelope for err.  Only the public message of a
// service error reaches the client; the cause is logged.
func fail(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return c.JSON(he.Code, envelope{Message: msg})
	}

	kind := service.KindOf(err)
	status := statusOf(kind)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request().Method, "path", c.Path(),
			"kind", kind.String(), "err", err)
	}
	return c.JSON(status, envelope{Message: service.PublicMessage(err)})
}

// ErrorHandler renders errors that escape handlers (unknown routes,
// oversized bodies, panics recovered by echo) in the same envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound:
			err = echo.NewHTTPError(http.StatusNotFound, "route not found")
		case http.StatusRequestEntityTooLarge:
			err = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
		}
	}
	if werr := fail(c, err); werr != nil {
		slog.Warn("write error response", "err", werr)
	}
}
