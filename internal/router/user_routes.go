package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-support/internal/handler"
	"github.com/iliyamo/peer-support/internal/middleware"
	"github.com/iliyamo/peer-support/internal/model"
)

// RegisterUsers registers /users.  Approve and reject are POST; they
// change state.
func RegisterUsers(api *echo.Group, h *handler.UserHandler, auth echo.MiddlewareFunc) {
	g := api.Group("/users", auth)
	admin := middleware.RequireRole(model.RoleAdmin)

	g.GET("/me", h.Me)
	g.GET("", h.List, admin)
	g.GET("/:id", h.Get)
	g.PATCH("/:id/status", h.SetStatus, admin)
	g.POST("/:id/approve", h.Approve, admin)
	g.POST("/:id/reject", h.Reject, admin)
	g.DELETE("/:id", h.Delete, admin)
}
