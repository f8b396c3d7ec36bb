package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-support/internal/handler"
	"github.com/iliyamo/peer-support/internal/middleware"
	"github.com/iliyamo/peer-support/internal/model"
)

// RegisterMessages registers /messages and /responses.
func RegisterMessages(api *echo.Group, h *handler.MessageHandler, auth echo.MiddlewareFunc) {
	responders := middleware.RequireRole(model.RoleAdmin, model.RoleMotivator)

	m := api.Group("/messages", auth)
	m.POST("", h.CreateMessage)
	m.GET("/user-messages", h.ListMessages)
	m.GET("/:id", h.GetMessage)
	m.PATCH("/:id/status", h.UpdateMessageStatus, responders)

	r := api.Group("/responses", auth)
	r.POST("", h.CreateResponse, responders)
	r.GET("", h.ListResponses, responders)
	r.GET("/:id", h.GetResponse)
}
