package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-support/internal/middleware"
	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/service"
)

// MessageHandler serves /messages and /responses.
type MessageHandler struct {
	Svc       *service.Service
	MaxUpload int64
}

func NewMessageHandler(svc *service.Service, maxUpload int64) *MessageHandler {
	return &MessageHandler{Svc: svc, MaxUpload: maxUpload}
}

type createMessageReq struct {
	Content string `json:"content" form:"content"`
}

type createResponseReq struct {
	Content   string `json:"content" form:"content"`
	MessageID string `json:"messageId" form:"messageId"`
}

// CreateMessage stores a client's post with an optional attachment.
func (h *MessageHandler) CreateMessage(c echo.Context) error {
	var req createMessageReq
	if err := c.Bind(&req); err != nil {
		return fail(c, echo.NewHTTPError(http.StatusBadRequest, "invalid body"))
	}
	file, closer, err := formFile(c, fieldFile, h.MaxUpload)
	if err != nil {
		return fail(c, err)
	}
	defer closeQuietly(closer)

	ctx, cancel := requestContext(c)
	defer cancel()
	v, err := h.Svc.Messaging.CreateMessage(ctx, middleware.CurrentUser(c),
		service.CreateMessageInput{Content: req.Content, File: file})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, "message created successfully", v)
}

// ListMessages returns the role-scoped message list.
func (h *MessageHandler) ListMessages(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	vs, err := h.Svc.Messaging.ListMessages(ctx, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "messages retrieved successfully", vs)
}

// GetMessage returns one message if the caller may see it.
func (h *MessageHandler) GetMessage(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	v, err := h.Svc.Messaging.GetMessage(ctx, middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "message retrieved successfully", v)
}

// UpdateMessageStatus edits a message's status.
func (h *MessageHandler) UpdateMessageStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return fail(c, echo.NewHTTPError(http.StatusBadRequest, "invalid body"))
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	v, err := h.Svc.Messaging.UpdateMessageStatus(ctx, middleware.CurrentUser(c), c.Param("id"),
		model.MessageStatus(req.Status))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "message status updated successfully", v)
}

// CreateResponse attaches a reply to a message.
func (h *MessageHandler) CreateResponse(c echo.Context) error {
	var req createResponseReq
	if err := c.Bind(&req); err != nil {
		return fail(c, echo.NewHTTPError(http.StatusBadRequest, "invalid body"))
	}
	file, closer, err := formFile(c, fieldFile, h.MaxUpload)
	if err != nil {
		return fail(c, err)
	}
	defer closeQuietly(closer)

	ctx, cancel := requestContext(c)
	defer cancel()
	v, err := h.Svc.Messaging.CreateResponse(ctx, middleware.CurrentUser(c), service.CreateResponseInput{
		MessageID: req.MessageID,
		Content:   req.Content,
		File:      file,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, "response created successfully", v)
}

// ListResponses is the caller's "my responses" view.
func (h *MessageHandler) ListResponses(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	vs, err := h.Svc.Messaging.ListResponses(ctx, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "responses retrieved successfully", vs)
}

// GetResponse returns one response with its message.
func (h *MessageHandler) GetResponse(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	v, err := h.Svc.Messaging.GetResponse(ctx, middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "response retrieved successfully", v)
}
