package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-support/internal/middleware"
	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/service"
)

// UserHandler serves the /users resource.
type UserHandler struct {
	Svc *service.Service
}

func NewUserHandler(svc *service.Service) *UserHandler { return &UserHandler{Svc: svc} }

type statusReq struct {
	Status string `json:"status" form:"status"`
}

func publicUsers(us []*model.User) []model.PublicUser {
	out := make([]model.PublicUser, 0, len(us))
	for _, u := range us {
		out = append(out, u.Public())
	}
	return out
}

// List returns accounts, optionally filtered by ?role=&status=&gender=.
func (h *UserHandler) List(c echo.Context) error {
	f := model.UserFilter{
		Role:   model.Role(c.QueryParam("role")),
		Status: model.UserStatus(c.QueryParam("status")),
		Gender: model.Gender(c.QueryParam("gender")),
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	users, err := h.Svc.Directory.List(ctx, middleware.CurrentUser(c), f)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "users retrieved successfully", publicUsers(users))
}

// Me returns the caller's own account.
func (h *UserHandler) Me(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.Svc.Directory.Me(ctx, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "user retrieved successfully", u.Public())
}

// Get returns one account to its owner or an admin.
func (h *UserHandler) Get(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.Svc.Directory.Get(ctx, middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "user retrieved successfully", u.Public())
}

// SetStatus moves an account to the requested status.
func (h *UserHandler) SetStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return fail(c, echo.NewHTTPError(http.StatusBadRequest, "invalid body"))
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.Svc.Directory.SetStatus(ctx, middleware.CurrentUser(c), c.Param("id"), model.UserStatus(req.Status))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "user status updated successfully", u.Public())
}

// Approve activates a motivator application.
func (h *UserHandler) Approve(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.Svc.Directory.ApproveMotivator(ctx, middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "motivator approved successfully", u.Public())
}

// Reject deactivates a motivator application.
func (h *UserHandler) Reject(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.Svc.Directory.RejectMotivator(ctx, middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "motivator rejected successfully", u.Public())
}

// Delete removes an account.
func (h *UserHandler) Delete(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Svc.Directory.Delete(ctx, middleware.CurrentUser(c), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "user deleted successfully", struct{}{})
}
