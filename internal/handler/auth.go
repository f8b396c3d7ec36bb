package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-support/internal/middleware"
	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/service"
)

// requestTimeout bounds a whole request, uploads included.
const requestTimeout = 30 * time.Second

const refreshCookie = "refreshToken"

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// AuthHandler serves registration, login and the self-service account
// endpoints under /auth.
type AuthHandler struct {
	Svc          *service.Service
	CookieSecure bool
	MaxUpload    int64
}

func NewAuthHandler(svc *service.Service, cookieSecure bool, maxUpload int64) *AuthHandler {
	return &AuthHandler{Svc: svc, CookieSecure: cookieSecure, MaxUpload: maxUpload}
}

type registerReq struct {
	FullName     string `json:"fullName" form:"fullName"`
	Email        string `json:"email" form:"email"`
	Password     string `json:"password" form:"password"`
	Gender       string `json:"gender" form:"gender"`
	Bio          string `json:"bio" form:"bio"`
	Experience   string `json:"experience" form:"experience"`
	Specialities string `json:"specialities" form:"specialities"`
	Reason       string `json:"reason" form:"reason"`
}

type loginReq struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

type changePasswordReq struct {
	OldPassword string `json:"oldPassword" form:"oldPassword"`
	NewPassword string `json:"newPassword" form:"newPassword"`
}

type sessionResp struct {
	User                 model.PublicUser `json:"user"`
	AccessToken          string           `json:"accessToken"`
	AccessTokenExpiresAt time.Time        `json:"accessTokenExpiresAt"`
	RefreshToken         string           `json:"refreshToken,omitempty"`
}

type tokensResp struct {
	AccessToken          string    `json:"accessToken"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
	RefreshToken         string    `json:"refreshToken"`
}

// RegisterUser creates a client account.
func (h *AuthHandler) RegisterUser(c echo.Context) error {
	return h.register(c, model.RoleClient, "user registered successfully")
}

// RegisterMotivator creates a motivator account awaiting approval.
func (h *AuthHandler) RegisterMotivator(c echo.Context) error {
	return h.register(c, model.RoleMotivator, "motivator registered successfully and pending approval")
}

func (h *AuthHandler) register(c echo.Context, role model.Role, msg string) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, echo.NewHTTPError(http.StatusBadRequest, "invalid body"))
	}
	photo, closer, err := formFile(c, fieldPhoto, h.MaxUpload)
	if err != nil {
		return fail(c, err)
	}
	defer closeQuietly(closer)

	ctx, cancel := requestContext(c)
	defer cancel()

	in := service.RegisterInput{
		Role:     role,
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Gender:   model.Gender(req.Gender),
		Photo:    photo,
	}
	if role == model.RoleMotivator {
		in.Bio, in.Experience, in.Specialities, in.Reason = req.Bio, req.Experience, req.Specialities, req.Reason
	}
	u, err := h.Svc.Directory.Register(ctx, in)
	if err != nil {
		return fail(c, err)
	}
	tokens, err := h.Svc.Credentials.Issue(ctx, u)
	if err != nil {
		return fail(c, err)
	}
	h.setSession(c, tokens)
	return ok(c, http.StatusCreated, msg, sessionResp{
		User:                 u.Public(),
		AccessToken:          tokens.Access,
		AccessTokenExpiresAt: tokens.AccessExp,
	})
}

// Login authenticates by email and password and starts a session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, echo.NewHTTPError(http.StatusBadRequest, "invalid body"))
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Svc.Directory.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	tokens, err := h.Svc.Credentials.Issue(ctx, u)
	if err != nil {
		return fail(c, err)
	}
	h.setSession(c, tokens)
	return ok(c, http.StatusOK, "user logged in successfully", sessionResp{
		User:                 u.Public(),
		AccessToken:          tokens.Access,
		AccessTokenExpiresAt: tokens.AccessExp,
		RefreshToken:         tokens.Refresh,
	})
}

// Logout clears the caller's refresh slot and both cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Svc.Credentials.Revoke(ctx, u.ID); err != nil {
		return fail(c, err)
	}
	h.clearSession(c)
	return ok(c, http.StatusOK, "user logged out successfully", struct{}{})
}

// RefreshToken rotates the session from the refresh cookie or body.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	raw := ""
	if ck, err := c.Cookie(refreshCookie); err == nil {
		raw = ck.Value
	}
	if raw == "" {
		var req refreshReq
		if err := c.Bind(&req); err == nil {
			raw = req.RefreshToken
		}
	}
	if raw == "" {
		return fail(c, echo.NewHTTPError(http.StatusUnauthorized, "refresh token is required"))
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	tokens, _, err := h.Svc.Credentials.Rotate(ctx, raw)
	if err != nil {
		return fail(c, err)
	}
	h.setSession(c, tokens)
	return ok(c, http.StatusOK, "access token refreshed", tokensResp{
		AccessToken:          tokens.Access,
		AccessTokenExpiresAt: tokens.AccessExp,
		RefreshToken:         tokens.Refresh,
	})
}

// ChangePassword replaces the caller's password.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return fail(c, echo.NewHTTPError(http.StatusBadRequest, "invalid body"))
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Svc.Directory.ChangePassword(ctx, middleware.CurrentUser(c), req.OldPassword, req.NewPassword); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "password changed successfully", struct{}{})
}

// UpdateDetails edits name, email, bio or specialities.
func (h *AuthHandler) UpdateDetails(c echo.Context) error {
	var in service.DetailsInput
	if err := c.Bind(&in); err != nil {
		return fail(c, echo.NewHTTPError(http.StatusBadRequest, "invalid body"))
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.Svc.Directory.UpdateDetails(ctx, middleware.CurrentUser(c), in)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "user updated successfully", u.Public())
}

// UpdateProfilePhoto replaces the caller's profile photo.
func (h *AuthHandler) UpdateProfilePhoto(c echo.Context) error {
	photo, closer, err := formFile(c, fieldPhoto, h.MaxUpload)
	if err != nil {
		return fail(c, err)
	}
	defer closeQuietly(closer)

	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.Svc.Directory.UpdateProfilePhoto(ctx, middleware.CurrentUser(c), photo)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "profile photo updated successfully", u.Public())
}

func (h *AuthHandler) setSession(c echo.Context, t *service.Tokens) {
	c.SetCookie(h.cookie(middleware.AccessCookie, t.Access, t.AccessExp))
	c.SetCookie(h.cookie(refreshCookie, t.Refresh, t.RefreshExp))
}

func (h *AuthHandler) clearSession(c echo.Context) {
	for _, name := range []string{middleware.AccessCookie, refreshCookie} {
		ck := h.cookie(name, "", time.Unix(0, 0))
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}

func (h *AuthHandler) cookie(name, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
