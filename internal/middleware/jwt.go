package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/service"
)

// AccessCookie is the cookie the login handler stores the access token in.
const AccessCookie = "accessToken"

// TokenVerifier checks an access token and returns its subject.
type TokenVerifier interface {
	VerifyAccess(raw string) (string, error)
}

// UserLookup loads the account behind a verified token.
type UserLookup interface {
	Lookup(ctx context.Context, id string) (*model.User, error)
}

// JWTAuth authenticates the request from a Bearer header or, failing that,
// the access-token cookie.  The subject must still exist; the loaded
// account is stored for handlers under CurrentUser, and its id and role
// under "user_id" and "role".
func JWTAuth(tokens TokenVerifier, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c.Request())
			if raw == "" {
				if ck, err := c.Cookie(AccessCookie); err == nil {
					raw = ck.Value
				}
			}
			if raw == "" {
				return deny(c, http.StatusUnauthorized, "authentication required")
			}

			id, err := tokens.VerifyAccess(raw)
			if err != nil {
				return deny(c, http.StatusUnauthorized, "invalid or expired token")
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			u, err := users.Lookup(ctx, id)
			if err != nil {
				switch service.KindOf(err) {
				case service.Unauthorized, service.NotFound:
					return deny(c, http.StatusUnauthorized, service.PublicMessage(err))
				case service.Timeout:
					return deny(c, http.StatusGatewayTimeout, service.PublicMessage(err))
				}
				return deny(c, http.StatusInternalServerError, "internal server error")
			}

			c.Set(userKey, u)
			c.Set(userIDKey, u.ID)
			c.Set(roleKey, string(u.Role))
			return next(c)
		}
	}
}

func bearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
