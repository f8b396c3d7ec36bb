package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-support/internal/model"
)

// Context keys set by JWTAuth.
const (
	userKey   = "user"
	userIDKey = "user_id"
	roleKey   = "role"
)

// CurrentUser returns the account JWTAuth loaded for this request, or nil
// on unauthenticated routes.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(userKey).(*model.User)
	return u
}

// userID is the rate-limit identity of the caller: the account id, or
// "guest" before authentication.
func userID(c echo.Context) string {
	if s, ok := c.Get(userIDKey).(string); ok && s != "" {
		return s
	}
	return "guest"
}

// deny writes the standard failure envelope.
func deny(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

