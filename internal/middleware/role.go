package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-support/internal/model"
)

// RequireRole rejects authenticated callers whose role is not in roles.
// It must run after JWTAuth.  The services repeat the check together with
// the account-status rules; this is the coarse gate at the route.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := CurrentUser(c)
			if u == nil {
				return deny(c, http.StatusUnauthorized, "authentication required")
			}
			if !allowed[u.Role] {
				return deny(c, http.StatusForbidden, "you do not have permission to perform this action")
			}
			return next(c)
		}
	}
}
