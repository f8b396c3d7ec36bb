package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-support/internal/handler"
)

// RegisterAuth registers /auth.  Registration, login and refresh are open;
// the rest need a session.
func RegisterAuth(api *echo.Group, a *handler.AuthHandler, auth echo.MiddlewareFunc) {
	g := api.Group("/auth")
	g.POST("/register-user", a.RegisterUser)
	g.POST("/register-motivator", a.RegisterMotivator)
	g.POST("/login", a.Login)
	g.POST("/refresh-token", a.RefreshToken)

	g.POST("/logout", a.Logout, auth)
	g.POST("/change-password", a.ChangePassword, auth)
	g.POST("/update-details", a.UpdateDetails, auth)
	g.POST("/update-profile-photo", a.UpdateProfilePhoto, auth)
}
