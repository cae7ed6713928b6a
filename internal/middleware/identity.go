package middleware

// identity.go holds the accessors handlers use to read what the auth
// middleware stored in the echo context.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ledwall/internal/utils"
)

// UserID returns the authenticated subject, or "guest" when the request is
// anonymous.
func UserID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "guest"
}

// IsAdmin reports whether the request carried valid admin credentials.
func IsAdmin(c echo.Context) bool {
	role, _ := c.Get(ctxRole).(string)
	return role == utils.RoleAdmin
}
