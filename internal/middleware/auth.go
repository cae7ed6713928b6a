package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ledwall/internal/utils"
)

// Context keys set by the auth middleware.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// AdminAuthenticator checks operator credentials.  Two schemes are
// accepted: HTTP Basic against the configured user and bcrypt hash, and a
// Bearer JWT signed with the configured secret.
type AdminAuthenticator struct {
	User         string
	PasswordHash string
	Secret       string
}

// Identify inspects the Authorization header and returns the subject and
// role it proves.  ok is false when the header is missing, uses another
// scheme or carries invalid credentials.
func (a AdminAuthenticator) Identify(r *http.Request) (subject, role string, ok bool) {
	auth := r.Header.Get("Authorization")
	switch {
	case strings.HasPrefix(auth, "Bearer "):
		claims, err := utils.ParseAccessToken(a.Secret, strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			return "", "", false
		}
		return claims.Subject, claims.Role, true
	case strings.HasPrefix(auth, "Basic "):
		user, pass, found := r.BasicAuth()
		if !found || !utils.CheckCredentials(a.User, a.PasswordHash, user, pass) {
			return "", "", false
		}
		return user, utils.RoleAdmin, true
	}
	return "", "", false
}

// AdminAuth rejects requests without valid operator credentials with 401
// and stores the subject and role in the context for RequireRole.
func AdminAuth(a AdminAuthenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			subject, role, ok := a.Identify(c.Request())
			if !ok {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="ledwall"`)
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":   "unauthorized",
					"message": "valid admin credentials required",
				})
			}
			c.Set(ctxUserID, subject)
			c.Set(ctxRole, role)
			return next(c)
		}
	}
}

// DetectAdmin records the caller's identity when valid credentials are
// present and lets every request through.  Public routes use it to unlock
// admin-only query parameters.
func DetectAdmin(a AdminAuthenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				if subject, role, ok := a.Identify(c.Request()); ok {
					c.Set(ctxUserID, subject)
					c.Set(ctxRole, role)
				}
			}
			return next(c)
		}
	}
}
