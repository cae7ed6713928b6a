// Package router registers the HTTP routes and their middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ledwall/internal/handler"
	"github.com/iliyamo/ledwall/internal/middleware"
	"github.com/iliyamo/ledwall/internal/utils"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Slots  *handler.SlotHandler
	Upload *handler.UploadHandler
	Admin  *handler.AdminHandler
	Ready  echo.HandlerFunc
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/", handler.Root)
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", ready)
}

// RegisterPublic registers the visitor API under /api.  The public rate
// limiter applies to every route; the slot listing additionally detects
// admin credentials to unlock days_ahead.
func RegisterPublic(e *echo.Echo, h Handlers, auth middleware.AdminAuthenticator, limiter echo.MiddlewareFunc) {
	g := e.Group("/api", limiter)
	g.GET("/slots", h.Slots.ListFree, middleware.DetectAdmin(auth))
	g.POST("/upload_init", h.Upload.Init)
	g.POST("/upload_complete", h.Upload.Complete)
}

// RegisterAdmin registers the operator API under /api/admin.  Login is
// rate limited but unauthenticated; everything else requires Basic or
// Bearer credentials with the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, auth middleware.AdminAuthenticator, limiter echo.MiddlewareFunc) {
	e.POST("/api/admin/login", h.Login, limiter)

	g := e.Group("/api/admin",
		middleware.AdminAuth(auth),
		middleware.RequireRole(utils.RoleAdmin),
	)
	g.GET("/videos", h.ListVideos)
	g.POST("/validate", h.Validate)
	g.POST("/slot", h.OverrideSlot)
	g.POST("/slots/:id/free", h.FreeSlot)
}

// Register wires every route on e.
func Register(e *echo.Echo, h Handlers, auth middleware.AdminAuthenticator, limiter echo.MiddlewareFunc) {
	RegisterRoutes(e, h.Ready)
	RegisterPublic(e, h, auth, limiter)
	RegisterAdmin(e, h.Admin, auth, limiter)
}
