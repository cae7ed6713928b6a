package handler // package handler contains the HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is a liveness probe.  It returns a plain text "ok".
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Root is the status banner served at "/".
func Root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "message": "LedWall portal online"})
}

// Ready returns a readiness probe that fails with 503 while ping fails.
func Ready(ping func(ctx context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "unavailable", "message": "store unreachable"})
		}
		return c.String(http.StatusOK, "ready")
	}
}
