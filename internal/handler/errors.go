package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/errs"
)

// errorStatus maps domain sentinels to an HTTP status and a stable code.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{errs.ErrNotFound, http.StatusNotFound, "not_found"},
	{errs.ErrSlotFull, http.StatusConflict, "slot_full"},
	{errs.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{errs.ErrAlreadyProcessed, http.StatusConflict, "already_processed"},
	{errs.ErrUploadIncomplete, http.StatusConflict, "upload_incomplete"},
	{errs.ErrInvalidAction, http.StatusBadRequest, "invalid_action"},
	{errs.ErrUploadURL, http.StatusBadGateway, "upload_url_unavailable"},
}

// writeError renders err as {"error": code, "message": text}.  Errors that
// are not domain sentinels are logged and reported as 500 without detail.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return c.JSON(m.status, echo.Map{"error": m.code, "message": m.err.Error()})
		}
	}
	log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "internal server error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad_request", "message": msg})
}

// bindValid binds the request body into dst and runs the registered
// validator.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		return err
	}
	return nil
}
