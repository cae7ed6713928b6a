package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/middleware"
	"github.com/iliyamo/ledwall/internal/service"
)

// slotTimeLayout renders local slot starts with minute precision and the
// zone offset, e.g. 2025-06-27T09:00+02:00.
const slotTimeLayout = "2006-01-02T15:04Z07:00"

// SlotHandler serves the public slot listing.
type SlotHandler struct {
	svc *service.Booking
	log *zap.Logger
}

// NewSlotHandler constructs a SlotHandler.  It panics if svc is nil.
func NewSlotHandler(svc *service.Booking, log *zap.Logger) *SlotHandler {
	if svc == nil {
		panic("nil service passed to NewSlotHandler")
	}
	return &SlotHandler{svc: svc, log: log}
}

type slotResponse struct {
	ID    uint64 `json:"id"`
	Start string `json:"start"`
	Free  int    `json:"free"`
}

// ListFree handles GET /api/slots.  Public callers always see today only;
// an authenticated admin may pass ?days_ahead=N to see and create the next
// N days as well.  days_ahead must be an integer in [0, MAX_DAYS_AHEAD].
func (h *SlotHandler) ListFree(c echo.Context) error {
	daysAhead := 0
	if raw := c.QueryParam("days_ahead"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > h.svc.Policy().MaxDaysAhead {
			return badRequest(c, "days_ahead must be an integer between 0 and "+strconv.Itoa(h.svc.Policy().MaxDaysAhead))
		}
		daysAhead = n
	}
	slots, err := h.svc.ListFreeSlots(c.Request().Context(), daysAhead, middleware.IsAdmin(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse{ID: s.ID, Start: s.Start.Format(slotTimeLayout), Free: s.Free})
	}
	return c.JSON(http.StatusOK, out)
}
