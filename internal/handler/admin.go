package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/service"
	"github.com/iliyamo/ledwall/internal/utils"
)

// AdminCredentials is what the login endpoint checks against.
type AdminCredentials struct {
	User         string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

// AdminHandler serves the review gate and the operator tools.  Routes are
// expected to sit behind middleware.AdminAuth, except Login.
type AdminHandler struct {
	svc   *service.Booking
	creds AdminCredentials
	log   *zap.Logger
	now   func() time.Time
}

// NewAdminHandler constructs an AdminHandler.  It panics if svc is nil.
func NewAdminHandler(svc *service.Booking, creds AdminCredentials, log *zap.Logger) *AdminHandler {
	if svc == nil {
		panic("nil service passed to NewAdminHandler")
	}
	return &AdminHandler{svc: svc, creds: creds, log: log, now: time.Now}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/admin/login.  Credentials come from the Basic
// Authorization header or a JSON body; a bearer token is returned.
func (h *AdminHandler) Login(c echo.Context) error {
	user, pass, ok := c.Request().BasicAuth()
	if !ok {
		var body loginRequest
		if err := c.Bind(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		user, pass = body.Username, body.Password
	}
	if !utils.CheckCredentials(h.creds.User, h.creds.PasswordHash, user, pass) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "bad credentials"})
	}
	tok, err := utils.NewAccessToken(h.creds.JWTSecret, user, utils.RoleAdmin, h.creds.TokenTTL, h.now())
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.log.Info("admin login", zap.String("user", user))
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": tok.Token,
		"token_type":   "Bearer",
		"expires_at":   tok.Exp.Format(time.RFC3339),
	})
}

type videoResponse struct {
	VideoID      uint64 `json:"video_id"`
	FileKey      string `json:"file_key"`
	Status       string `json:"status"`
	Email        string `json:"email"`
	Uploaded     bool   `json:"uploaded"`
	SlotStartUTC string `json:"slot_start_utc"`
}

// ListVideos handles GET /api/admin/videos?status=&limit=.
func (h *AdminHandler) ListVideos(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "limit must be an integer")
		}
		limit = n
	}
	list, err := h.svc.ListReservations(c.Request().Context(), c.QueryParam("status"), limit)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]videoResponse, 0, len(list))
	for _, v := range list {
		out = append(out, videoResponse{
			VideoID:      v.ID,
			FileKey:      v.FileKey,
			Status:       string(v.Status),
			Email:        v.Email,
			Uploaded:     v.Uploaded,
			SlotStartUTC: v.SlotStart.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, out)
}

type validateRequest struct {
	VideoID uint64 `json:"video_id" validate:"required"`
	Action  string `json:"action" validate:"required"`
}

// Validate handles POST /api/admin/validate with action approve|reject.
func (h *AdminHandler) Validate(c echo.Context) error {
	var body validateRequest
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.svc.Review(c.Request().Context(), body.VideoID, body.Action)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"video_id": res.ID, "status": string(res.Status)})
}

type slotActionRequest struct {
	SlotID uint64 `json:"slot_id" validate:"required"`
	Action string `json:"action" validate:"required"`
}

// OverrideSlot handles POST /api/admin/slot with action block|free.
func (h *AdminHandler) OverrideSlot(c echo.Context) error {
	var body slotActionRequest
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	slot, err := h.svc.OverrideSlot(c.Request().Context(), body.SlotID, body.Action)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slot_id": slot.ID, "status": body.Action, "booked": slot.Booked})
}

// FreeSlot handles POST /api/admin/slots/:id/free.
func (h *AdminHandler) FreeSlot(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return badRequest(c, "invalid slot id")
	}
	slot, err := h.svc.FreeSlot(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slot_id": slot.ID, "booked": slot.Booked})
}
