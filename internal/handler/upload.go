package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/errs"
	"github.com/iliyamo/ledwall/internal/service"
)

// UploadHandler implements the two-step upload flow: reserve a slot and get
// a presigned URL, then confirm once the client has finished the PUT.
type UploadHandler struct {
	svc *service.Booking
	log *zap.Logger
}

// NewUploadHandler constructs an UploadHandler.  It panics if svc is nil.
func NewUploadHandler(svc *service.Booking, log *zap.Logger) *UploadHandler {
	if svc == nil {
		panic("nil service passed to NewUploadHandler")
	}
	return &UploadHandler{svc: svc, log: log}
}

type uploadInitRequest struct {
	SlotID       uint64 `json:"slot_id" validate:"required"`
	Email        string `json:"email" validate:"required,email,max=255"`
	OriginalName string `json:"original_name" validate:"required,max=255"`
}

type uploadInitResponse struct {
	VideoID   uint64 `json:"video_id"`
	UploadURL string `json:"upload_url"`
	FileKey   string `json:"file_key"`
	ExpiresAt string `json:"expires_at"`
}

// Init handles POST /api/upload_init.  It reserves one unit of the slot
// for the calling client and returns where to upload the video.
func (h *UploadHandler) Init(c echo.Context) error {
	var body uploadInitRequest
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.svc.Reserve(c.Request().Context(), service.ReserveRequest{
		SlotID:       body.SlotID,
		Email:        body.Email,
		ClientIP:     c.RealIP(),
		OriginalName: body.OriginalName,
	})
	if err != nil {
		if errors.Is(err, errs.ErrUploadURL) {
			h.log.Warn("reservation stored without upload url", zap.Uint64("video_id", res.ReservationID))
		}
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, uploadInitResponse{
		VideoID:   res.ReservationID,
		UploadURL: res.UploadURL,
		FileKey:   res.FileKey,
		ExpiresAt: res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type uploadCompleteRequest struct {
	VideoID uint64 `json:"video_id" validate:"required"`
}

// Complete handles POST /api/upload_complete.  Repeated confirmations
// succeed with msg "already flagged".
func (h *UploadHandler) Complete(c echo.Context) error {
	var body uploadCompleteRequest
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	already, err := h.svc.ConfirmUpload(c.Request().Context(), body.VideoID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if already {
		return c.JSON(http.StatusOK, echo.Map{"msg": "already flagged"})
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "ok"})
}
