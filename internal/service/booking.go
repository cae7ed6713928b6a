package service

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/errs"
	"github.com/iliyamo/ledwall/internal/model"
	"github.com/iliyamo/ledwall/internal/repository"
)

// UnknownClientIP is recorded when the client address cannot be parsed.
const UnknownClientIP = "0.0.0.0"

// NormalizeClientIP returns the canonical text form of raw, or
// UnknownClientIP when raw is not an IP address.
func NormalizeClientIP(raw string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return UnknownClientIP
	}
	return addr.Unmap().String()
}

// ReserveRequest is the input of Reserve.
type ReserveRequest struct {
	SlotID       uint64
	Email        string
	ClientIP     string
	OriginalName string
}

// ReserveResult is returned by a successful Reserve.
type ReserveResult struct {
	ReservationID uint64
	FileKey       string
	UploadURL     string
	ExpiresAt     time.Time
}

// Reserve books one unit of a slot for a visitor.  The per-client quota is
// checked first, then the slot row is locked and its capacity checked; the
// reservation insert and the counter increment commit together.  The upload
// URL is presigned after commit.  If presigning fails the reservation is
// kept and errs.ErrUploadURL is returned alongside the partial result; the
// expiry sweep reclaims the slot.
func (b *Booking) Reserve(ctx context.Context, req ReserveRequest) (ReserveResult, error) {
	clientIP := NormalizeClientIP(req.ClientIP)
	email := strings.TrimSpace(req.Email)
	res := model.Reservation{
		SlotID:   req.SlotID,
		Email:    email,
		FileKey:  b.storage.NewKey(req.OriginalName),
		Status:   model.StatusPending,
		ClientIP: clientIP,
		Uploaded: false,
	}
	err := b.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		live, err := tx.CountLiveByClient(ctx, clientIP)
		if err != nil {
			return err
		}
		if live >= b.policy.MaxLivePerClient {
			return fmt.Errorf("client %s holds %d reservations: %w", clientIP, live, errs.ErrRateLimited)
		}
		slot, err := tx.LockSlot(ctx, req.SlotID)
		if err != nil {
			return err
		}
		if slot.Full() {
			return fmt.Errorf("slot %d: %w", slot.ID, errs.ErrSlotFull)
		}
		res.CreatedAt = b.now().UTC()
		if err := tx.CreateReservation(ctx, &res); err != nil {
			return err
		}
		return tx.SetBooked(ctx, slot.ID, slot.Booked+1)
	})
	if err != nil {
		return ReserveResult{}, err
	}
	b.log.Info("slot reserved",
		zap.Uint64("reservation_id", res.ID),
		zap.Uint64("slot_id", res.SlotID),
		zap.String("client_ip", clientIP))

	out := ReserveResult{ReservationID: res.ID, FileKey: res.FileKey}
	url, err := b.storage.PresignPut(ctx, res.FileKey, b.policy.UploadURLTTL)
	if err != nil {
		b.log.Error("presign upload url", zap.Uint64("reservation_id", res.ID), zap.Error(err))
		return out, fmt.Errorf("%w: %v", errs.ErrUploadURL, err)
	}
	out.UploadURL = url
	out.ExpiresAt = b.now().UTC().Add(b.policy.UploadURLTTL)
	return out, nil
}

// ConfirmUpload marks the upload of a reservation as complete and sends the
// "received" notification.  It reports already=true, without side effects,
// when the upload had been confirmed before.
func (b *Booking) ConfirmUpload(ctx context.Context, reservationID uint64) (already bool, err error) {
	var (
		res  model.Reservation
		slot model.Slot
	)
	err = b.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = tx.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Uploaded {
			already = true
			return nil
		}
		if err := tx.MarkUploaded(ctx, res.ID); err != nil {
			return err
		}
		res.Uploaded = true
		slot, err = tx.GetSlot(ctx, res.SlotID)
		if errors.Is(err, errs.ErrNotFound) {
			// The confirmation stands even if the slot row is gone; the
			// message simply omits the time.
			return nil
		}
		return err
	})
	if err != nil || already {
		return already, err
	}
	b.notify(ctx, b.receivedMessage(res, slot))
	return false, nil
}
