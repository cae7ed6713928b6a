package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/errs"
	"github.com/iliyamo/ledwall/internal/model"
	"github.com/iliyamo/ledwall/internal/repository"
)

// Listing limits for ListReservations.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Review moves a pending, uploaded reservation to approved or rejected.
// Rejection returns one unit of capacity to the slot, floored at zero.  The
// status notification is sent after commit and never undoes the decision.
func (b *Booking) Review(ctx context.Context, reservationID uint64, action string) (model.Reservation, error) {
	var target model.Status
	switch action {
	case model.ActionApprove:
		target = model.StatusApproved
	case model.ActionReject:
		target = model.StatusRejected
	default:
		return model.Reservation{}, fmt.Errorf("review action %q: %w", action, errs.ErrInvalidAction)
	}

	var (
		res  model.Reservation
		slot model.Slot
	)
	err := b.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = tx.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != model.StatusPending {
			return fmt.Errorf("reservation %d is %s: %w", res.ID, res.Status, errs.ErrAlreadyProcessed)
		}
		if !res.Uploaded {
			return fmt.Errorf("reservation %d: %w", res.ID, errs.ErrUploadIncomplete)
		}
		slot, err = tx.LockSlot(ctx, res.SlotID)
		if err != nil {
			return fmt.Errorf("slot of reservation %d: %w", res.ID, err)
		}
		if err := tx.SetStatus(ctx, res.ID, target); err != nil {
			return err
		}
		if target == model.StatusRejected {
			if slot.Booked > 0 {
				slot.Booked--
			}
			if err := tx.SetBooked(ctx, slot.ID, slot.Booked); err != nil {
				return err
			}
		}
		res.Status = target
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	b.log.Info("reservation reviewed",
		zap.Uint64("reservation_id", res.ID),
		zap.String("status", string(res.Status)))
	b.notify(ctx, b.statusMessage(res, slot))
	return res, nil
}

// OverrideSlot forces a slot to full ("block") or empty ("free") without
// touching its reservations.  This is an operator escape hatch and can make
// the booked count disagree with the live reservations of the slot.
func (b *Booking) OverrideSlot(ctx context.Context, slotID uint64, action string) (model.Slot, error) {
	if action != model.ActionBlock && action != model.ActionFree {
		return model.Slot{}, fmt.Errorf("slot action %q: %w", action, errs.ErrInvalidAction)
	}
	var slot model.Slot
	err := b.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		slot, err = tx.LockSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if action == model.ActionBlock {
			slot.Booked = slot.Capacity
		} else {
			slot.Booked = 0
		}
		return tx.SetBooked(ctx, slot.ID, slot.Booked)
	})
	if err != nil {
		return model.Slot{}, err
	}
	b.log.Info("slot overridden", zap.Uint64("slot_id", slot.ID), zap.String("action", action))
	return slot, nil
}

// FreeSlot resets a slot's booked count to zero.
func (b *Booking) FreeSlot(ctx context.Context, slotID uint64) (model.Slot, error) {
	return b.OverrideSlot(ctx, slotID, model.ActionFree)
}

// ListReservations returns reservations in the given status (pending when
// empty), earliest slot first.  The limit defaults to DefaultListLimit and
// is clamped to [1, MaxListLimit].
func (b *Booking) ListReservations(ctx context.Context, status string, limit int) ([]model.ReservationView, error) {
	st := model.StatusPending
	if status != "" {
		var ok bool
		if st, ok = model.ParseStatus(status); !ok {
			return nil, fmt.Errorf("status %q: %w", status, errs.ErrInvalidAction)
		}
	}
	switch {
	case limit == 0:
		limit = DefaultListLimit
	case limit < 1:
		limit = 1
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	var out []model.ReservationView
	err := b.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = tx.ListReservations(ctx, st, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}
