package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/errs"
	"github.com/iliyamo/ledwall/internal/model"
	"github.com/iliyamo/ledwall/internal/repository"
)

// ReleaseExpired deletes pending reservations whose upload was not
// confirmed within the grace period and gives their capacity back.  Each
// batch is one transaction: either every reservation in the batch is
// released or none is.  Slot counters never drop below zero.  It returns
// the number of reservations released.
func (b *Booking) ReleaseExpired(ctx context.Context) (int, error) {
	cutoff := b.now().UTC().Add(-b.policy.UploadGrace)
	total := 0
	for {
		n, err := b.releaseBatch(ctx, cutoff)
		total += n
		if err != nil {
			return total, fmt.Errorf("release expired: %w", err)
		}
		if n < b.policy.SweepBatch {
			break
		}
	}
	if total > 0 {
		b.log.Info("released expired reservations", zap.Int("count", total), zap.Time("cutoff", cutoff))
	}
	return total, nil
}

// releaseBatch releases one batch in a single transaction.  Candidates are
// read without locks, their slots are locked in id order and only then are
// the reservations locked and re-checked, so the sweep takes its locks in
// the same order as Reserve.
func (b *Booking) releaseBatch(ctx context.Context, cutoff time.Time) (int, error) {
	released := 0
	err := b.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		released = 0
		candidates, err := tx.ListStale(ctx, cutoff, b.policy.SweepBatch)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}
		ids := make([]uint64, 0, len(candidates))
		seen := make(map[uint64]bool)
		var slotIDs []uint64
		for _, r := range candidates {
			ids = append(ids, r.ID)
			if !seen[r.SlotID] {
				seen[r.SlotID] = true
				slotIDs = append(slotIDs, r.SlotID)
			}
		}
		sort.Slice(slotIDs, func(i, j int) bool { return slotIDs[i] < slotIDs[j] })
		slots := make(map[uint64]model.Slot, len(slotIDs))
		for _, id := range slotIDs {
			slot, err := tx.LockSlot(ctx, id)
			if errors.Is(err, errs.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			slots[id] = slot
		}

		stale, err := tx.LockStale(ctx, ids, cutoff)
		if err != nil {
			return err
		}
		perSlot := make(map[uint64]int)
		for _, r := range stale {
			perSlot[r.SlotID]++
		}
		for _, id := range slotIDs {
			slot, ok := slots[id]
			if !ok || perSlot[id] == 0 {
				continue
			}
			booked := slot.Booked - perSlot[id]
			if booked < 0 {
				booked = 0
			}
			if err := tx.SetBooked(ctx, id, booked); err != nil {
				return err
			}
		}
		for _, r := range stale {
			if err := tx.DeleteReservation(ctx, r.ID); err != nil {
				return err
			}
		}
		released = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// RunSweeper calls ReleaseExpired every interval until ctx is cancelled.
// Errors are logged and the loop keeps going.
func (b *Booking) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := b.ReleaseExpired(ctx); err != nil && ctx.Err() == nil {
				b.log.Warn("expiry sweep failed", zap.Error(err))
			}
		}
	}
}
