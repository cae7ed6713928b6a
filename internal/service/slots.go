package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/ledwall/internal/model"
	"github.com/iliyamo/ledwall/internal/repository"
)

// SlotView is a free slot as presented to visitors.
type SlotView struct {
	ID    uint64
	Start time.Time // in the policy location
	Free  int
}

// alignUp rounds t up to the next slot boundary; aligned instants are
// returned unchanged.
func alignUp(t time.Time) time.Time {
	a := t.Truncate(model.SlotDuration)
	if a.Before(t) {
		a = a.Add(model.SlotDuration)
	}
	return a
}

// isOpen reports whether a slot starting at t falls inside opening hours in
// the policy location.
func (b *Booking) isOpen(t time.Time) bool {
	h := t.In(b.policy.Location).Hour()
	return h >= b.policy.OpenHour && h < b.policy.CloseHour
}

// planSlots returns one slot per boundary in [start, end).  Slots outside
// opening hours are created already full.
func (b *Booking) planSlots(start, end time.Time) []model.Slot {
	var out []model.Slot
	for t := alignUp(start); t.Before(end); t = t.Add(model.SlotDuration) {
		s := model.Slot{StartUTC: t.UTC(), Capacity: b.policy.SlotCapacity}
		if !b.isOpen(t) {
			s.Booked = s.Capacity
		}
		out = append(out, s)
	}
	return out
}

// Materialize creates every missing slot in [start, end).  Existing slots
// are left untouched, so calling it again for the same or an overlapping
// window is harmless.  It returns the number of slots created.
func (b *Booking) Materialize(ctx context.Context, start, end time.Time) (int, error) {
	plan := b.planSlots(start, end)
	if len(plan) == 0 {
		return 0, nil
	}
	var created int
	err := b.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		n, err := tx.InsertSlots(ctx, plan)
		created = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("materialize slots: %w", err)
	}
	return created, nil
}

// Window returns the listing window starting at local midnight of the
// current day and spanning daysAhead+1 days.
func (b *Booking) Window(daysAhead int) (time.Time, time.Time) {
	y, m, d := b.now().In(b.policy.Location).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, b.policy.Location)
	return start, start.AddDate(0, 0, daysAhead+1)
}

// ListFreeSlots materialises the listing window, releases expired
// reservations and returns the slots that still have capacity.  Only
// administrators may look beyond today; daysAhead is ignored otherwise and
// clamped to the configured maximum for them.
func (b *Booking) ListFreeSlots(ctx context.Context, daysAhead int, admin bool) ([]SlotView, error) {
	if !admin || daysAhead < 0 {
		daysAhead = 0
	}
	if daysAhead > b.policy.MaxDaysAhead {
		daysAhead = b.policy.MaxDaysAhead
	}
	start, end := b.Window(daysAhead)
	if _, err := b.Materialize(ctx, start, end); err != nil {
		return nil, err
	}
	if _, err := b.ReleaseExpired(ctx); err != nil {
		return nil, err
	}
	var slots []model.Slot
	err := b.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		slots, err = tx.ListSlots(ctx, start, end, true)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	out := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotView{ID: s.ID, Start: s.StartUTC.In(b.policy.Location), Free: s.Free()})
	}
	return out, nil
}
