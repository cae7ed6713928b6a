package repository

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/ledwall/internal/model"
)

// MemoryStore is an in-process Store used by tests and by STORE_DRIVER=memory.
// Units of work are serialised by a single mutex, which gives every Lock*
// call the same exclusion a row lock would.  A snapshot taken at the start
// of each unit of work is restored when it fails.
type MemoryStore struct {
	mu           sync.Mutex
	nextSlot     uint64
	nextRes      uint64
	slots        map[uint64]model.Slot
	byStart      map[int64]uint64
	reservations map[uint64]model.Reservation
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:        make(map[uint64]model.Slot),
		byStart:      make(map[int64]uint64),
		reservations: make(map[uint64]model.Reservation),
	}
}

type memSnapshot struct {
	nextSlot, nextRes uint64
	slots             map[uint64]model.Slot
	byStart           map[int64]uint64
	reservations      map[uint64]model.Reservation
}

func (m *MemoryStore) snapshot() memSnapshot {
	return memSnapshot{
		nextSlot:     m.nextSlot,
		nextRes:      m.nextRes,
		slots:        maps.Clone(m.slots),
		byStart:      maps.Clone(m.byStart),
		reservations: maps.Clone(m.reservations),
	}
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.nextSlot, m.nextRes = s.nextSlot, s.nextRes
	m.slots, m.byStart, m.reservations = s.slots, s.byStart, s.reservations
}

// WithTx runs fn while holding the store lock.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	committed := false
	defer func() {
		if !committed {
			m.restore(snap)
		}
	}()
	if err := fn(ctx, memTx{m}); err != nil {
		return err
	}
	committed = true
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Slot returns a copy of a slot outside any unit of work.  Intended for
// assertions in tests.
func (m *MemoryStore) Slot(id uint64) (model.Slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	return s, ok
}

// Reservation returns a copy of a reservation outside any unit of work.
func (m *MemoryStore) Reservation(id uint64) (model.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	return r, ok
}

// SlotCount returns the number of materialised slots.
func (m *MemoryStore) SlotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// memTx operates on the store directly; the caller holds m.mu.
type memTx struct{ m *MemoryStore }

func (t memTx) GetSlot(_ context.Context, id uint64) (model.Slot, error) {
	s, ok := t.m.slots[id]
	if !ok {
		return model.Slot{}, slotNotFound(id)
	}
	return s, nil
}

func (t memTx) LockSlot(ctx context.Context, id uint64) (model.Slot, error) {
	return t.GetSlot(ctx, id)
}

func (t memTx) SetBooked(_ context.Context, id uint64, booked int) error {
	s, ok := t.m.slots[id]
	if !ok {
		return slotNotFound(id)
	}
	s.Booked = booked
	t.m.slots[id] = s
	return nil
}

func (t memTx) InsertSlots(_ context.Context, slots []model.Slot) (int, error) {
	inserted := 0
	for _, s := range slots {
		key := s.StartUTC.UTC().UnixNano()
		if _, exists := t.m.byStart[key]; exists {
			continue
		}
		t.m.nextSlot++
		s.ID = t.m.nextSlot
		s.StartUTC = s.StartUTC.UTC()
		t.m.slots[s.ID] = s
		t.m.byStart[key] = s.ID
		inserted++
	}
	return inserted, nil
}

func (t memTx) ListSlots(_ context.Context, from, to time.Time, freeOnly bool) ([]model.Slot, error) {
	out := []model.Slot{}
	for _, s := range t.m.slots {
		if s.StartUTC.Before(from) || !s.StartUTC.Before(to) {
			continue
		}
		if freeOnly && s.Full() {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartUTC.Before(out[j].StartUTC) })
	return out, nil
}

func (t memTx) CountLiveByClient(_ context.Context, clientIP string) (int, error) {
	n := 0
	for _, r := range t.m.reservations {
		if r.ClientIP == clientIP && r.Status.Live() {
			n++
		}
	}
	return n, nil
}

func (t memTx) CreateReservation(_ context.Context, r *model.Reservation) error {
	if _, ok := t.m.slots[r.SlotID]; !ok {
		return slotNotFound(r.SlotID)
	}
	t.m.nextRes++
	r.ID = t.m.nextRes
	t.m.reservations[r.ID] = *r
	return nil
}

func (t memTx) LockReservation(_ context.Context, id uint64) (model.Reservation, error) {
	r, ok := t.m.reservations[id]
	if !ok {
		return model.Reservation{}, reservationNotFound(id)
	}
	return r, nil
}

func (t memTx) MarkUploaded(_ context.Context, id uint64) error {
	r, ok := t.m.reservations[id]
	if !ok {
		return reservationNotFound(id)
	}
	r.Uploaded = true
	t.m.reservations[id] = r
	return nil
}

func (t memTx) SetStatus(_ context.Context, id uint64, status model.Status) error {
	r, ok := t.m.reservations[id]
	if !ok {
		return reservationNotFound(id)
	}
	r.Status = status
	t.m.reservations[id] = r
	return nil
}

func stale(r model.Reservation, cutoff time.Time) bool {
	return r.Status == model.StatusPending && !r.Uploaded && !r.CreatedAt.After(cutoff)
}

func (t memTx) ListStale(_ context.Context, cutoff time.Time, limit int) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range t.m.reservations {
		if stale(r, cutoff) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t memTx) LockStale(_ context.Context, ids []uint64, cutoff time.Time) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, id := range ids {
		if r, ok := t.m.reservations[id]; ok && stale(r, cutoff) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t memTx) DeleteReservation(_ context.Context, id uint64) error {
	delete(t.m.reservations, id)
	return nil
}

func (t memTx) ListReservations(_ context.Context, status model.Status, limit int) ([]model.ReservationView, error) {
	out := []model.ReservationView{}
	for _, r := range t.m.reservations {
		if r.Status != status {
			continue
		}
		out = append(out, model.ReservationView{Reservation: r, SlotStart: t.m.slots[r.SlotID].StartUTC})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SlotStart.Equal(out[j].SlotStart) {
			return out[i].SlotStart.Before(out[j].SlotStart)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
