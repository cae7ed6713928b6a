package repository

import (
	"context"
	"time"

	"github.com/iliyamo/ledwall/internal/model"
)

// Tx is the set of operations available inside a unit of work.  Methods
// prefixed with Lock take an exclusive row lock that is held until the
// unit of work commits or rolls back; every change to a slot's booked
// count must happen after LockSlot on that slot.
type Tx interface {
	// GetSlot reads a slot without locking it.
	GetSlot(ctx context.Context, id uint64) (model.Slot, error)
	// LockSlot reads a slot and locks its row.
	LockSlot(ctx context.Context, id uint64) (model.Slot, error)
	// SetBooked overwrites the booked count of a slot.
	SetBooked(ctx context.Context, id uint64, booked int) error
	// InsertSlots inserts the given slots, silently skipping any whose
	// start already exists.  It returns the number of rows inserted.
	InsertSlots(ctx context.Context, slots []model.Slot) (int, error)
	// ListSlots returns the slots starting in [from, to) ordered by start.
	ListSlots(ctx context.Context, from, to time.Time, freeOnly bool) ([]model.Slot, error)

	// CountLiveByClient counts pending and approved reservations of a client.
	CountLiveByClient(ctx context.Context, clientIP string) (int, error)
	// CreateReservation inserts r and populates its ID.
	CreateReservation(ctx context.Context, r *model.Reservation) error
	// LockReservation reads a reservation and locks its row.
	LockReservation(ctx context.Context, id uint64) (model.Reservation, error)
	// MarkUploaded sets the upload-confirmed flag.
	MarkUploaded(ctx context.Context, id uint64) error
	// SetStatus changes the review status.
	SetStatus(ctx context.Context, id uint64, status model.Status) error
	// ListStale returns up to limit pending, unconfirmed reservations
	// created at or before cutoff, ordered by id, without locking them.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]model.Reservation, error)
	// LockStale locks the reservations among ids that are still pending,
	// unconfirmed and created at or before cutoff, ordered by id.
	LockStale(ctx context.Context, ids []uint64, cutoff time.Time) ([]model.Reservation, error)
	// DeleteReservation removes a reservation.
	DeleteReservation(ctx context.Context, id uint64) error
	// ListReservations returns reservations in the given status joined with
	// their slot start, ordered by slot start.
	ListReservations(ctx context.Context, status model.Status, limit int) ([]model.ReservationView, error)
}

// Store runs units of work.  WithTx commits when fn returns nil and rolls
// back every change otherwise.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
