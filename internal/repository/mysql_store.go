package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/ledwall/internal/model"
)

// MySQLStore implements Store on top of a *sql.DB.  Each unit of work is a
// database transaction; row locks are taken with SELECT ... FOR UPDATE.
type MySQLStore struct {
	db           *sql.DB
	Slots        *SlotRepo
	Reservations *ReservationRepo
}

// NewMySQLStore wires the slot and reservation repositories around db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, Slots: NewSlotRepo(db), Reservations: NewReservationRepo(db)}
}

// DB exposes the underlying handle, e.g. for migrations.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// deadlockRetries is how many times a unit of work aborted by an InnoDB
// deadlock is run again.
const deadlockRetries = 3

// WithTx runs fn inside a transaction.  The transaction is rolled back when
// fn returns an error or panics and committed otherwise.  When InnoDB picks
// the transaction as a deadlock victim the whole unit of work is retried,
// so fn must only write to variables it fully reassigns on each run.
func (s *MySQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 0; attempt <= deadlockRetries; attempt++ {
		err = s.runTx(ctx, fn)
		if !isDeadlock(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (s *MySQLStore) runTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &mysqlTx{tx: tx, slots: s.Slots, res: s.Reservations}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// isDeadlock reports whether err is MySQL error 1213 (ER_LOCK_DEADLOCK).
func isDeadlock(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1213
}

// Ping verifies the database connection.
func (s *MySQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

type mysqlTx struct {
	tx    *sql.Tx
	slots *SlotRepo
	res   *ReservationRepo
}

func (t *mysqlTx) GetSlot(ctx context.Context, id uint64) (model.Slot, error) {
	return t.slots.GetByIDTx(ctx, t.tx, id)
}

func (t *mysqlTx) LockSlot(ctx context.Context, id uint64) (model.Slot, error) {
	return t.slots.LockByIDTx(ctx, t.tx, id)
}

func (t *mysqlTx) SetBooked(ctx context.Context, id uint64, booked int) error {
	return t.slots.SetBookedTx(ctx, t.tx, id, booked)
}

func (t *mysqlTx) InsertSlots(ctx context.Context, slots []model.Slot) (int, error) {
	return t.slots.InsertIgnoreTx(ctx, t.tx, slots)
}

func (t *mysqlTx) ListSlots(ctx context.Context, from, to time.Time, freeOnly bool) ([]model.Slot, error) {
	return t.slots.ListRangeTx(ctx, t.tx, from, to, freeOnly)
}

func (t *mysqlTx) CountLiveByClient(ctx context.Context, clientIP string) (int, error) {
	return t.res.CountLiveByClientTx(ctx, t.tx, clientIP)
}

func (t *mysqlTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	return t.res.CreateTx(ctx, t.tx, r)
}

func (t *mysqlTx) LockReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	return t.res.LockByIDTx(ctx, t.tx, id)
}

func (t *mysqlTx) MarkUploaded(ctx context.Context, id uint64) error {
	return t.res.MarkUploadedTx(ctx, t.tx, id)
}

func (t *mysqlTx) SetStatus(ctx context.Context, id uint64, status model.Status) error {
	return t.res.SetStatusTx(ctx, t.tx, id, status)
}

func (t *mysqlTx) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]model.Reservation, error) {
	return t.res.ListStaleTx(ctx, t.tx, cutoff, limit)
}

func (t *mysqlTx) LockStale(ctx context.Context, ids []uint64, cutoff time.Time) ([]model.Reservation, error) {
	return t.res.LockStaleTx(ctx, t.tx, ids, cutoff)
}

func (t *mysqlTx) DeleteReservation(ctx context.Context, id uint64) error {
	return t.res.DeleteTx(ctx, t.tx, id)
}

func (t *mysqlTx) ListReservations(ctx context.Context, status model.Status, limit int) ([]model.ReservationView, error) {
	return t.res.ListByStatusTx(ctx, t.tx, status, limit)
}
