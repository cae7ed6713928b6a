package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ledwall/internal/errs"
	"github.com/iliyamo/ledwall/internal/model"
)

var t0 = time.Date(2025, 6, 27, 7, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMySQLStore(db), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestMySQLStoreCommitsOnSuccess(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT id, start_utc, capacity, booked FROM time_slots WHERE id = ? FOR UPDATE`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "start_utc", "capacity", "booked"}).AddRow(7, t0, 5, 2))
	mock.ExpectExec(q(`UPDATE time_slots SET booked = ? WHERE id = ?`)).
		WithArgs(3, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		s, err := tx.LockSlot(ctx, 7)
		if err != nil {
			return err
		}
		assert.Equal(t, t0, s.StartUTC)
		return tx.SetBooked(ctx, s.ID, s.Booked+1)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreRollsBackOnError(t *testing.T) {
	store, mock := newMock(t)
	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(context.Context, Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreMissingRowIsNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q(`FROM videos WHERE id = ? FOR UPDATE`)).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LockReservation(ctx, 9)
		return err
	})
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSlotsOnlyWritesMissingStarts(t *testing.T) {
	store, mock := newMock(t)
	next := t0.Add(model.SlotDuration)
	last := t0.Add(2 * model.SlotDuration)
	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT start_utc FROM time_slots WHERE start_utc >= ? AND start_utc <= ?`)).
		WithArgs(t0, last).
		WillReturnRows(sqlmock.NewRows([]string{"start_utc"}).AddRow(t0).AddRow(last))
	mock.ExpectExec(q(`INSERT INTO time_slots (start_utc, capacity, booked) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE id = id`)).
		WithArgs(next, 5, 5).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	var n int
	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		n, err = tx.InsertSlots(ctx, []model.Slot{
			{StartUTC: last, Capacity: 5},
			{StartUTC: t0, Capacity: 5},
			{StartUTC: next, Capacity: 5, Booked: 5},
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSlotsSkipsWriteWhenAllExist(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT start_utc FROM time_slots`)).
		WithArgs(t0, t0).
		WillReturnRows(sqlmock.NewRows([]string{"start_utc"}).AddRow(t0))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		n, err := tx.InsertSlots(ctx, []model.Slot{{StartUTC: t0, Capacity: 5}})
		assert.Zero(t, n)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReservationStampsID(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM videos WHERE client_ip = ? AND status IN ('pending', 'approved')`)).
		WithArgs("198.51.100.4").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectExec(q(`INSERT INTO videos (slot_id, email, filename, status, client_ip, uploaded, created_at)`)).
		WithArgs(3, "a@b.it", "k.mp4", "pending", "198.51.100.4", false, t0).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	res := model.Reservation{SlotID: 3, Email: "a@b.it", FileKey: "k.mp4", Status: model.StatusPending,
		ClientIP: "198.51.100.4", CreatedAt: t0}
	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		live, err := tx.CountLiveByClient(ctx, res.ClientIP)
		if err != nil {
			return err
		}
		assert.Equal(t, 2, live)
		return tx.CreateReservation(ctx, &res)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaleReadThenLockByID(t *testing.T) {
	store, mock := newMock(t)
	cols := []string{"id", "slot_id", "email", "filename", "status", "client_ip", "uploaded", "created_at"}
	cutoff := t0.Add(-5 * time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE status = 'pending' AND uploaded = FALSE AND created_at <= \? ORDER BY id LIMIT \?$`).
		WithArgs(cutoff, 100).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 3, "a@b.it", "a.mp4", "pending", "10.0.0.1", false, cutoff).
			AddRow(2, 3, "c@d.it", "b.mp4", "pending", "10.0.0.2", false, cutoff))
	mock.ExpectQuery(`WHERE id IN \(\?, \?\) AND status = 'pending' AND uploaded = FALSE AND created_at <= \? ORDER BY id FOR UPDATE`).
		WithArgs(1, 2, cutoff).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(2, 3, "c@d.it", "b.mp4", "pending", "10.0.0.2", false, cutoff))
	mock.ExpectCommit()

	var listed, locked []model.Reservation
	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		if listed, err = tx.ListStale(ctx, cutoff, 100); err != nil {
			return err
		}
		locked, err = tx.LockStale(ctx, []uint64{listed[0].ID, listed[1].ID}, cutoff)
		return err
	})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "b.mp4", listed[1].FileKey)
	require.Len(t, locked, 1)
	assert.Equal(t, uint64(2), locked[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreRetriesDeadlockVictim(t *testing.T) {
	store, mock := newMock(t)
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	mock.ExpectBegin()
	mock.ExpectExec(q(`UPDATE time_slots SET booked = ? WHERE id = ?`)).WithArgs(1, 7).WillReturnError(deadlock)
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(q(`UPDATE time_slots SET booked = ? WHERE id = ?`)).WithArgs(1, 7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runs := 0
	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		runs++
		return tx.SetBooked(ctx, 7, 1)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreGivesUpAfterRepeatedDeadlocks(t *testing.T) {
	store, mock := newMock(t)
	deadlock := &mysql.MySQLError{Number: 1213}
	for i := 0; i <= deadlockRetries; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}
	runs := 0
	err := store.WithTx(context.Background(), func(context.Context, Tx) error {
		runs++
		return deadlock
	})
	assert.ErrorAs(t, err, &deadlock)
	assert.Equal(t, deadlockRetries+1, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReservationsJoinsSlotStart(t *testing.T) {
	store, mock := newMock(t)
	cols := []string{"id", "slot_id", "email", "filename", "status", "client_ip", "uploaded", "created_at", "start_utc"}
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)JOIN time_slots s ON s.id = v.slot_id\s+WHERE v.status = \?`).
		WithArgs("approved", 10).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(5, 3, "a@b.it", "a.mp4", "approved", "10.0.0.1", true, t0, t0))
	mock.ExpectCommit()

	var list []model.ReservationView
	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		list, err = tx.ListReservations(ctx, model.StatusApproved, 10)
		return err
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Uploaded)
	assert.Equal(t, t0, list[0].SlotStart)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStoreRestoresOnError(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.InsertSlots(ctx, []model.Slot{{StartUTC: t0, Capacity: 5}})
		return err
	}))

	err := m.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.SetBooked(ctx, 1, 4))
		res := model.Reservation{SlotID: 1, Status: model.StatusPending, ClientIP: "10.0.0.1"}
		require.NoError(t, tx.CreateReservation(ctx, &res))
		return errs.ErrSlotFull
	})
	assert.ErrorIs(t, err, errs.ErrSlotFull)

	s, ok := m.Slot(1)
	require.True(t, ok)
	assert.Equal(t, 0, s.Booked)
	_, ok = m.Reservation(1)
	assert.False(t, ok)
}

func TestMemoryStoreInsertSlotsIgnoresExisting(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	var first, second int
	require.NoError(t, m.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		first, err = tx.InsertSlots(ctx, []model.Slot{{StartUTC: t0, Capacity: 5}})
		if err != nil {
			return err
		}
		second, err = tx.InsertSlots(ctx, []model.Slot{
			{StartUTC: t0.In(time.FixedZone("X", 3600)), Capacity: 5, Booked: 5},
			{StartUTC: t0.Add(model.SlotDuration), Capacity: 5},
		})
		return err
	}))
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 2, m.SlotCount())
	s, _ := m.Slot(1)
	assert.Equal(t, 0, s.Booked)
}

func TestMemoryStoreRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMemoryStore().WithTx(ctx, func(context.Context, Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStoreNotFound(t *testing.T) {
	m := NewMemoryStore()
	err := m.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LockSlot(ctx, 1)
		return err
	})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
