package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/ledwall/internal/model"
)

// ReservationRepo provides access to the videos table, which stores one row
// per reservation.  A reservation references exactly one time slot.  All
// timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, slot_id, email, filename, status, client_ip, uploaded, created_at`

func scanReservation(row interface{ Scan(...any) error }) (model.Reservation, error) {
	var (
		res    model.Reservation
		status string
	)
	if err := row.Scan(&res.ID, &res.SlotID, &res.Email, &res.FileKey, &status,
		&res.ClientIP, &res.Uploaded, &res.CreatedAt); err != nil {
		return model.Reservation{}, err
	}
	res.Status = model.Status(status)
	res.CreatedAt = res.CreatedAt.UTC()
	return res, nil
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID on res.  CreatedAt is written
// explicitly so that the expiry sweep compares against the same clock that
// stamped the row.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO videos (slot_id, email, filename, status, client_ip, uploaded, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.SlotID, res.Email, res.FileKey, string(res.Status),
		res.ClientIP, res.Uploaded, res.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// CountLiveByClientTx counts the pending and approved reservations
// submitted from clientIP.
func (r *ReservationRepo) CountLiveByClientTx(ctx context.Context, tx *sql.Tx, clientIP string) (int, error) {
	const q = `SELECT COUNT(*) FROM videos WHERE client_ip = ? AND status IN ('pending', 'approved')`
	var n int
	if err := tx.QueryRowContext(ctx, q, clientIP).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// LockByIDTx loads a reservation with SELECT ... FOR UPDATE.
func (r *ReservationRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM videos WHERE id = ? FOR UPDATE`, id)
	res, err := scanReservation(row)
	if err != nil {
		return model.Reservation{}, noRows(err, reservationNotFound(id))
	}
	return res, nil
}

// MarkUploadedTx flags the reservation's upload as confirmed.
func (r *ReservationRepo) MarkUploadedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `UPDATE videos SET uploaded = TRUE WHERE id = ?`, id)
	return err
}

// SetStatusTx updates the review status.
func (r *ReservationRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.Status) error {
	_, err := tx.ExecContext(ctx, `UPDATE videos SET status = ? WHERE id = ?`, string(status), id)
	return err
}

// ListStaleTx returns pending reservations whose upload was never
// confirmed and which were created at or before cutoff, ordered by id.  It
// is a plain consistent read: no row or gap locks are taken, so the sweep
// can lock slots before it locks reservations, the same order Reserve uses.
func (r *ReservationRepo) ListStaleTx(ctx context.Context, tx *sql.Tx, cutoff time.Time, limit int) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM videos
          WHERE status = 'pending' AND uploaded = FALSE AND created_at <= ?
          ORDER BY id LIMIT ?`
	rows, err := tx.QueryContext(ctx, q, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// LockStaleTx locks the rows among ids by primary key and re-checks the
// stale predicate, dropping reservations confirmed since ListStaleTx.
func (r *ReservationRepo) LockStaleTx(ctx context.Context, tx *sql.Tx, ids []uint64, cutoff time.Time) ([]model.Reservation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, cutoff.UTC())
	q := `SELECT ` + reservationColumns + ` FROM videos
          WHERE id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)
            AND status = 'pending' AND uploaded = FALSE AND created_at <= ?
          ORDER BY id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// DeleteTx removes a reservation row.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	return err
}

// ListByStatusTx returns reservations in the given status joined with the
// start of their slot, earliest slot first.
func (r *ReservationRepo) ListByStatusTx(ctx context.Context, tx *sql.Tx, status model.Status, limit int) ([]model.ReservationView, error) {
	const q = `SELECT v.id, v.slot_id, v.email, v.filename, v.status, v.client_ip, v.uploaded, v.created_at, s.start_utc
               FROM videos v
               JOIN time_slots s ON s.id = v.slot_id
               WHERE v.status = ?
               ORDER BY s.start_utc, v.id
               LIMIT ?`
	rows, err := tx.QueryContext(ctx, q, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ReservationView{}
	for rows.Next() {
		var (
			v  model.ReservationView
			st string
		)
		if err := rows.Scan(&v.ID, &v.SlotID, &v.Email, &v.FileKey, &st,
			&v.ClientIP, &v.Uploaded, &v.CreatedAt, &v.SlotStart); err != nil {
			return nil, err
		}
		v.Status = model.Status(st)
		v.CreatedAt = v.CreatedAt.UTC()
		v.SlotStart = v.SlotStart.UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}
