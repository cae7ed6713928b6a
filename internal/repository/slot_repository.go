package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/ledwall/internal/model"
)

// insertChunk bounds the number of rows sent in a single INSERT so that the
// statement stays well below MySQL's placeholder limit.
const insertChunk = 500

// SlotRepo provides data access to the time_slots table.  All timestamps
// are stored and compared in UTC.  Mutating methods run inside a caller
// supplied transaction; the caller is responsible for committing or
// rolling back.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a new SlotRepo bound to the provided database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `id, start_utc, capacity, booked`

func scanSlot(row interface{ Scan(...any) error }) (model.Slot, error) {
	var s model.Slot
	if err := row.Scan(&s.ID, &s.StartUTC, &s.Capacity, &s.Booked); err != nil {
		return model.Slot{}, err
	}
	s.StartUTC = s.StartUTC.UTC()
	return s, nil
}

// GetByIDTx reads a slot without taking a lock.
func (r *SlotRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Slot, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM time_slots WHERE id = ?`, id)
	s, err := scanSlot(row)
	if err != nil {
		return model.Slot{}, noRows(err, slotNotFound(id))
	}
	return s, nil
}

// LockByIDTx reads a slot with SELECT ... FOR UPDATE.  The row stays locked
// until tx ends, which serialises concurrent read-modify-write cycles on
// the booked counter.
func (r *SlotRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Slot, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM time_slots WHERE id = ? FOR UPDATE`, id)
	s, err := scanSlot(row)
	if err != nil {
		return model.Slot{}, noRows(err, slotNotFound(id))
	}
	return s, nil
}

// SetBookedTx overwrites the booked counter of a slot.  The caller must
// hold the row lock.
func (r *SlotRepo) SetBookedTx(ctx context.Context, tx *sql.Tx, id uint64, booked int) error {
	_, err := tx.ExecContext(ctx, `UPDATE time_slots SET booked = ? WHERE id = ?`, booked, id)
	return err
}

// InsertIgnoreTx inserts the slots whose start_utc does not exist yet and
// returns how many rows were created.  Existing starts are found with a
// plain consistent read, so slots already in the window are never locked
// and listing does not queue behind in-flight reservations.  A concurrent
// materialiser may still insert the same start in between; the unique key
// and ON DUPLICATE KEY UPDATE turn that race into a no-op.
func (r *SlotRepo) InsertIgnoreTx(ctx context.Context, tx *sql.Tx, slots []model.Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	existing, err := r.existingStarts(ctx, tx, slots)
	if err != nil {
		return 0, err
	}
	missing := make([]model.Slot, 0, len(slots))
	for _, s := range slots {
		if !existing[s.StartUTC.UTC().UnixNano()] {
			missing = append(missing, s)
		}
	}
	inserted := 0
	for start := 0; start < len(missing); start += insertChunk {
		end := start + insertChunk
		if end > len(missing) {
			end = len(missing)
		}
		chunk := missing[start:end]
		var b strings.Builder
		b.WriteString(`INSERT INTO time_slots (start_utc, capacity, booked) VALUES `)
		args := make([]any, 0, len(chunk)*3)
		for i, s := range chunk {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString("(?, ?, ?)")
			args = append(args, s.StartUTC.UTC(), s.Capacity, s.Booked)
		}
		b.WriteString(` ON DUPLICATE KEY UPDATE id = id`)
		res, err := tx.ExecContext(ctx, b.String(), args...)
		if err != nil {
			return inserted, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

// existingStarts returns the start instants already stored between the
// earliest and the latest start of slots, keyed by UnixNano.
func (r *SlotRepo) existingStarts(ctx context.Context, tx *sql.Tx, slots []model.Slot) (map[int64]bool, error) {
	lo, hi := slots[0].StartUTC, slots[0].StartUTC
	for _, s := range slots[1:] {
		if s.StartUTC.Before(lo) {
			lo = s.StartUTC
		}
		if s.StartUTC.After(hi) {
			hi = s.StartUTC
		}
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT start_utc FROM time_slots WHERE start_utc >= ? AND start_utc <= ?`, lo.UTC(), hi.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]bool)
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out[t.UTC().UnixNano()] = true
	}
	return out, rows.Err()
}

// ListRangeTx returns slots with from <= start_utc < to in ascending order.
// When freeOnly is set, slots at capacity are skipped.
func (r *SlotRepo) ListRangeTx(ctx context.Context, tx *sql.Tx, from, to time.Time, freeOnly bool) ([]model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM time_slots WHERE start_utc >= ? AND start_utc < ?`
	if freeOnly {
		q += ` AND booked < capacity`
	}
	q += ` ORDER BY start_utc`
	rows, err := tx.QueryContext(ctx, q, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
