// Package repository implements persistence for slots and reservations.
// Business code works against the Store and Tx interfaces; the MySQL
// implementation backs production and the memory implementation backs
// tests and local development.  Lookups of missing rows return errors
// wrapping errs.ErrNotFound so that higher layers can map them with
// errors.Is.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/ledwall/internal/errs"
)

// slotNotFound wraps errs.ErrNotFound for a missing slot.
func slotNotFound(id uint64) error {
	return fmt.Errorf("slot %d: %w", id, errs.ErrNotFound)
}

// reservationNotFound wraps errs.ErrNotFound for a missing reservation.
func reservationNotFound(id uint64) error {
	return fmt.Errorf("reservation %d: %w", id, errs.ErrNotFound)
}

// noRows translates sql.ErrNoRows into the supplied not-found error and
// leaves any other error untouched.
func noRows(err error, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}
