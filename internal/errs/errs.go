// Package errs holds the booking domain's sentinel errors. Repositories and
// services wrap them with context; handlers map them to HTTP status codes
// with errors.Is.
package errs

import "errors"

var (
	// ErrNotFound is returned when a slot or reservation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSlotFull is returned when a slot has no free capacity left.
	ErrSlotFull = errors.New("slot full")
	// ErrRateLimited is returned when a client already holds the maximum
	// number of live reservations.
	ErrRateLimited = errors.New("too many reservations for this client")
	// ErrAlreadyProcessed is returned when a reservation in a terminal state
	// is reviewed again.
	ErrAlreadyProcessed = errors.New("reservation already processed")
	// ErrUploadIncomplete is returned when a reservation is reviewed before
	// its upload was confirmed.
	ErrUploadIncomplete = errors.New("upload not completed")
	// ErrInvalidAction is returned for an unknown review, override or status
	// value.
	ErrInvalidAction = errors.New("invalid action")
)

// ErrUploadURL is returned when a reservation was stored but the upload URL
// could not be issued.
var ErrUploadURL = errors.New("upload url unavailable")
