package model

import "time"

// Status is the review state of a reservation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus returns the Status for s and whether s names a known state.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, true
	}
	return "", false
}

// Live reports whether a reservation in this state still holds one unit of
// its slot's booked count.
func (s Status) Live() bool { return s == StatusPending || s == StatusApproved }

// Reservation records a video submission bound to a single slot.  It
// progresses from pending to approved or rejected once the upload has been
// confirmed; unconfirmed pending reservations are deleted by the expiry
// sweep after the grace period.
//
// Fields:
//  ID        – primary key identifier.
//  SlotID    – slot the video is scheduled for.
//  Email     – contact address for status notifications.
//  FileKey   – object storage key the client uploads to.
//  Status    – pending, approved or rejected.
//  ClientIP  – normalised address of the submitting client.
//  Uploaded  – set once the client confirms the upload.
//  CreatedAt – creation timestamp (UTC).
type Reservation struct {
	ID        uint64    // videos.id
	SlotID    uint64    // videos.slot_id
	Email     string    // videos.email
	FileKey   string    // videos.filename
	Status    Status    // videos.status
	ClientIP  string    // videos.client_ip
	Uploaded  bool      // videos.uploaded
	CreatedAt time.Time // videos.created_at
}

// ReservationView is a reservation joined with the start of its slot, as
// listed for administrators.
type ReservationView struct {
	Reservation
	SlotStart time.Time
}

// Review actions accepted by the review gate.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Manual slot override actions.
const (
	ActionBlock = "block"
	ActionFree  = "free"
)
