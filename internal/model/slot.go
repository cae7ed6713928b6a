package model

import "time"

// SlotDuration is the fixed length of a bookable interval.
const SlotDuration = 5 * time.Minute

// Slot is a bookable 5-minute interval.  Booked never exceeds Capacity and
// never drops below zero; it is only changed while the row is locked.
//
// Fields:
//  ID       – primary key identifier.
//  StartUTC – start of the interval, aligned to SlotDuration (unique).
//  Capacity – number of videos the slot can hold.
//  Booked   – units currently held by live reservations (or forced by an
//             operator override).
type Slot struct {
	ID       uint64    // time_slots.id
	StartUTC time.Time // time_slots.start_utc
	Capacity int       // time_slots.capacity
	Booked   int       // time_slots.booked
}

// Free returns the remaining capacity of the slot.
func (s Slot) Free() int {
	if s.Booked >= s.Capacity {
		return 0
	}
	return s.Capacity - s.Booked
}

// Full reports whether no further reservation fits in the slot.
func (s Slot) Full() bool { return s.Booked >= s.Capacity }
