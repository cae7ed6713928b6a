// Package service implements the booking core: slot materialisation,
// reservations, the expiry sweep and the review gate.  Every mutation of a
// slot's booked counter happens inside a repository unit of work after the
// slot row has been locked.  Calls to object storage and notifications are
// made only after the unit of work has committed.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/notify"
	"github.com/iliyamo/ledwall/internal/objectstore"
	"github.com/iliyamo/ledwall/internal/repository"
)

// Policy holds the booking rules.  It is built once from configuration.
type Policy struct {
	Location         *time.Location // zone used for open hours and display
	SlotCapacity     int            // capacity of newly materialised slots
	OpenHour         int            // first open hour, inclusive
	CloseHour        int            // last open hour, exclusive
	MaxLivePerClient int            // pending+approved reservations per client
	UploadGrace      time.Duration  // time allowed to confirm an upload
	UploadURLTTL     time.Duration  // lifetime of presigned upload URLs
	MaxDaysAhead     int            // upper bound for admin listings
	SweepBatch       int            // reservations released per transaction
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		loc = time.UTC
	}
	return Policy{
		Location:         loc,
		SlotCapacity:     5,
		OpenHour:         9,
		CloseHour:        18,
		MaxLivePerClient: 5,
		UploadGrace:      5 * time.Minute,
		UploadURLTTL:     15 * time.Minute,
		MaxDaysAhead:     30,
		SweepBatch:       500,
	}
}

// Booking is the booking core.  It is safe for concurrent use.
type Booking struct {
	store    repository.Store
	storage  objectstore.Storage
	notifier notify.Notifier
	log      *zap.Logger
	policy   Policy
	now      func() time.Time
}

// Option customises a Booking.
type Option func(*Booking)

// WithClock replaces time.Now, e.g. to age reservations in tests.
func WithClock(now func() time.Time) Option {
	return func(b *Booking) { b.now = now }
}

// New wires the booking core.  A nil logger is replaced by a no-op logger.
func New(store repository.Store, storage objectstore.Storage, notifier notify.Notifier, log *zap.Logger, policy Policy, opts ...Option) *Booking {
	if store == nil || storage == nil || notifier == nil {
		panic("nil dependency passed to service.New")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	if policy.SweepBatch <= 0 {
		policy.SweepBatch = 500
	}
	b := &Booking{
		store:    store,
		storage:  storage,
		notifier: notifier,
		log:      log,
		policy:   policy,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Policy returns the active booking rules.
func (b *Booking) Policy() Policy { return b.policy }

// Ping checks the backing store.
func (b *Booking) Ping(ctx context.Context) error { return b.store.Ping(ctx) }

// notify hands msg to the notifier, detached from the caller's
// cancellation so that a finished request does not abort delivery.
func (b *Booking) notify(ctx context.Context, msg notify.Message) {
	b.notifier.Notify(context.WithoutCancel(ctx), msg)
}
