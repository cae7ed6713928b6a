// Package notify delivers best-effort status e-mails to visitors.  Callers
// hand a Message to a Notifier after their transaction has committed; the
// Notifier never reports delivery failures back, it only logs them.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message kinds.
const (
	KindReceived = "received"
	KindApproved = "approved"
	KindRejected = "rejected"
)

// Message is a single outbound notification.
type Message struct {
	Kind          string `json:"kind"`
	To            string `json:"to"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	ReservationID uint64 `json:"reservation_id"`
}

// Notifier accepts messages for asynchronous delivery.  Notify must not
// block on the network for long and must not return delivery errors.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// Sender performs the actual delivery of one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of sending them.  It is used
// in development and as the fallback when SMTP is not configured.
type LogSender struct {
	Log *zap.Logger
}

// Send logs msg and always succeeds.
func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Log.Info("notification",
		zap.String("kind", msg.Kind),
		zap.String("to", msg.To),
		zap.Uint64("reservation_id", msg.ReservationID),
		zap.String("body", msg.Body))
	return nil
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, msg Message)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, msg Message) { f(ctx, msg) }
