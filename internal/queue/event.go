// Package queue carries visitor notifications over RabbitMQ.  The API
// process publishes NotificationEvents to a durable queue; the worker
// process consumes them and delivers each one through a notify.Sender.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/ledwall/internal/notify"
)

// DefaultQueueName is used when no queue name is configured.
const DefaultQueueName = "ledwall.notifications"

// NotificationEvent is the payload published for every outbound e-mail.  It
// contains everything the worker needs, so delivery never queries the
// primary database.
type NotificationEvent struct {
	notify.Message
	QueuedAt string `json:"queued_at"`
}

// NewNotificationEvent stamps msg with the current time.
func NewNotificationEvent(msg notify.Message, now time.Time) NotificationEvent {
	return NotificationEvent{Message: msg, QueuedAt: now.UTC().Format(time.RFC3339)}
}

func encodeEvent(ev NotificationEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func decodeEvent(body []byte) (NotificationEvent, error) {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return NotificationEvent{}, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.To == "" {
		return NotificationEvent{}, fmt.Errorf("event for reservation %d has no recipient", ev.ReservationID)
	}
	return ev, nil
}
