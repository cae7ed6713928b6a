package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/notify"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Consumer reads NotificationEvents from the queue and hands them to a
// Sender.  Messages that cannot be decoded or delivered are rejected
// without requeueing to avoid tight redelivery loops.
type Consumer struct {
	url      string
	queue    string
	sender   notify.Sender
	log      *zap.Logger
	prefetch int
	timeout  time.Duration
}

// NewConsumer returns a consumer for the given broker URL and queue.
func NewConsumer(url, queue string, sender notify.Sender, log *zap.Logger) *Consumer {
	if queue == "" {
		queue = DefaultQueueName
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{url: url, queue: queue, sender: sender, log: log, prefetch: 10, timeout: 30 * time.Second}
}

// Run connects to the broker and consumes until ctx is cancelled.  Lost
// connections are re-dialled with exponential back-off.  It returns
// ctx.Err() once the context is done.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		conn, err := dial(c.url, DefaultDialTimeout)
		if err != nil {
			c.log.Warn("worker: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = minBackoff

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("worker: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.log.Warn("worker: set QoS failed", zap.Error(err))
	}
	if err := declare(ch, c.queue); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("worker: consuming", zap.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle delivers one message and settles it.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	ev, err := decodeEvent(d.Body)
	if err != nil {
		c.log.Warn("worker: dropping malformed message", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.sender.Send(sendCtx, ev.Message); err != nil {
		c.log.Warn("worker: delivery failed",
			zap.String("kind", ev.Kind),
			zap.String("to", ev.To),
			zap.Uint64("reservation_id", ev.ReservationID),
			zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
