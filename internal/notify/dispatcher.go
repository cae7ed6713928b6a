package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dispatcher is an in-process outbox.  Notify enqueues into a buffered
// channel and returns immediately; a fixed pool of workers drains the
// channel through a Sender.  When the buffer is full the message is dropped
// and logged.
type Dispatcher struct {
	sender  Sender
	log     *zap.Logger
	queue   chan Message
	workers int
	timeout time.Duration

	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started bool
}

// NewDispatcher builds a dispatcher with the given buffer size and worker
// count.  Non-positive values fall back to 64 and 1.
func NewDispatcher(sender Sender, log *zap.Logger, buffer, workers int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		sender:  sender,
		log:     log,
		queue:   make(chan Message, buffer),
		workers: workers,
		timeout: 30 * time.Second,
	}
}

// Start launches the workers.  Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.sender.Send(ctx, msg); err != nil {
			d.log.Warn("notification delivery failed",
				zap.String("kind", msg.Kind),
				zap.String("to", msg.To),
				zap.Uint64("reservation_id", msg.ReservationID),
				zap.Error(err))
		}
		cancel()
	}
}

// Notify enqueues msg without blocking.
func (d *Dispatcher) Notify(_ context.Context, msg Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notification dropped: dispatcher closed", zap.String("to", msg.To))
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.log.Warn("notification dropped: queue full",
			zap.String("kind", msg.Kind),
			zap.String("to", msg.To),
			zap.Uint64("reservation_id", msg.ReservationID))
	}
}

// Close stops accepting messages and waits until the workers have drained
// the queue or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
