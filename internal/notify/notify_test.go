package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type collect struct {
	mu    sync.Mutex
	got   []Message
	block chan struct{}
	err   error
}

func (c *collect) Send(_ context.Context, msg Message) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, msg)
	return c.err
}

func (c *collect) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := &collect{}
	d := NewDispatcher(sink, zap.NewNop(), 8, 2)
	d.Start()
	d.Start()
	for i := 0; i < 5; i++ {
		d.Notify(context.Background(), Message{Kind: KindReceived, To: "a@b.it", ReservationID: uint64(i)})
	}
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 5, sink.count())

	// Closed dispatchers drop silently.
	d.Notify(context.Background(), Message{To: "late@b.it"})
	assert.Equal(t, 5, sink.count())
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &collect{block: make(chan struct{})}
	d := NewDispatcher(sink, zap.New(core), 1, 1)

	// Not started: the single buffer slot fills up and the next message
	// is dropped.
	d.Notify(context.Background(), Message{To: "one@b.it"})
	d.Notify(context.Background(), Message{To: "two@b.it"})
	assert.Equal(t, 1, logs.FilterMessage("notification dropped: queue full").Len())

	d.Start()
	close(sink.block)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, sink.count())
}

func TestDispatcherLogsDeliveryFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewDispatcher(&collect{err: errors.New("smtp down")}, zap.New(core), 0, 0)
	d.Start()
	d.Notify(context.Background(), Message{Kind: KindRejected, To: "a@b.it"})
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("notification delivery failed").Len())
}

func TestDispatcherCloseHonoursDeadline(t *testing.T) {
	sink := &collect{block: make(chan struct{})}
	d := NewDispatcher(sink, zap.NewNop(), 4, 1)
	d.Start()
	d.Notify(context.Background(), Message{To: "a@b.it"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
	close(sink.block)
}

func TestLogSenderAndNotifierFunc(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, LogSender{Log: zap.New(core)}.Send(context.Background(), Message{Kind: KindApproved, To: "a@b.it"}))
	assert.Equal(t, 1, logs.FilterMessage("notification").Len())

	var got Message
	NotifierFunc(func(_ context.Context, m Message) { got = m }).Notify(context.Background(), Message{To: "x@y.it"})
	assert.Equal(t, "x@y.it", got.To)
}

func TestMailerBuild(t *testing.T) {
	m := NewMailer(SMTPConfig{Host: "smtp.test", Port: 587, From: "wall@example.com", Subject: "LedWall"})
	assert.Equal(t, 10*time.Second, m.cfg.Timeout)

	msg, err := m.build(Message{To: "visitor@example.com", Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"LedWall"}, msg.GetGenHeader("Subject"))

	msg, err = m.build(Message{To: "visitor@example.com", Subject: "Approved", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Approved"}, msg.GetGenHeader("Subject"))

	_, err = m.build(Message{To: "not an address"})
	assert.Error(t, err)
}
