package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learnhub-core/internal/domain/shared"
)

var at = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func enrolled(courseID string) shared.Event {
	return shared.NewEnrollmentCreatedEvent("e-1", "s-1", courseID, 5000, at)
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})

	var got []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventEnrollmentCreated, func(e shared.Event) error {
		got = append(got, e.EventType())
		return nil
	}))
	var all int
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		all++
		return errors.New("ignored")
	}))

	require.NoError(t, bus.Publish(enrolled("c-1")))
	require.NoError(t, bus.Publish(shared.NewReviewSubmittedEvent("r-1", "c-1", "s-1", 5, at)))

	assert.Equal(t, []shared.EventType{shared.EventEnrollmentCreated}, got)
	assert.Equal(t, 2, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_RecoversPanics(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})
	require.NoError(t, bus.Subscribe(shared.EventEnrollmentCreated, func(shared.Event) error {
		panic("boom")
	}))

	assert.NotPanics(t, func() { _ = bus.Publish(enrolled("c-1")) })
	assert.Equal(t, int64(1), bus.Metrics().Snapshot().HandlerFailures)
}

func TestInMemoryEventBus_AsyncCloseWaitsForHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var handled atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventEnrollmentCreated, func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(enrolled("c-1")))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(10), handled.Load())
	assert.ErrorIs(t, bus.Publish(enrolled("c-1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventEnrollmentCreated, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

// ═══════════════════════════════════════════════════════════════════════════
// Redis bus over an in-process broker
// ═══════════════════════════════════════════════════════════════════════════

type broker struct {
	mu   sync.Mutex
	subs []chan RedisMessage
}

type brokerClient struct {
	b       *broker
	failPub bool
}

func (c *brokerClient) Publish(_ context.Context, channel string, message interface{}) error {
	if c.failPub {
		return errors.New("redis down")
	}
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	for _, ch := range c.b.subs {
		ch <- RedisMessage{Channel: channel, Payload: message.(string)}
	}
	return nil
}

func (c *brokerClient) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	ch := make(chan RedisMessage, 16)
	c.b.mu.Lock()
	c.b.subs = append(c.b.subs, ch)
	c.b.mu.Unlock()
	return ch, nil
}

func (c *brokerClient) Close() error { return nil }

func TestRedisEventBus_DeliversAcrossInstances(t *testing.T) {
	b := &broker{}

	api, err := NewRedisEventBus(RedisEventBusConfig{Client: &brokerClient{b: b}, InstanceID: "api", RemoteOnly: true})
	require.NoError(t, err)
	defer api.Close()

	worker, err := NewRedisEventBus(RedisEventBusConfig{Client: &brokerClient{b: b}, InstanceID: "worker"})
	require.NoError(t, err)
	defer worker.Close()

	var apiCalls atomic.Int32
	require.NoError(t, api.Subscribe(shared.EventEnrollmentCreated, func(shared.Event) error {
		apiCalls.Add(1)
		return nil
	}))

	got := make(chan shared.Event, 1)
	require.NoError(t, worker.Subscribe(shared.EventEnrollmentCreated, func(e shared.Event) error {
		got <- e
		return nil
	}))

	ev := shared.NewEnrollmentCreatedEvent("e-9", "s-1", "c-42", 5000, at)
	ev.BaseEvent = ev.BaseEvent.WithCorrelationID("req-1")
	require.NoError(t, api.Publish(ev))

	select {
	case e := <-got:
		assert.Equal(t, "e-9", e.AggregateID())
		scoped, ok := e.(shared.CourseScoped)
		require.True(t, ok)
		assert.Equal(t, "c-42", scoped.CourseRef())
		assert.Equal(t, "c-42", e.Payload()["course_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not receive the event")
	}
	assert.Zero(t, apiCalls.Load())
}

func TestRedisEventBus_FallsBackToLocal(t *testing.T) {
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         &brokerClient{b: &broker{}, failPub: true},
		RemoteOnly:     true,
		LocalBusConfig: InMemoryEventBusConfig{AsyncMode: false},
	})
	require.NoError(t, err)
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.Subscribe(shared.EventEnrollmentCreated, func(shared.Event) error {
		calls++
		return nil
	}))
	require.NoError(t, bus.Publish(enrolled("c-1")))
	assert.Equal(t, 1, calls)
}

func TestRedisEventBus_RequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(RedisEventBusConfig{})
	assert.Error(t, err)
}
