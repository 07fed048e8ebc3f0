package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/backoffice/pkg/enums"
	"github.com/stockline/backoffice/pkg/idempotency"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
)

type memoryDeduper struct {
	mu     sync.Mutex
	states map[string]string
}

func (d *memoryDeduper) key(consumer string, id uuid.UUID) string {
	if d.states == nil {
		d.states = map[string]string{}
	}
	return consumer + ":" + id.String()
}

func (d *memoryDeduper) Claim(_ context.Context, consumer string, id uuid.UUID) (idempotency.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := d.key(consumer, id)
	switch d.states[key] {
	case "done":
		return idempotency.Done, nil
	case "in_flight":
		return idempotency.Reclaimed, nil
	}
	d.states[key] = "in_flight"
	return idempotency.Claimed, nil
}

func (d *memoryDeduper) Complete(_ context.Context, consumer string, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[d.key(consumer, id)] = "done"
	return nil
}

func (d *memoryDeduper) Release(_ context.Context, consumer string, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.states, d.key(consumer, id))
	return nil
}

func (d *memoryDeduper) state(consumer string, id uuid.UUID) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.states[d.key(consumer, id)]
}

type recordingMessage struct {
	data         []byte
	acked, nackd bool
}

func (m *recordingMessage) ID() string                 { return "m-1" }
func (m *recordingMessage) Data() []byte               { return m.data }
func (m *recordingMessage) Headers() map[string]string { return nil }
func (m *recordingMessage) Ack()                       { m.acked = true }
func (m *recordingMessage) Nack()                      { m.nackd = true }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "eventbus-test", Output: io.Discard})
}

func newTestConsumer(t *testing.T, bus Subscriber, handler Handler, reg prometheus.Registerer) *Consumer {
	t.Helper()
	return newDedupingConsumer(t, bus, handler, reg, &memoryDeduper{})
}

func newDedupingConsumer(t *testing.T, bus Subscriber, handler Handler, reg prometheus.Registerer, dedupe Deduper) *Consumer {
	t.Helper()
	c, err := NewConsumer(ConsumerConfig{
		Name:         "inventory",
		Subscription: Subscription{Name: "orders-inventory", Topic: "orders", MaxOutstanding: 1},
		Events:       []enums.EventName{enums.EventOrderCreated},
		Handler:      handler,
		Subscriber:   bus,
		Deduper:      dedupe,
		Metrics:      metrics.NewConsumerMetrics(reg),
		Logger:       testLogger(),
	})
	require.NoError(t, err)
	return c
}

func TestConsumerSuppressesDuplicateDelivery(t *testing.T) {
	bus := NewMemoryBus()
	reg := prometheus.NewRegistry()
	var handled int
	consumer := newTestConsumer(t, bus, HandlerFunc(func(context.Context, Envelope) error {
		handled++
		return nil
	}), reg)

	env, err := NewEnvelope(enums.EventOrderCreated, map[string]string{"orderId": "ORD-ABC123"})
	require.NoError(t, err)
	bus.Declare(consumer.sub)
	require.NoError(t, bus.Publish(context.Background(), "orders", env))
	require.NoError(t, bus.Publish(context.Background(), "orders", env))

	runUntilDrained(t, bus, consumer)

	assert.Equal(t, 1, handled)
	count, err := testutil.GatherAndCount(reg, "event_consumer_deliveries_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestConsumerNacksMalformedAndAcksFailures(t *testing.T) {
	consumer := newTestConsumer(t, NewMemoryBus(), HandlerFunc(func(context.Context, Envelope) error {
		return errors.New("stock service down")
	}), prometheus.NewRegistry())

	bad := &recordingMessage{data: []byte("{")}
	consumer.deliver(context.Background(), bad)
	assert.True(t, bad.nackd)
	assert.False(t, bad.acked)

	missingTag := &recordingMessage{data: []byte(`{"id":"` + uuid.NewString() + `","data":{}}`)}
	consumer.deliver(context.Background(), missingTag)
	assert.True(t, missingTag.nackd)

	env, err := NewEnvelope(enums.EventOrderCreated, struct{}{})
	require.NoError(t, err)
	failing := &recordingMessage{data: mustJSON(t, env)}
	consumer.deliver(context.Background(), failing)
	assert.True(t, failing.acked)
	assert.False(t, failing.nackd)
}

func TestConsumerHandlesRedeliveryAfterPanic(t *testing.T) {
	dedupe := &memoryDeduper{}
	calls := 0
	consumer := newDedupingConsumer(t, NewMemoryBus(), HandlerFunc(func(context.Context, Envelope) error {
		calls++
		if calls == 1 {
			panic("reservation interrupted")
		}
		return nil
	}), prometheus.NewRegistry(), dedupe)

	env, err := NewEnvelope(enums.EventOrderCreated, map[string]string{"orderId": "ORD-ABC123"})
	require.NoError(t, err)

	first := &recordingMessage{data: mustJSON(t, env)}
	require.NotPanics(t, func() { consumer.deliver(context.Background(), first) })
	assert.True(t, first.acked)
	assert.Empty(t, dedupe.state("inventory", env.ID))

	again := &recordingMessage{data: mustJSON(t, env)}
	consumer.deliver(context.Background(), again)
	assert.True(t, again.acked)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "done", dedupe.state("inventory", env.ID))
}

func TestConsumerTakesOverUnfinishedClaim(t *testing.T) {
	dedupe := &memoryDeduper{}
	calls := 0
	consumer := newDedupingConsumer(t, NewMemoryBus(), HandlerFunc(func(context.Context, Envelope) error {
		calls++
		return nil
	}), prometheus.NewRegistry(), dedupe)

	env, err := NewEnvelope(enums.EventOrderCreated, struct{}{})
	require.NoError(t, err)
	// a delivery that claimed the event and then lost its process
	state, err := dedupe.Claim(context.Background(), "inventory", env.ID)
	require.NoError(t, err)
	require.Equal(t, idempotency.Claimed, state)

	redelivered := &recordingMessage{data: mustJSON(t, env)}
	consumer.deliver(context.Background(), redelivered)
	assert.True(t, redelivered.acked)
	assert.Equal(t, 1, calls)

	duplicate := &recordingMessage{data: mustJSON(t, env)}
	consumer.deliver(context.Background(), duplicate)
	assert.True(t, duplicate.acked)
	assert.Equal(t, 1, calls)
}

func TestConsumerReleasesClaimWhenHandlerFails(t *testing.T) {
	dedupe := &memoryDeduper{}
	fail := true
	calls := 0
	consumer := newDedupingConsumer(t, NewMemoryBus(), HandlerFunc(func(context.Context, Envelope) error {
		calls++
		if fail {
			return errors.New("stock service down")
		}
		return nil
	}), prometheus.NewRegistry(), dedupe)

	env, err := NewEnvelope(enums.EventOrderCreated, struct{}{})
	require.NoError(t, err)
	consumer.deliver(context.Background(), &recordingMessage{data: mustJSON(t, env)})
	assert.Empty(t, dedupe.state("inventory", env.ID))

	fail = false
	consumer.deliver(context.Background(), &recordingMessage{data: mustJSON(t, env)})
	assert.Equal(t, 2, calls)
	assert.Equal(t, "done", dedupe.state("inventory", env.ID))
}

func TestConsumerIgnoresOtherEvents(t *testing.T) {
	called := false
	consumer := newTestConsumer(t, NewMemoryBus(), HandlerFunc(func(context.Context, Envelope) error {
		called = true
		return nil
	}), prometheus.NewRegistry())

	env, err := NewEnvelope(enums.EventProductCreated, struct{}{})
	require.NoError(t, err)
	msg := &recordingMessage{data: mustJSON(t, env)}
	consumer.deliver(context.Background(), msg)

	assert.False(t, called)
	assert.True(t, msg.acked)
}

func TestNewConsumerValidation(t *testing.T) {
	_, err := NewConsumer(ConsumerConfig{Name: "x"})
	require.Error(t, err)
}

func mustJSON(t *testing.T, env Envelope) []byte {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func runUntilDrained(t *testing.T, bus *MemoryBus, consumer *Consumer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for bus.Pending(consumer.sub.Name) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)
}
