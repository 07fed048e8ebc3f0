package alerts

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/backoffice/internal/alerts"
	"github.com/stockline/backoffice/pkg/db/dbtest"
	"github.com/stockline/backoffice/pkg/enums"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
)

func TestRaisedAlertsAreStored(t *testing.T) {
	logg := logger.New(logger.Options{Output: io.Discard})
	svc, err := alerts.NewService(alerts.NewRepository(dbtest.Open(t)), nil, logg)
	require.NoError(t, err)

	bus := eventbus.NewMemoryBus()
	consumer, err := NewConsumer(ConsumerConfig{
		Alerts:      svc,
		Subscriber:  bus,
		AlertsTopic: "alerts",
		Metrics:     metrics.NewConsumerMetrics(prometheus.NewRegistry()),
		Logger:      logg,
	})
	require.NoError(t, err)

	sub := eventbus.SubscriptionFor("", serviceName, "alerts", 0)
	bus.Declare(sub)
	raiser, err := alerts.NewEventRaiser(bus, "alerts")
	require.NoError(t, err)
	require.NoError(t, raiser.Raise(context.Background(), enums.AlertTypeHigh, "Order ORD-ABC123 has failed for customer cust-1"))
	// blank messages are rejected by the service and acked without a row
	require.NoError(t, raiser.Raise(context.Background(), enums.AlertTypeLow, "  "))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()
	require.Eventually(t, func() bool { return bus.Pending(sub.Name) == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	stored, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "high", string(stored[0].Type))
	assert.Equal(t, "Order ORD-ABC123 has failed for customer cust-1", stored[0].Message)
	assert.False(t, stored[0].Resolved)
}

func TestNewConsumerRequiresService(t *testing.T) {
	_, err := NewConsumer(ConsumerConfig{Subscriber: eventbus.NewMemoryBus(), AlertsTopic: "alerts"})
	require.Error(t, err)
}
