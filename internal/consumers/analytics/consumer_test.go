package analytics

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	analyticssvc "github.com/stockline/backoffice/internal/analytics"
	"github.com/stockline/backoffice/internal/analytics/router"
	"github.com/stockline/backoffice/internal/analytics/writer"
	"github.com/stockline/backoffice/pkg/config"
	"github.com/stockline/backoffice/pkg/db/dbtest"
	"github.com/stockline/backoffice/pkg/enums"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/events"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
)

func TestConsumersRecordEventsFromEveryTopic(t *testing.T) {
	logg := logger.New(logger.Options{Output: io.Discard})
	repo := analyticssvc.NewRepository(dbtest.Open(t))
	w, err := writer.New(repo, writer.Config{Logger: logg})
	require.NoError(t, err)
	r, err := router.NewRouter(w, logg, nil)
	require.NoError(t, err)
	svc, err := analyticssvc.NewService(repo)
	require.NoError(t, err)

	bus := eventbus.NewMemoryBus()
	subs := config.PubSubConfig{AnalyticsEventsSubscription: "analytics-rollups-sub"}
	consumers, err := NewConsumers(Config{
		Subscriber:    bus,
		Router:        r,
		Topics:        events.DefaultTopics,
		Subscriptions: subs,
		Metrics:       metrics.NewConsumerMetrics(prometheus.NewRegistry()),
		Logger:        logg,
	})
	require.NoError(t, err)
	require.Len(t, consumers, 3)

	names := []string{
		eventbus.SubscriptionFor("", serviceName, "orders", 0).Name,
		eventbus.SubscriptionFor("", serviceName, "products", 0).Name,
		"analytics-rollups-sub",
	}
	bus.Declare(eventbus.Subscription{Name: names[0], Topic: "orders"})
	bus.Declare(eventbus.Subscription{Name: names[1], Topic: "products"})
	bus.Declare(eventbus.Subscription{Name: names[2], Topic: "analytics"})

	ctx := context.Background()
	_, err = eventbus.PublishEvent(ctx, bus, "orders", enums.EventOrderCreated, events.OrderSnapshot{
		OrderCode: "ORD-ABC123", CustomerID: "cust-1", Total: decimal.RequireFromString("25.50"),
	})
	require.NoError(t, err)
	_, err = eventbus.PublishEvent(ctx, bus, "products", enums.EventInventoryUpdated, events.InventoryUpdated{
		Name: "Widget", Price: decimal.RequireFromString("4.00"), InventoryCount: 7,
	})
	require.NoError(t, err)
	// not routed by the products consumer
	_, err = eventbus.PublishEvent(ctx, bus, "products", enums.EventInventoryUpdateFailed, events.InventoryUpdateFailed{OrderID: "ORD-ABC123"})
	require.NoError(t, err)
	_, err = eventbus.PublishEvent(ctx, bus, "analytics", enums.EventRollupSnapshot, events.RollupSnapshot{
		Tag: enums.BroadcastOverallMetrics, Data: []byte(`{"totalOrders":1}`), ComputedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	for _, c := range consumers {
		g.Go(func() error { return c.Run(gctx) })
	}
	require.Eventually(t, func() bool {
		for _, name := range names {
			if bus.Pending(name) > 0 {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, g.Wait())

	recent, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	types := []enums.EventName{recent[0].Type, recent[1].Type}
	assert.ElementsMatch(t, []enums.EventName{enums.EventOrderCreated, enums.EventInventoryUpdated}, types)

	rollups, err := svc.Rollups(ctx)
	require.NoError(t, err)
	require.Len(t, rollups, 1)
	assert.Equal(t, enums.BroadcastOverallMetrics, rollups[0].Tag)
}

func TestNewConsumersRequiresRouter(t *testing.T) {
	_, err := NewConsumers(Config{Subscriber: eventbus.NewMemoryBus(), Topics: events.DefaultTopics})
	require.Error(t, err)
}
