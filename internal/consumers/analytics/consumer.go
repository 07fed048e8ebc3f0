// Package analytics wires the analytics event log to the order, product and
// rollup topics.
package analytics

import (
	"errors"

	"github.com/stockline/backoffice/internal/analytics/router"
	"github.com/stockline/backoffice/pkg/config"
	"github.com/stockline/backoffice/pkg/enums"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/events"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
)

const serviceName = "analytics-service"

// Config wires the analytics consumers. Deduper and Metrics are optional.
type Config struct {
	Subscriber    eventbus.Subscriber
	Router        *router.Router
	Topics        events.Topics
	Subscriptions config.PubSubConfig
	Deduper       eventbus.Deduper
	Metrics       *metrics.ConsumerMetrics
	Logger        *logger.Logger
}

// NewConsumers builds one consumer per source topic, all feeding the router.
func NewConsumers(cfg Config) ([]*eventbus.Consumer, error) {
	if cfg.Router == nil {
		return nil, errors.New("analytics router required")
	}

	streams := []struct {
		name   string
		sub    eventbus.Subscription
		events []enums.EventName
	}{
		{
			name:   "analytics-orders",
			sub:    eventbus.SubscriptionFor(cfg.Subscriptions.OrderEventsSubscription, serviceName, cfg.Topics.Orders, 0),
			events: []enums.EventName{enums.EventOrderCreated, enums.EventOrderStatusUpdated},
		},
		{
			name:   "analytics-products",
			sub:    eventbus.SubscriptionFor(cfg.Subscriptions.ProductEventsSubscription, serviceName, cfg.Topics.Products, 0),
			events: []enums.EventName{enums.EventProductCreated, enums.EventInventoryUpdated},
		},
		{
			name:   "analytics-rollups",
			sub:    eventbus.SubscriptionFor(cfg.Subscriptions.AnalyticsEventsSubscription, serviceName, cfg.Topics.Analytics, 0),
			events: []enums.EventName{enums.EventRollupSnapshot},
		},
	}

	consumers := make([]*eventbus.Consumer, 0, len(streams))
	for _, stream := range streams {
		c, err := eventbus.NewConsumer(eventbus.ConsumerConfig{
			Name:         stream.name,
			Subscription: stream.sub,
			Events:       stream.events,
			Handler:      cfg.Router,
			Subscriber:   cfg.Subscriber,
			Deduper:      cfg.Deduper,
			Metrics:      cfg.Metrics,
			Logger:       cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		consumers = append(consumers, c)
	}
	return consumers, nil
}
