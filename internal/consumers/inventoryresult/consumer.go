// Package inventoryresult applies stock reservation outcomes to orders.
package inventoryresult

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stockline/backoffice/pkg/enums"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/events"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
)

const (
	consumerName = "inventory-result"
	serviceName  = "order-service"
)

// OrderFailer marks orders failed after a rejected reservation.
type OrderFailer interface {
	Fail(ctx context.Context, code, customerID, reason string) error
}

type Handler struct {
	orders OrderFailer
	logg   *logger.Logger
}

func NewHandler(orders OrderFailer, logg *logger.Logger) (*Handler, error) {
	if orders == nil {
		return nil, errors.New("order service required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Handler{orders: orders, logg: logg}, nil
}

func (h *Handler) Handle(ctx context.Context, env eventbus.Envelope) error {
	switch env.Event {
	case enums.EventInventoryUpdateFailed:
		var payload events.InventoryUpdateFailed
		if err := env.Decode(&payload); err != nil {
			return err
		}
		if strings.TrimSpace(payload.OrderID) == "" {
			return errors.New("inventory failure without order id")
		}
		if err := h.orders.Fail(ctx, payload.OrderID, payload.CustomerID, payload.Reason); err != nil {
			return fmt.Errorf("fail order %s: %w", payload.OrderID, err)
		}
		return nil
	case enums.EventInventoryUpdatedSuccess:
		var payload events.InventoryUpdatedSuccess
		if err := env.Decode(&payload); err != nil {
			return err
		}
		h.logg.Info(h.logg.WithOrderID(ctx, payload.OrderID), "order stock confirmed")
		return nil
	default:
		return fmt.Errorf("unexpected event %q", env.Event)
	}
}

type ConsumerConfig struct {
	Handler       *Handler
	Subscriber    eventbus.Subscriber
	Subscription  string
	ProductsTopic string
	Deduper       eventbus.Deduper
	Metrics       *metrics.ConsumerMetrics
	Logger        *logger.Logger
}

func NewConsumer(cfg ConsumerConfig) (*eventbus.Consumer, error) {
	if cfg.Handler == nil {
		return nil, errors.New("inventory result handler required")
	}
	return eventbus.NewConsumer(eventbus.ConsumerConfig{
		Name:         consumerName,
		Subscription: eventbus.SubscriptionFor(cfg.Subscription, serviceName, cfg.ProductsTopic, 0),
		Events:       []enums.EventName{enums.EventInventoryUpdateFailed, enums.EventInventoryUpdatedSuccess},
		Handler:      cfg.Handler,
		Subscriber:   cfg.Subscriber,
		Deduper:      cfg.Deduper,
		Metrics:      cfg.Metrics,
		Logger:       cfg.Logger,
	})
}
