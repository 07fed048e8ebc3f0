// Package inventory reserves stock for orders created while the saga runs in
// async inventory mode, and reports the outcome back on the products topic.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
	pkgerrors "github.com/stockline/backoffice/pkg/errors"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/events"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
)

const (
	consumerName = "inventory-reconciliation"
	serviceName  = "product-service"
)

// StockService is the product side stock surface.
type StockService interface {
	DecreaseStock(ctx context.Context, id uuid.UUID, quantity int) (*models.Product, error)
	RestoreStock(ctx context.Context, id uuid.UUID, quantity int) (*models.Product, error)
}

// Handler applies an order's decrements all or nothing.
type Handler struct {
	stock     StockService
	publisher eventbus.Publisher
	topic     string
	logg      *logger.Logger
}

func NewHandler(stock StockService, publisher eventbus.Publisher, productsTopic string, logg *logger.Logger) (*Handler, error) {
	switch {
	case stock == nil:
		return nil, errors.New("stock service required")
	case publisher == nil || productsTopic == "":
		return nil, errors.New("products publisher required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	return &Handler{stock: stock, publisher: publisher, topic: productsTopic, logg: logg}, nil
}

type applied struct {
	productID uuid.UUID
	quantity  int
}

// Handle decrements every line of the order. On the first rejected line the
// lines already applied are restored and inventory_update_failed is
// published; otherwise inventory_updated_success is published.
func (h *Handler) Handle(ctx context.Context, env eventbus.Envelope) error {
	var order events.OrderSnapshot
	if err := env.Decode(&order); err != nil {
		return err
	}
	ctx = h.logg.WithOrderID(ctx, order.OrderCode)

	done := make([]applied, 0, len(order.Items))
	for _, item := range order.Items {
		if _, err := h.stock.DecreaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			if restoreErr := h.restore(ctx, done); restoreErr != nil {
				h.logg.Error(ctx, "failed to restore stock after rejected reservation", restoreErr)
			}
			return h.reportFailure(ctx, order, reason(err))
		}
		done = append(done, applied{productID: item.ProductID, quantity: item.Quantity})
	}

	if _, err := eventbus.PublishEvent(ctx, h.publisher, h.topic, enums.EventInventoryUpdatedSuccess, events.InventoryUpdatedSuccess{
		OrderID: order.OrderCode,
	}); err != nil {
		return fmt.Errorf("publish inventory success: %w", err)
	}
	h.logg.Info(ctx, "order stock reserved")
	return nil
}

func (h *Handler) restore(ctx context.Context, done []applied) error {
	var errs error
	for i := len(done) - 1; i >= 0; i-- {
		if _, err := h.stock.RestoreStock(ctx, done[i].productID, done[i].quantity); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("restore %s: %w", done[i].productID, err))
		}
	}
	return errs
}

func (h *Handler) reportFailure(ctx context.Context, order events.OrderSnapshot, why string) error {
	h.logg.Warn(h.logg.WithField(ctx, "reason", why), "order stock reservation rejected")
	_, err := eventbus.PublishEvent(ctx, h.publisher, h.topic, enums.EventInventoryUpdateFailed, events.InventoryUpdateFailed{
		OrderID:    order.OrderCode,
		CustomerID: order.CustomerID,
		Reason:     why,
	})
	if err != nil {
		return fmt.Errorf("publish inventory failure: %w", err)
	}
	return nil
}

func reason(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return err.Error()
}

// ConsumerConfig wires the reconciliation consumer. Subscription may be
// empty for drivers that create subscriptions on demand.
type ConsumerConfig struct {
	Handler      *Handler
	Subscriber   eventbus.Subscriber
	Subscription string
	OrdersTopic  string
	Deduper      eventbus.Deduper
	Metrics      *metrics.ConsumerMetrics
	Logger       *logger.Logger
}

// NewConsumer runs the handler against order_created, one message at a time.
func NewConsumer(cfg ConsumerConfig) (*eventbus.Consumer, error) {
	if cfg.Handler == nil {
		return nil, errors.New("inventory handler required")
	}
	return eventbus.NewConsumer(eventbus.ConsumerConfig{
		Name:         consumerName,
		Subscription: eventbus.SubscriptionFor(cfg.Subscription, serviceName, cfg.OrdersTopic, 1),
		Events:       []enums.EventName{enums.EventOrderCreated},
		Handler:      cfg.Handler,
		Subscriber:   cfg.Subscriber,
		Deduper:      cfg.Deduper,
		Metrics:      cfg.Metrics,
		Logger:       cfg.Logger,
	})
}

