package router

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/events"
	"github.com/stockline/backoffice/pkg/logger"
)

type orderHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *orderHandler) Handle(ctx context.Context, env eventbus.Envelope, payload any) error {
	order, ok := payload.(*events.OrderSnapshot)
	if !ok {
		return fmt.Errorf("invalid payload for %s", env.Event)
	}
	if order.OrderCode == "" {
		return fmt.Errorf("%s payload has no order id", env.Event)
	}

	ctx = h.logg.WithOrderID(ctx, order.OrderCode)
	record := newRecord(env, order.Total)
	record.OrderID = stringPtr(order.OrderCode)
	if err := h.writer.RecordEvent(ctx, record, env.Data); err != nil {
		return err
	}
	h.logg.Info(ctx, "order event recorded")
	return nil
}

type productCreatedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *productCreatedHandler) Handle(ctx context.Context, env eventbus.Envelope, payload any) error {
	product, ok := payload.(*events.ProductSnapshot)
	if !ok {
		return fmt.Errorf("invalid payload for %s", env.Event)
	}

	ctx = h.logg.WithField(ctx, "product_id", product.ID.String())
	record := newRecord(env, product.Price)
	record.ProductID = stringPtr(product.ID.String())
	if err := h.writer.RecordEvent(ctx, record, env.Data); err != nil {
		return err
	}
	h.logg.Info(ctx, "product event recorded")
	return nil
}

type inventoryUpdatedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *inventoryUpdatedHandler) Handle(ctx context.Context, env eventbus.Envelope, payload any) error {
	update, ok := payload.(*events.InventoryUpdated)
	if !ok {
		return fmt.Errorf("invalid payload for %s", env.Event)
	}

	ctx = h.logg.WithFields(ctx, map[string]any{
		"product_id": update.ProductID.String(),
		"inventory":  strconv.Itoa(update.InventoryCount),
	})
	record := newRecord(env, update.Price)
	record.ProductID = stringPtr(update.ProductID.String())
	if err := h.writer.RecordEvent(ctx, record, env.Data); err != nil {
		return err
	}
	h.logg.Info(ctx, "inventory event recorded")
	return nil
}

type rollupHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *rollupHandler) Handle(ctx context.Context, env eventbus.Envelope, payload any) error {
	snapshot, ok := payload.(*events.RollupSnapshot)
	if !ok {
		return fmt.Errorf("invalid payload for %s", env.Event)
	}
	if !snapshot.Tag.IsRollup() {
		return fmt.Errorf("unknown rollup tag %q", snapshot.Tag)
	}

	ctx = h.logg.WithField(ctx, "rollup", string(snapshot.Tag))
	err := h.writer.SaveRollup(ctx, &models.RollupSnapshot{
		Tag:       snapshot.Tag,
		Payload:   snapshot.Data,
		UpdatedAt: OccurredAt(snapshot.ComputedAt, env.OccurredAt),
	})
	if err != nil {
		return err
	}
	h.logg.Debug(ctx, "rollup snapshot stored")
	return nil
}

func newRecord(env eventbus.Envelope, value decimal.Decimal) *models.AnalyticsEvent {
	return &models.AnalyticsEvent{
		MessageID:  env.ID.String(),
		Type:       env.Event,
		Value:      value,
		OccurredAt: OccurredAt(env.OccurredAt),
	}
}
