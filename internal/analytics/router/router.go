// Package router turns event channel envelopes into analytics records.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/events"
	"github.com/stockline/backoffice/pkg/logger"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer persists what the handlers produce.
type Writer interface {
	RecordEvent(ctx context.Context, event *models.AnalyticsEvent, payload json.RawMessage) error
	SaveRollup(ctx context.Context, snapshot *models.RollupSnapshot) error
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, env eventbus.Envelope, payload any) error
}

type handlerEntry struct {
	factory func() any
	handler Handler
}

// Router dispatches envelopes to the handler registered for their tag.
type Router struct {
	handlers map[enums.EventName]handlerEntry
	logg     *logger.Logger
}

var _ eventbus.Handler = (*Router)(nil)

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.EventName]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	orders := &orderHandler{writer: writer, logg: logg}
	entries := map[enums.EventName]handlerEntry{
		enums.EventOrderCreated: {
			factory: func() any { return &events.OrderSnapshot{} },
			handler: orders,
		},
		enums.EventOrderStatusUpdated: {
			factory: func() any { return &events.OrderSnapshot{} },
			handler: orders,
		},
		enums.EventProductCreated: {
			factory: func() any { return &events.ProductSnapshot{} },
			handler: &productCreatedHandler{writer: writer, logg: logg},
		},
		enums.EventInventoryUpdated: {
			factory: func() any { return &events.InventoryUpdated{} },
			handler: &inventoryUpdatedHandler{writer: writer, logg: logg},
		},
		enums.EventRollupSnapshot: {
			factory: func() any { return &events.RollupSnapshot{} },
			handler: &rollupHandler{writer: writer, logg: logg},
		},
	}

	for event, custom := range overrides {
		entry, ok := entries[event]
		if !ok || custom == nil {
			continue
		}
		entry.handler = custom
		entries[event] = entry
	}

	return &Router{handlers: entries, logg: logg}, nil
}

// Events lists the tags the router accepts.
func (r *Router) Events() []enums.EventName {
	out := make([]enums.EventName, 0, len(r.handlers))
	for event := range r.handlers {
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Handle dispatches the incoming envelope to the configured handler.
func (r *Router) Handle(ctx context.Context, env eventbus.Envelope) error {
	entry, ok := r.handlers[env.Event]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, env.Event)
	}
	payload := entry.factory()
	if err := env.Decode(payload); err != nil {
		return err
	}
	return entry.handler.Handle(ctx, env, payload)
}
