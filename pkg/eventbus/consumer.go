package eventbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stockline/backoffice/pkg/enums"
	pkgerrors "github.com/stockline/backoffice/pkg/errors"
	"github.com/stockline/backoffice/pkg/idempotency"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
	"github.com/stockline/backoffice/pkg/tracing"
)

// Handler processes one decoded envelope.
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

// HandlerFunc adapts functions to the Handler interface.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Handle calls the underlying function.
func (fn HandlerFunc) Handle(ctx context.Context, env Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, env)
}

// Deduper tracks deliveries per consumer and event id. A claim is either
// completed after the handler succeeds or released when it fails.
type Deduper interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.State, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type ConsumerConfig struct {
	Name         string
	Subscription Subscription
	// Events lists the accepted event tags; other tags are acked and skipped.
	Events     []enums.EventName
	Handler    Handler
	Subscriber Subscriber
	// Deduper is optional; without it every delivery is handled.
	Deduper Deduper
	Metrics *metrics.ConsumerMetrics
	Logger  *logger.Logger
}

// Consumer runs a handler against a subscription. Malformed bodies are
// nacked. Everything else is acked after processing, including deliveries
// whose handler failed or panicked. A failed delivery releases its claim so
// the same event published again is handled again.
type Consumer struct {
	name    string
	sub     Subscription
	accepts map[enums.EventName]struct{}
	handler Handler
	bus     Subscriber
	dedupe  Deduper
	metrics *metrics.ConsumerMetrics
	logg    *logger.Logger
}

func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if cfg.Name == "" {
		return nil, errors.New("consumer name is required")
	}
	if cfg.Subscription.Name == "" || cfg.Subscription.Topic == "" {
		return nil, errors.New("subscription name and topic are required")
	}
	if len(cfg.Events) == 0 {
		return nil, errors.New("at least one accepted event is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if cfg.Subscriber == nil {
		return nil, errors.New("subscriber is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	accepts := make(map[enums.EventName]struct{}, len(cfg.Events))
	for _, e := range cfg.Events {
		accepts[e] = struct{}{}
	}
	return &Consumer{
		name:    cfg.Name,
		sub:     cfg.Subscription,
		accepts: accepts,
		handler: cfg.Handler,
		bus:     cfg.Subscriber,
		dedupe:  cfg.Deduper,
		metrics: cfg.Metrics,
		logg:    cfg.Logger,
	}, nil
}

func (c *Consumer) Name() string { return c.name }

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	ctx = c.logg.WithFields(ctx, map[string]any{
		"consumer":     c.name,
		"subscription": c.sub.Name,
	})
	c.logg.Info(ctx, "consumer started")
	err := c.bus.Receive(ctx, c.sub, c.deliver)
	c.logg.Info(ctx, "consumer stopped")
	return err
}

func (c *Consumer) deliver(ctx context.Context, msg Message) {
	event, outcome := c.process(ctx, msg)
	c.metrics.Inc(c.name, event, outcome)
	if outcome == metrics.OutcomeMalformed {
		msg.Nack()
		return
	}
	msg.Ack()
}

func (c *Consumer) process(ctx context.Context, msg Message) (string, string) {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID())

	env, err := ParseEnvelope(msg.Data())
	if err != nil {
		c.logg.Error(logCtx, "dropping malformed message", err)
		return "", metrics.OutcomeMalformed
	}
	event := env.Event.String()
	logCtx = c.logg.WithEvent(logCtx, event)
	logCtx = c.logg.WithField(logCtx, "event_id", env.ID.String())

	if _, ok := c.accepts[env.Event]; !ok {
		c.logg.Debug(logCtx, "skipping unhandled event")
		return event, metrics.OutcomeIgnored
	}

	claimed := false
	if c.dedupe != nil {
		state, err := c.dedupe.Claim(logCtx, c.name, env.ID)
		switch {
		case err != nil:
			c.logg.Warn(logCtx, fmt.Sprintf("duplicate check failed, handling anyway: %v", err))
		case state == idempotency.Done:
			c.logg.Info(logCtx, "event already processed")
			return event, metrics.OutcomeDuplicate
		case state == idempotency.Reclaimed:
			c.logg.Warn(logCtx, "earlier delivery never finished, handling again")
			claimed = true
		default:
			claimed = true
		}
	}

	spanCtx, span := tracing.Tracer().Start(logCtx, "consume "+event,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", c.sub.Topic),
			attribute.String("messaging.consumer.group.name", c.sub.Name),
			attribute.String("messaging.message.id", env.ID.String()),
		),
	)
	defer span.End()

	if err := c.handle(spanCtx, env); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logg.Error(c.logg.WithField(logCtx, "retryable", pkgerrors.Retryable(err)), "event handler failed", err)
		if claimed {
			if err := c.dedupe.Release(logCtx, c.name, env.ID); err != nil {
				c.logg.Warn(logCtx, fmt.Sprintf("release claim: %v", err))
			}
		}
		return event, metrics.OutcomeFailed
	}
	if claimed {
		if err := c.dedupe.Complete(logCtx, c.name, env.ID); err != nil {
			c.logg.Warn(logCtx, fmt.Sprintf("record completion: %v", err))
		}
	}
	c.logg.Debug(logCtx, "event handled")
	return event, metrics.OutcomeHandled
}

// handle turns a handler panic into an error so the delivery is settled
// like any other failure.
func (c *Consumer) handle(ctx context.Context, env Envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return c.handler.Handle(ctx, env)
}
