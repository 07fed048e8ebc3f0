// Package alerts persists alerts raised by other services.
package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/stockline/backoffice/internal/alerts"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/events"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
)

const (
	consumerName = "alert-sink"
	serviceName  = "alert-service"
)

// Creator stores and broadcasts an alert.
type Creator interface {
	Create(ctx context.Context, input alerts.CreateInput) (*models.Alert, error)
}

type ConsumerConfig struct {
	Alerts       Creator
	Subscriber   eventbus.Subscriber
	Subscription string
	AlertsTopic  string
	Deduper      eventbus.Deduper
	Metrics      *metrics.ConsumerMetrics
	Logger       *logger.Logger
}

// NewConsumer stores every alert_raised event through the alert service.
func NewConsumer(cfg ConsumerConfig) (*eventbus.Consumer, error) {
	if cfg.Alerts == nil {
		return nil, errors.New("alert service required")
	}
	return eventbus.NewConsumer(eventbus.ConsumerConfig{
		Name:         consumerName,
		Subscription: eventbus.SubscriptionFor(cfg.Subscription, serviceName, cfg.AlertsTopic, 0),
		Events:       []enums.EventName{enums.EventAlertRaised},
		Handler:      handler(cfg.Alerts),
		Subscriber:   cfg.Subscriber,
		Deduper:      cfg.Deduper,
		Metrics:      cfg.Metrics,
		Logger:       cfg.Logger,
	})
}

func handler(svc Creator) eventbus.HandlerFunc {
	return func(ctx context.Context, env eventbus.Envelope) error {
		var payload events.AlertRaised
		if err := env.Decode(&payload); err != nil {
			return err
		}
		if _, err := svc.Create(ctx, alerts.CreateInput{
			Type:    string(payload.Type),
			Message: payload.Message,
		}); err != nil {
			return fmt.Errorf("store alert: %w", err)
		}
		return nil
	}
}
