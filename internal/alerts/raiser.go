package alerts

import (
	"context"
	"errors"

	"github.com/stockline/backoffice/pkg/enums"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/events"
)

// Raiser lets other services report an exceptional condition.
type Raiser interface {
	Raise(ctx context.Context, alertType enums.AlertType, message string) error
}

// EventRaiser publishes alert_raised on the alerts topic; the alert service
// consumes it into the sink.
type EventRaiser struct {
	publisher eventbus.Publisher
	topic     string
}

func NewEventRaiser(publisher eventbus.Publisher, topic string) (*EventRaiser, error) {
	if publisher == nil {
		return nil, errors.New("publisher required")
	}
	if topic == "" {
		return nil, errors.New("alerts topic required")
	}
	return &EventRaiser{publisher: publisher, topic: topic}, nil
}

func (r *EventRaiser) Raise(ctx context.Context, alertType enums.AlertType, message string) error {
	_, err := eventbus.PublishEvent(ctx, r.publisher, r.topic, enums.EventAlertRaised, events.AlertRaised{
		Type:    alertType,
		Message: message,
	})
	return err
}
