// Package eventbus is the topic based event channel shared by the services.
// Delivery is at-least-once with manual acknowledgment: Ack settles a
// message, Nack drops it without requeue, and a message left unsettled is
// redelivered once its subscription is received again.
package eventbus

import (
	"context"
	"fmt"
	"strings"

	"github.com/stockline/backoffice/pkg/config"
	"github.com/stockline/backoffice/pkg/enums"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/pubsub"
)

const headerEvent = "event"

// Message is one delivery handed to a subscriber callback.
type Message interface {
	ID() string
	Data() []byte
	Headers() map[string]string
	Ack()
	Nack()
}

// Subscription names a durable subscription on a topic. MaxOutstanding > 0
// limits in-flight deliveries; 1 gives strictly sequential processing.
type Subscription struct {
	Name           string
	Topic          string
	MaxOutstanding int
}

// DeliverFunc receives one message and must settle it.
type DeliverFunc func(ctx context.Context, msg Message)

type Publisher interface {
	// Publish returns once the broker accepted the message.
	Publish(ctx context.Context, topic string, env Envelope) error
}

type Subscriber interface {
	// Receive blocks delivering messages until ctx is done.
	Receive(ctx context.Context, sub Subscription, fn DeliverFunc) error
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// SubscriptionFor resolves a subscription on topic. An empty configured name
// falls back to "<service>.<topic>", which the kafka and memory drivers
// create on demand.
func SubscriptionFor(configured, service, topic string, maxOutstanding int) Subscription {
	name := strings.TrimSpace(configured)
	if name == "" {
		name = service + "." + topic
	}
	return Subscription{Name: name, Topic: topic, MaxOutstanding: maxOutstanding}
}

// New builds the bus for the configured driver.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Bus, error) {
	switch cfg.Eventing.DriverName() {
	case config.EventingDriverMemory:
		return NewMemoryBus(), nil
	case config.EventingDriverKafka:
		return NewKafkaBus(cfg.Kafka, logg)
	case config.EventingDriverPubSub:
		topics := []string{cfg.Eventing.OrdersTopic, cfg.Eventing.ProductsTopic, cfg.Eventing.AnalyticsTopic, cfg.Eventing.AlertsTopic}
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, topics, logg)
		if err != nil {
			return nil, err
		}
		return NewPubSubBus(client), nil
	default:
		return nil, fmt.Errorf("unsupported eventing driver %q", cfg.Eventing.Driver)
	}
}

// PublishEvent wraps payload in a new envelope and publishes it.
func PublishEvent(ctx context.Context, pub Publisher, topic string, event enums.EventName, payload any) (Envelope, error) {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return Envelope{}, err
	}
	if err := pub.Publish(ctx, topic, env); err != nil {
		return env, err
	}
	return env, nil
}
