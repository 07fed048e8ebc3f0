package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/stockline/backoffice/pkg/pubsub"
	"github.com/stockline/backoffice/pkg/tracing"
)

// PubSubBus publishes and receives through Google Cloud Pub/Sub. Topics map
// to Pub/Sub topics and Subscription.Name to a Pub/Sub subscription.
type PubSubBus struct {
	client *pubsub.Client
}

func NewPubSubBus(client *pubsub.Client) *PubSubBus {
	return &PubSubBus{client: client}
}

func (b *PubSubBus) Publish(ctx context.Context, topic string, env Envelope) error {
	pub := b.client.Publisher(topic)
	if pub == nil {
		return fmt.Errorf("pubsub topic %q not configured", topic)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	attrs := tracing.Inject(ctx)
	attrs[headerEvent] = env.Event.String()

	result := pub.Publish(ctx, &gcppubsub.Message{Data: data, Attributes: attrs})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish %s to %s: %w", env.Event, topic, err)
	}
	return nil
}

func (b *PubSubBus) Receive(ctx context.Context, sub Subscription, fn DeliverFunc) error {
	if fn == nil {
		return errors.New("deliver func is required")
	}
	subscriber := b.client.Subscriber(sub.Name, sub.MaxOutstanding)
	if subscriber == nil {
		return fmt.Errorf("pubsub subscription %q not configured", sub.Name)
	}
	return subscriber.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		fn(tracing.Extract(innerCtx, msg.Attributes), pubsubMessage{msg: msg})
	})
}

func (b *PubSubBus) Close() error {
	return b.client.Close()
}

type pubsubMessage struct {
	msg *gcppubsub.Message
}

func (m pubsubMessage) ID() string                 { return m.msg.ID }
func (m pubsubMessage) Data() []byte               { return m.msg.Data }
func (m pubsubMessage) Headers() map[string]string { return m.msg.Attributes }
func (m pubsubMessage) Ack()                       { m.msg.Ack() }

// Nack drops the message. A Pub/Sub nack would schedule redelivery, so the
// message is acknowledged instead.
func (m pubsubMessage) Nack() { m.msg.Ack() }
