package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"

	"github.com/stockline/backoffice/pkg/config"
	"github.com/stockline/backoffice/pkg/instance"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/tracing"
)

var errUnsettled = errors.New("kafka message left unsettled")

// KafkaBus publishes to Kafka topics and consumes through consumer groups
// named <group prefix>.<subscription name>. Offsets are committed only after
// a message is settled.
type KafkaBus struct {
	writer      *kafka.Writer
	brokers     []string
	groupPrefix string
	dialer      *kafka.Dialer
	logg        *logger.Logger

	mu      sync.Mutex
	readers map[*kafka.Reader]struct{}
}

func NewKafkaBus(cfg config.KafkaConfig, logg *logger.Logger) (*KafkaBus, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	clientID := instance.GetID()
	if cfg.GroupPrefix != "" {
		clientID = cfg.GroupPrefix + "-" + clientID
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Transport:              &kafka.Transport{ClientID: clientID},
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return &KafkaBus{
		writer:      writer,
		brokers:     brokers,
		groupPrefix: cfg.GroupPrefix,
		dialer:      &kafka.Dialer{ClientID: clientID, Timeout: 10 * time.Second, DualStack: true},
		logg:        logg,
		readers:     map[*kafka.Reader]struct{}{},
	}, nil
}

func (b *KafkaBus) Publish(ctx context.Context, topic string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	headers := []kafka.Header{{Key: headerEvent, Value: []byte(env.Event)}}
	for k, v := range tracing.Inject(ctx) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(env.ID.String()),
		Value:   data,
		Headers: headers,
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", env.Event, topic, err)
	}
	return nil
}

// Receive processes the partition stream sequentially. A message that is
// neither acked nor nacked stops the reader without committing, so it is
// redelivered when the subscription is received again.
func (b *KafkaBus) Receive(ctx context.Context, sub Subscription, fn DeliverFunc) error {
	if fn == nil {
		return errors.New("deliver func is required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.brokers,
		Topic:    sub.Topic,
		GroupID:  b.groupID(sub),
		MinBytes: 1,
		MaxBytes: 10e6,
		Dialer:   b.dialer,
	})
	b.track(reader)
	defer b.untrack(reader)

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch from %s: %w", sub.Topic, err)
		}

		msg := newKafkaMessage(m)
		fn(tracing.Extract(ctx, msg.headers), msg)
		if !msg.settled() {
			return fmt.Errorf("%w: topic=%s offset=%d", errUnsettled, m.Topic, m.Offset)
		}
		if err := reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d on %s: %w", m.Offset, m.Topic, err)
		}
	}
}

func (b *KafkaBus) groupID(sub Subscription) string {
	if b.groupPrefix == "" {
		return sub.Name
	}
	return b.groupPrefix + "." + sub.Name
}

func (b *KafkaBus) track(r *kafka.Reader) {
	b.mu.Lock()
	b.readers[r] = struct{}{}
	b.mu.Unlock()
}

func (b *KafkaBus) untrack(r *kafka.Reader) {
	b.mu.Lock()
	_, ok := b.readers[r]
	delete(b.readers, r)
	b.mu.Unlock()
	if ok {
		if err := r.Close(); err != nil && b.logg != nil {
			b.logg.Warn(context.Background(), fmt.Sprintf("closing kafka reader: %v", err))
		}
	}
}

// Close stops every open reader and flushes the writer.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	readers := b.readers
	b.readers = map[*kafka.Reader]struct{}{}
	b.mu.Unlock()

	var err error
	for r := range readers {
		err = multierr.Append(err, r.Close())
	}
	return multierr.Append(err, b.writer.Close())
}

type kafkaMessage struct {
	id      string
	data    []byte
	headers map[string]string
	state   atomic.Int32
}

func newKafkaMessage(m kafka.Message) *kafkaMessage {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &kafkaMessage{
		id:      fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset),
		data:    m.Value,
		headers: headers,
	}
}

func (m *kafkaMessage) ID() string                 { return m.id }
func (m *kafkaMessage) Data() []byte               { return m.data }
func (m *kafkaMessage) Headers() map[string]string { return m.headers }
func (m *kafkaMessage) Ack()                       { m.state.CompareAndSwap(msgPending, msgAcked) }
func (m *kafkaMessage) Nack()                      { m.state.CompareAndSwap(msgPending, msgNacked) }
func (m *kafkaMessage) settled() bool              { return m.state.Load() != msgPending }
