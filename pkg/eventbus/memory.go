package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stockline/backoffice/pkg/tracing"
)

var errBusClosed = errors.New("event bus closed")

// MemoryBus is an in-process broker for local runs and tests. Each named
// subscription keeps its own FIFO queue, so ordering follows publish order.
type MemoryBus struct {
	mu        sync.Mutex
	subs      map[string]*memSubscription
	published map[string][]Envelope
	closed    bool
}

type memSubscription struct {
	topic   string
	queue   []*memMessage
	unacked []*memMessage
	notify  chan struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:      map[string]*memSubscription{},
		published: map[string][]Envelope{},
	}
}

// Declare creates the subscription so messages published before the first
// Receive are retained.
func (b *MemoryBus) Declare(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.declareLocked(sub)
}

func (b *MemoryBus) declareLocked(sub Subscription) *memSubscription {
	s, ok := b.subs[sub.Name]
	if !ok {
		s = &memSubscription{topic: sub.Topic, notify: make(chan struct{}, 1)}
		b.subs[sub.Name] = s
	}
	return s
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	headers := tracing.Inject(ctx)
	headers[headerEvent] = env.Event.String()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errBusClosed
	}
	b.published[topic] = append(b.published[topic], env)
	b.enqueueLocked(topic, env.ID.String(), data, headers)
	return nil
}

// PublishRaw enqueues an arbitrary body, bypassing envelope encoding.
func (b *MemoryBus) PublishRaw(topic, id string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errBusClosed
	}
	b.enqueueLocked(topic, id, data, map[string]string{})
	return nil
}

func (b *MemoryBus) enqueueLocked(topic, id string, data []byte, headers map[string]string) {
	for _, s := range b.subs {
		if s.topic != topic {
			continue
		}
		s.queue = append(s.queue, &memMessage{id: id, data: data, headers: copyHeaders(headers)})
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

// Published returns every envelope published to topic so far.
func (b *MemoryBus) Published(topic string) []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Envelope(nil), b.published[topic]...)
}

// Pending returns how many messages wait on a subscription, including
// unsettled ones that will be redelivered.
func (b *MemoryBus) Pending(subscription string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.subs[subscription]
	if !ok {
		return 0
	}
	return len(s.queue) + len(s.unacked)
}

// Receive delivers messages one at a time until ctx is done. Messages left
// unsettled by a previous Receive are delivered first.
func (b *MemoryBus) Receive(ctx context.Context, sub Subscription, fn DeliverFunc) error {
	if fn == nil {
		return errors.New("deliver func is required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errBusClosed
	}
	s := b.declareLocked(sub)
	if len(s.unacked) > 0 {
		s.queue = append(s.unacked, s.queue...)
		s.unacked = nil
	}
	b.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return nil
		}
		msg := b.next(s)
		if msg == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-s.notify:
				continue
			}
		}
		msg.reset()
		fn(tracing.Extract(ctx, msg.headers), msg)
		if !msg.settled() {
			b.mu.Lock()
			s.unacked = append(s.unacked, msg)
			b.mu.Unlock()
		}
	}
}

func (b *MemoryBus) next(s *memSubscription) *memMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return msg
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

const (
	msgPending int32 = iota
	msgAcked
	msgNacked
)

type memMessage struct {
	id      string
	data    []byte
	headers map[string]string
	state   atomic.Int32
}

func (m *memMessage) ID() string                 { return m.id }
func (m *memMessage) Data() []byte               { return m.data }
func (m *memMessage) Headers() map[string]string { return m.headers }
func (m *memMessage) Ack()                       { m.state.CompareAndSwap(msgPending, msgAcked) }
func (m *memMessage) Nack()                      { m.state.CompareAndSwap(msgPending, msgNacked) }
func (m *memMessage) settled() bool              { return m.state.Load() != msgPending }
func (m *memMessage) reset()                     { m.state.Store(msgPending) }

func copyHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
