package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockline/backoffice/pkg/redis"
)

const (
	valueInFlight = "in_flight"
	valueDone     = "done"

	// DefaultClaimTTL bounds how long an unfinished delivery holds its claim.
	DefaultClaimTTL = 5 * time.Minute
)

// State is the outcome of claiming a delivery.
type State int

const (
	// Claimed is a first delivery. The caller must Complete or Release it.
	Claimed State = iota
	// Reclaimed means an earlier delivery claimed the event but never
	// finished, usually because its process died mid-handler. The claim now
	// belongs to the caller.
	Reclaimed
	// Done means the event was already handled.
	Done
)

func (s State) String() string {
	switch s {
	case Claimed:
		return "claimed"
	case Reclaimed:
		return "reclaimed"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Manager remembers which event envelopes a consumer has handled. Keys look
// like `bo:idempotency:consumed:<consumer>:<event_id>`. A delivery first
// holds a short in-flight claim; only a finished handler turns it into a
// done marker that lives for the configured TTL.
type Manager struct {
	store    redis.IdempotencyStore
	ttl      time.Duration
	claimTTL time.Duration
}

// NewManager builds a duplicate guard backed by store.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	claimTTL := DefaultClaimTTL
	if ttl > 0 && ttl < claimTTL {
		claimTTL = ttl
	}
	return &Manager{store: store, ttl: ttl, claimTTL: claimTTL}, nil
}

// Claim marks the event in flight for consumer. A claim left behind by an
// unfinished delivery is taken over, so a redelivery after a crash is
// handled again rather than dropped.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (State, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return Claimed, err
	}
	claimed, err := m.store.SetNX(ctx, key, valueInFlight, m.claimTTL)
	if err != nil {
		return Claimed, err
	}
	if claimed {
		return Claimed, nil
	}

	current, err := m.store.Get(ctx, key)
	if err != nil && !errors.Is(err, redis.Nil) {
		return Claimed, err
	}
	if current == valueDone {
		return Done, nil
	}
	if err := m.store.Set(ctx, key, valueInFlight, m.claimTTL); err != nil {
		return Claimed, err
	}
	return Reclaimed, nil
}

// Complete records that consumer finished eventID.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, valueDone, m.ttl)
}

// Release drops a claim so a later delivery is handled again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("consumed:"+consumer, eventID.String()), nil
}
