package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stockline/backoffice/pkg/enums"
)

// Envelope is the JSON body of every queue message: an event tag and its
// payload, plus the message id consumers use for duplicate suppression.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Event      enums.EventName `json:"event"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// NewEnvelope encodes payload under a fresh message id.
func NewEnvelope(event enums.EventName, payload any) (Envelope, error) {
	if event == "" {
		return Envelope{}, errors.New("event name is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{
		ID:         uuid.New(),
		Event:      event,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into dest.
func (e Envelope) Decode(dest any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s payload is empty", e.Event)
	}
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}

// ParseEnvelope decodes a raw message body. Bodies without an event tag or
// message id are rejected.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, errors.New("envelope event is required")
	}
	if env.ID == uuid.Nil {
		return Envelope{}, errors.New("envelope id is required")
	}
	return env, nil
}
