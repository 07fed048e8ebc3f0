// Package writer stores analytics events and rollup snapshots, and mirrors
// events into BigQuery when a warehouse is configured.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/cenkalti/backoff/v5"

	"github.com/stockline/backoffice/internal/analytics/types"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/logger"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// Store is the relational side of the analytics log.
type Store interface {
	InsertEvent(ctx context.Context, event *models.AnalyticsEvent) (bool, error)
	UpsertRollup(ctx context.Context, snapshot *models.RollupSnapshot) error
}

// TableInserter streams rows into a warehouse table.
type TableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Config controls the writer. Mirror is optional; without it events are
// only stored locally.
type Config struct {
	Mirror      TableInserter
	Table       string
	RetryPolicy RetryPolicy
	Logger      *logger.Logger
}

// RetryPolicy controls how many times BigQuery inserts are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

// Writer persists analytics events and snapshots.
type Writer struct {
	store  Store
	mirror TableInserter
	table  string
	retry  RetryPolicy
	logg   *logger.Logger
}

func New(store Store, cfg Config) (*Writer, error) {
	if store == nil {
		return nil, errors.New("analytics store required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger required")
	}
	table := strings.TrimSpace(cfg.Table)
	if cfg.Mirror != nil && table == "" {
		return nil, errors.New("bigquery table is required when mirroring")
	}

	retry := cfg.RetryPolicy
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultInitialBackoff
	}
	if retry.MaximumBackoff <= 0 {
		retry.MaximumBackoff = defaultMaximumBackoff
	}
	if retry.MaximumBackoff < retry.InitialBackoff {
		retry.MaximumBackoff = retry.InitialBackoff
	}

	return &Writer{
		store:  store,
		mirror: cfg.Mirror,
		table:  table,
		retry:  retry,
		logg:   cfg.Logger,
	}, nil
}

// RecordEvent stores the event and mirrors it. A message id that was
// already stored is skipped without mirroring again. Mirror failures are
// logged and never undo the local write.
func (w *Writer) RecordEvent(ctx context.Context, event *models.AnalyticsEvent, payload json.RawMessage) error {
	inserted, err := w.store.InsertEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("store analytics event: %w", err)
	}
	if !inserted || w.mirror == nil {
		return nil
	}

	payloadJSON, err := EncodeJSON(payload)
	if err != nil {
		w.logg.Error(ctx, "failed to encode analytics payload for bigquery", err)
		payloadJSON = cbigquery.NullJSON{}
	}
	row := types.RowFromEvent(*event, payloadJSON)
	if err := w.mirrorRows(ctx, []any{&row}); err != nil {
		w.logg.Error(ctx, "failed to mirror analytics event to bigquery", err)
	}
	return nil
}

// SaveRollup replaces the stored snapshot for the rollup tag.
func (w *Writer) SaveRollup(ctx context.Context, snapshot *models.RollupSnapshot) error {
	if err := w.store.UpsertRollup(ctx, snapshot); err != nil {
		return fmt.Errorf("store rollup snapshot: %w", err)
	}
	return nil
}

// mirrorRows streams rows with exponential backoff. Only failures that
// BigQuery marks transient are retried.
func (w *Writer) mirrorRows(ctx context.Context, rows []any) error {
	if len(rows) == 0 {
		return nil
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.retry.InitialBackoff
	policy.MaxInterval = w.retry.MaximumBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := w.mirror.InsertRows(ctx, w.table, rows)
		if err != nil && !transient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(w.retry.MaxAttempts)))
	if err != nil {
		return fmt.Errorf("insert %s rows: %w", w.table, err)
	}
	return nil
}

// EncodeJSON serializes the payload for a BigQuery JSON column.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case json.RawMessage:
		if len(value) == 0 {
			return cbigquery.NullJSON{}, nil
		}
		return cbigquery.NullJSON{Valid: true, JSONVal: string(value)}, nil
	}

	marshaled, err := json.Marshal(payload)
	if err != nil {
		return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(marshaled)}, nil
}
