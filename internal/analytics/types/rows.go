package types

import (
	"math/big"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/stockline/backoffice/pkg/db/models"
)

// EventRow mirrors the analytics_events BigQuery schema.
type EventRow struct {
	EventID    string             `bigquery:"event_id"`
	EventType  string             `bigquery:"event_type"`
	OccurredAt time.Time          `bigquery:"occurred_at"`
	OrderID    *string            `bigquery:"order_id"`
	ProductID  *string            `bigquery:"product_id"`
	Value      *big.Rat           `bigquery:"value"`
	Payload    cbigquery.NullJSON `bigquery:"payload"`
}

// EventSchema is the table layout EventRow writes into.
func EventSchema() cbigquery.Schema {
	return cbigquery.Schema{
		{Name: "event_id", Type: cbigquery.StringFieldType, Required: true},
		{Name: "event_type", Type: cbigquery.StringFieldType, Required: true},
		{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
		{Name: "order_id", Type: cbigquery.StringFieldType},
		{Name: "product_id", Type: cbigquery.StringFieldType},
		{Name: "value", Type: cbigquery.NumericFieldType},
		{Name: "payload", Type: cbigquery.JSONFieldType},
	}
}

// RowFromEvent builds the warehouse row for a stored analytics event.
func RowFromEvent(event models.AnalyticsEvent, payload cbigquery.NullJSON) EventRow {
	return EventRow{
		EventID:    event.MessageID,
		EventType:  string(event.Type),
		OccurredAt: event.OccurredAt.UTC(),
		OrderID:    event.OrderID,
		ProductID:  event.ProductID,
		Value:      event.Value.Rat(),
		Payload:    payload,
	}
}
