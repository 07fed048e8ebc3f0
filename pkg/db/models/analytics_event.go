package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockline/backoffice/pkg/enums"
)

// AnalyticsEvent records one order or product event for reporting.
type AnalyticsEvent struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID  string          `gorm:"type:text;not null;uniqueIndex" json:"messageId"`
	Type       enums.EventName `gorm:"type:text;not null;index" json:"type"`
	OrderID    *string         `gorm:"type:text;index" json:"orderId,omitempty"`
	ProductID  *string         `gorm:"type:text;index" json:"productId,omitempty"`
	Value      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"value"`
	OccurredAt time.Time       `gorm:"not null;index" json:"timestamp"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func (e *AnalyticsEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// RollupSnapshot keeps the latest payload broadcast for a rollup tag.
type RollupSnapshot struct {
	Tag       enums.BroadcastTag `gorm:"type:text;primaryKey" json:"tag"`
	Payload   json.RawMessage    `gorm:"type:text;not null" json:"payload"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
