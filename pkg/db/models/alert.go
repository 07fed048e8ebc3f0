package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockline/backoffice/pkg/enums"
)

// Alert is a persisted dashboard notification.
type Alert struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Type      enums.AlertType   `gorm:"type:text;not null" json:"type"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Status    enums.AlertStatus `gorm:"type:text;not null;default:pending" json:"status"`
	Resolved  bool              `gorm:"not null;default:false" json:"resolved"`
	CreatedAt time.Time         `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func (a *Alert) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	if a.Status == "" {
		a.Status = enums.AlertStatusPending
	}
	return nil
}
