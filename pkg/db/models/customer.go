package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is a shopper record; DeletedAt gives GORM soft-delete semantics.
type Customer struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerName string         `gorm:"type:text;not null" json:"customerName"`
	Email        string         `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Phone        *string        `gorm:"type:text;uniqueIndex" json:"phone,omitempty"`
	IsBlocked    bool           `gorm:"not null;default:false" json:"isBlocked"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
