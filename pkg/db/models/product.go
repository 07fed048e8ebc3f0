package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry with its live stock count.
type Product struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string          `gorm:"type:text;not null" json:"name"`
	CategoryID     *uuid.UUID      `gorm:"type:uuid;index" json:"categoryId,omitempty"`
	Category       *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Price          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	InventoryCount int             `gorm:"not null;default:0" json:"inventoryCount"`
	IsDeleted      bool            `gorm:"not null;default:false;index" json:"isDeleted"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
