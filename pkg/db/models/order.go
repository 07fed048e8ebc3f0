package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockline/backoffice/pkg/enums"
)

// Order is a customer purchase with snapshotted line item prices.
type Order struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	OrderCode  string            `gorm:"column:order_code;type:text;not null;uniqueIndex" json:"orderId"`
	CustomerID string            `gorm:"type:text;not null;index" json:"customerId"`
	Items      []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Total      decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"total"`
	Status     enums.OrderStatus `gorm:"type:text;not null;default:pending;index" json:"status"`
	CreatedAt  time.Time         `gorm:"index" json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"-"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	Position  int             `gorm:"not null;default:0" json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index" json:"productId"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Subtotal returns quantity times the snapshotted unit price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
