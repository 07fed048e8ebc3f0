package products

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockline/backoffice/pkg/db/models"
)

// CreateInput carries a new catalog entry.
type CreateInput struct {
	Name           string          `json:"name" validate:"required,max=200"`
	Category       *uuid.UUID      `json:"category,omitempty"`
	Price          decimal.Decimal `json:"price"`
	InventoryCount *int            `json:"inventoryCount,omitempty" validate:"omitempty,min=0"`
}

// UpdateInput holds the optional fields of a partial update.
type UpdateInput struct {
	Name     *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Category *uuid.UUID       `json:"category,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// InventoryInput sets the absolute stock count.
type InventoryInput struct {
	InventoryCount *int `json:"inventoryCount" validate:"required,min=0"`
}

// StockInput moves stock by a relative quantity.
type StockInput struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// BulkDeleteInput lists the products to unlist.
type BulkDeleteInput struct {
	ProductIDs []uuid.UUID `json:"productIds"`
}

// PageResult is one page of listed products.
type PageResult struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
}
