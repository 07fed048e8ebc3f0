package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
)

// CreateOrderInput is the order creation request. Line prices sent by the
// client are ignored; unit prices come from the live product lookup.
type CreateOrderInput struct {
	CustomerID string           `json:"customerId" validate:"required,max=100"`
	Items      []ItemInput      `json:"items" validate:"required,min=1,dive"`
	Total      *decimal.Decimal `json:"total,omitempty"`
}

// ItemInput is one requested line.
type ItemInput struct {
	ProductID uuid.UUID        `json:"productId" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,min=1"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// UpdateStatusInput carries a requested status change.
type UpdateStatusInput struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
}

// ItemIssue describes why one requested line was rejected.
type ItemIssue struct {
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name,omitempty"`
	Reason    string    `json:"reason"`
	Requested int       `json:"requested,omitempty"`
	Available *int      `json:"available,omitempty"`
}

const (
	issueNotFound     = "not_found"
	issueUnavailable  = "not_available"
	issueInsufficient = "insufficient_inventory"
)

// SortField is a sortable order column exposed on the query endpoint.
type SortField string

const (
	SortByOrderID    SortField = "orderId"
	SortByCustomerID SortField = "customerId"
	SortByTotal      SortField = "total"
	SortByStatus     SortField = "status"
	SortByCreatedAt  SortField = "createdAt"
)

var sortColumns = map[SortField]string{
	SortByOrderID:    "order_code",
	SortByCustomerID: "customer_id",
	SortByTotal:      "total",
	SortByStatus:     "status",
	SortByCreatedAt:  "created_at",
}

// ParseSortField falls back to createdAt for unknown values.
func ParseSortField(value string) SortField {
	if _, ok := sortColumns[SortField(value)]; ok {
		return SortField(value)
	}
	return SortByCreatedAt
}

// QueryParams filters and pages the order list.
type QueryParams struct {
	Page      int
	Limit     int
	Search    string
	SortBy    SortField
	Ascending bool
	Status    *enums.OrderStatus
}

// QueryResult is one page of orders.
type QueryResult struct {
	Data       []models.Order `json:"data"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Total      int64          `json:"total"`
	TotalPages int            `json:"totalPages"`
}
