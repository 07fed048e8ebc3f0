package customers

import "github.com/stockline/backoffice/pkg/db/models"

// CreateInput carries a new customer. PUT uses the same shape.
type CreateInput struct {
	CustomerName string  `json:"customerName" validate:"required,min=2,max=100"`
	Email        string  `json:"email" validate:"required,email"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	IsBlocked    *bool   `json:"isBlocked,omitempty"`
}

// PatchInput holds the only fields a partial update may touch.
type PatchInput struct {
	CustomerName *string `json:"customerName,omitempty" validate:"omitempty,min=2,max=100"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
}

// BlockInput toggles the blocked flag.
type BlockInput struct {
	IsBlocked *bool `json:"isBlocked" validate:"required"`
}

// SortField is a sortable customer column.
type SortField string

const (
	SortByCustomerName SortField = "customerName"
	SortByEmail        SortField = "email"
	SortByCreatedAt    SortField = "createdAt"
	SortByUpdatedAt    SortField = "updatedAt"
)

var sortColumns = map[SortField]string{
	SortByCustomerName: "customer_name",
	SortByEmail:        "email",
	SortByCreatedAt:    "created_at",
	SortByUpdatedAt:    "updated_at",
}

// ParseSortField falls back to createdAt for unknown input.
func ParseSortField(raw string) SortField {
	if _, ok := sortColumns[SortField(raw)]; ok {
		return SortField(raw)
	}
	return SortByCreatedAt
}

// QueryParams filters, sorts and pages the customer list.
type QueryParams struct {
	Page      int
	Limit     int
	Search    string
	SortBy    SortField
	Ascending bool
}

// QueryResult is one page of customers.
type QueryResult struct {
	Customers  []models.Customer `json:"customers"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
}
