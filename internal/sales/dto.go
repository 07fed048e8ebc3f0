package sales

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockline/backoffice/pkg/db/models"
)

// DefaultLowProductsDays is the window used when no ?days= is given.
const DefaultLowProductsDays = 30

// ProductLimit caps the top and low selling lists.
const ProductLimit = 10

// WindowTotals sums order totals over a trailing window.
type WindowTotals struct {
	TotalSales decimal.Decimal `json:"totalSales"`
	Count      int64           `json:"count"`
}

// Overview is the trailing-window sales summary.
type Overview struct {
	Last24Hours WindowTotals `json:"last24Hours"`
	Last7Days   WindowTotals `json:"last7Days"`
	Last30Days  WindowTotals `json:"last30Days"`
}

// MonthlySales is one calendar month bucket.
type MonthlySales struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	TotalSales decimal.Decimal `json:"totalSales"`
	OrderCount int64           `json:"orderCount"`
}

// YearlySales is one calendar year bucket.
type YearlySales struct {
	Year       int             `json:"year"`
	TotalSales decimal.Decimal `json:"totalSales"`
	OrderCount int64           `json:"orderCount"`
}

// ProductSales aggregates the order lines of one product.
type ProductSales struct {
	ProductID    uuid.UUID       `json:"productId"`
	TotalSold    int64           `json:"totalSold"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	Product      *models.Product `json:"product,omitempty"`
}

// LowProducts lists the weakest sellers and the listed products nobody bought.
type LowProducts struct {
	Days           int              `json:"days"`
	LowSelling     []ProductSales   `json:"lowSelling"`
	UnsoldProducts []models.Product `json:"unsoldProducts"`
}

// OverallMetrics is the headline dashboard counter set.
type OverallMetrics struct {
	TotalRevenue     decimal.Decimal `json:"totalRevenue"`
	TotalOrders      int64           `json:"totalOrders"`
	TotalCustomers   int64           `json:"totalCustomers"`
	TotalProducts    int64           `json:"totalProducts"`
	ListedProducts   int64           `json:"listedProducts"`
	UnlistedProducts int64           `json:"unlistedProducts"`
}
