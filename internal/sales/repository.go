package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
)

// OrderFact is the projection of one counted order.
type OrderFact struct {
	CreatedAt time.Time
	Total     decimal.Decimal
}

// OrderTotals aggregates every counted order.
type OrderTotals struct {
	TotalRevenue   decimal.Decimal
	TotalOrders    int64
	TotalCustomers int64
}

// ProductTotals aggregates the order lines of one product.
type ProductTotals struct {
	ProductID    uuid.UUID
	TotalSold    int64
	TotalRevenue decimal.Decimal
}

// Repository reads order aggregates. Failed orders never count.
type Repository interface {
	Window(ctx context.Context, since time.Time) (WindowTotals, error)
	Facts(ctx context.Context) ([]OrderFact, error)
	Totals(ctx context.Context) (OrderTotals, error)
	// ProductSales groups order lines by product, ordered by quantity sold.
	// A zero since covers all time; limit <= 0 returns every product.
	ProductSales(ctx context.Context, since time.Time, ascending bool, limit int) ([]ProductTotals, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) counted(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status <> ?", enums.OrderStatusFailed)
}

func (r *repository) Window(ctx context.Context, since time.Time) (WindowTotals, error) {
	var row struct {
		TotalSales decimal.Decimal
		Count      int64
	}
	err := r.counted(ctx).
		Select("COALESCE(SUM(total), 0) AS total_sales, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Scan(&row).Error
	return WindowTotals{TotalSales: row.TotalSales, Count: row.Count}, err
}

func (r *repository) Facts(ctx context.Context) ([]OrderFact, error) {
	rows := []OrderFact{}
	err := r.counted(ctx).Select("created_at, total").Order("created_at DESC").Scan(&rows).Error
	return rows, err
}

func (r *repository) Totals(ctx context.Context) (OrderTotals, error) {
	var row OrderTotals
	err := r.counted(ctx).
		Select("COALESCE(SUM(total), 0) AS total_revenue, COUNT(*) AS total_orders, COUNT(DISTINCT customer_id) AS total_customers").
		Scan(&row).Error
	return row, err
}

func (r *repository) ProductSales(ctx context.Context, since time.Time, ascending bool, limit int) ([]ProductTotals, error) {
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}
	q := r.db.WithContext(ctx).
		Table("order_items").
		Select("order_items.product_id AS product_id, " +
			"SUM(order_items.quantity) AS total_sold, " +
			"SUM(order_items.quantity * order_items.price) AS total_revenue").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status <> ?", enums.OrderStatusFailed)
	if !since.IsZero() {
		q = q.Where("orders.created_at >= ?", since)
	}
	q = q.Group("order_items.product_id").
		Order("total_sold " + direction).
		Order("order_items.product_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	rows := []ProductTotals{}
	err := q.Scan(&rows).Error
	return rows, err
}
