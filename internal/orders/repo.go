package orders

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
)

// Repository persists orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByCode(ctx context.Context, code string) (*models.Order, error)
	List(ctx context.Context) ([]models.Order, error)
	Query(ctx context.Context, params QueryParams, offset, limit int) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, code string, status enums.OrderStatus) (bool, error)
	MarkFailed(ctx context.Context, code string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and its items. Item positions follow slice order.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	for i := range order.Items {
		order.Items[i].Position = i
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Order, error) {
	var order models.Order
	if err := r.withItems(ctx).First(&order, "order_code = ?", code).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context) ([]models.Order, error) {
	rows := []models.Order{}
	err := r.withItems(ctx).Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) Query(ctx context.Context, params QueryParams, offset, limit int) ([]models.Order, int64, error) {
	filtered := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Order{})
		if term := strings.TrimSpace(params.Search); term != "" {
			like := "%" + strings.ToLower(term) + "%"
			q = q.Where("LOWER(order_code) LIKE ? OR LOWER(customer_id) LIKE ?", like, like)
		}
		if params.Status != nil {
			q = q.Where("status = ?", *params.Status)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	direction := "DESC"
	if params.Ascending {
		direction = "ASC"
	}
	column, ok := sortColumns[params.SortBy]
	if !ok {
		column = sortColumns[SortByCreatedAt]
	}

	rows := []models.Order{}
	err := filtered().
		Preload("Items", itemsInOrder).
		Order(column + " " + direction).
		Order("id " + direction).
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	return rows, total, err
}

// UpdateStatus sets status unless the order is already terminal. It reports
// false when no non-terminal order matched.
func (r *repository) UpdateStatus(ctx context.Context, code string, status enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_code = ? AND status <> ?", code, enums.OrderStatusFailed).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFailed moves the order to the terminal failed status.
func (r *repository) MarkFailed(ctx context.Context, code string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_code = ?", code).
		Update("status", enums.OrderStatusFailed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", itemsInOrder)
}

func itemsInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
