package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockline/backoffice/pkg/db/models"
)

// Counts summarizes the catalog by listing state.
type Counts struct {
	TotalProducts    int64 `json:"totalProducts"`
	ListedProducts   int64 `json:"listedProducts"`
	UnlistedProducts int64 `json:"unlistedProducts"`
}

// Repository exposes product persistence. Stock is only ever changed through
// the conditional updates below so that inventory never goes negative.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.Product) error
	Save(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID, includeDeleted bool) ([]models.Product, error)
	ListListed(ctx context.Context) ([]models.Product, error)
	ListPage(ctx context.Context, offset, limit int) ([]models.Product, int64, error)
	Counts(ctx context.Context) (Counts, error)
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
	IncrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
	SetInventory(ctx context.Context, id uuid.UUID, count int) (bool, error)
	SoftDelete(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a product repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Category").Create(product).Error
}

func (r *repositoryImpl) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Category").Save(product).Error
}

// FindByID loads the product with its category regardless of listing state.
func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Preload("Category").
		First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repositoryImpl) FindByIDs(ctx context.Context, ids []uuid.UUID, includeDeleted bool) ([]models.Product, error) {
	rows := []models.Product{}
	if len(ids) == 0 {
		return rows, nil
	}
	q := r.db.WithContext(ctx).Preload("Category").Where("id IN ?", ids)
	if !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	err := q.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) ListListed(ctx context.Context) ([]models.Product, error) {
	rows := []models.Product{}
	err := r.db.WithContext(ctx).
		Preload("Category").
		Where("is_deleted = ?", false).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) ListPage(ctx context.Context, offset, limit int) ([]models.Product, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&models.Product{}).Where("is_deleted = ?", false)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	rows := []models.Product{}
	err := r.db.WithContext(ctx).
		Preload("Category").
		Where("is_deleted = ?", false).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	return rows, total, err
}

func (r *repositoryImpl) Counts(ctx context.Context) (Counts, error) {
	var out Counts
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&out.TotalProducts).Error; err != nil {
		return out, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("is_deleted = ?", false).
		Count(&out.ListedProducts).Error; err != nil {
		return out, err
	}
	out.UnlistedProducts = out.TotalProducts - out.ListedProducts
	return out, nil
}

// DecrementStock removes quantity units when the product is listed and holds
// at least that many. It reports false when the guard rejected the update.
func (r *repositoryImpl) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_deleted = ? AND inventory_count >= ?", id, false, quantity).
		Update("inventory_count", gorm.Expr("inventory_count - ?", quantity))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementStock returns quantity units to the product, listed or not.
func (r *repositoryImpl) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("inventory_count", gorm.Expr("inventory_count + ?", quantity))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repositoryImpl) SetInventory(ctx context.Context, id uuid.UUID, count int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("inventory_count", count)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SoftDelete unlists the given products and returns how many changed state.
func (r *repositoryImpl) SoftDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ? AND is_deleted = ?", ids, false).
		Update("is_deleted", true)
	return res.RowsAffected, res.Error
}
