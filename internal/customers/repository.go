package customers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockline/backoffice/pkg/db/models"
)

// Repository persists customers. Soft-deleted rows are invisible to every
// read through GORM's DeletedAt scope.
type Repository interface {
	Create(ctx context.Context, customer *models.Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context) ([]models.Customer, error)
	Query(ctx context.Context, params QueryParams, offset, limit int) ([]models.Customer, int64, error)
	// Update applies column updates and reports whether a live row matched.
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) List(ctx context.Context) ([]models.Customer, error) {
	rows := []models.Customer{}
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) Query(ctx context.Context, params QueryParams, offset, limit int) ([]models.Customer, int64, error) {
	filtered := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Customer{})
		if term := strings.TrimSpace(params.Search); term != "" {
			like := "%" + strings.ToLower(term) + "%"
			q = q.Where("LOWER(customer_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
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

	rows := []models.Customer{}
	err := filtered().
		Order(column + " " + direction).
		Order("id " + direction).
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	return rows, total, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Customer{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
