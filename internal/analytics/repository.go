package analytics

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockline/backoffice/internal/analytics/writer"
	"github.com/stockline/backoffice/pkg/db/models"
)

// Repository reads and writes the analytics log.
type Repository interface {
	writer.Store
	Recent(ctx context.Context, limit int) ([]models.AnalyticsEvent, error)
	Rollups(ctx context.Context) ([]models.RollupSnapshot, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// InsertEvent stores the event unless its message id is already present,
// and reports whether a row was written.
func (r *repository) InsertEvent(ctx context.Context, event *models.AnalyticsEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "message_id"}}, DoNothing: true}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpsertRollup(ctx context.Context, snapshot *models.RollupSnapshot) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tag"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(snapshot).Error
}

func (r *repository) Recent(ctx context.Context, limit int) ([]models.AnalyticsEvent, error) {
	rows := []models.AnalyticsEvent{}
	err := r.db.WithContext(ctx).
		Order("occurred_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) Rollups(ctx context.Context) ([]models.RollupSnapshot, error) {
	rows := []models.RollupSnapshot{}
	err := r.db.WithContext(ctx).Order("tag ASC").Find(&rows).Error
	return rows, err
}
