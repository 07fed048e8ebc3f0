// Package analytics is the read side of the analytics event log.
package analytics

import (
	"context"

	"github.com/stockline/backoffice/pkg/db/models"
	pkgerrors "github.com/stockline/backoffice/pkg/errors"
)

const (
	// DefaultRecentLimit is the page size of the recent events feed.
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// Service exposes the recorded analytics.
type Service interface {
	Recent(ctx context.Context, limit int) ([]models.AnalyticsEvent, error)
	Rollups(ctx context.Context) ([]models.RollupSnapshot, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "analytics repository required")
	}
	return &service{repo: repo}, nil
}

// Recent returns the newest events first. Out of range limits fall back to
// the default page size.
func (s *service) Recent(ctx context.Context, limit int) ([]models.AnalyticsEvent, error) {
	if limit <= 0 || limit > MaxRecentLimit {
		limit = DefaultRecentLimit
	}
	rows, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list analytics events")
	}
	return rows, nil
}

// Rollups returns the latest stored snapshot per rollup tag.
func (s *service) Rollups(ctx context.Context) ([]models.RollupSnapshot, error) {
	rows, err := s.repo.Rollups(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list rollup snapshots")
	}
	return rows, nil
}
