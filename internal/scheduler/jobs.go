package scheduler

import (
	"context"
	"errors"
)

// Recomputer rebuilds and broadcasts the sales dashboards.
type Recomputer interface {
	RecomputeAll(ctx context.Context) error
}

// RollupRefresh keeps the trailing sales windows current between order
// writes.
type RollupRefresh struct {
	rollups Recomputer
}

func NewRollupRefresh(rollups Recomputer) (*RollupRefresh, error) {
	if rollups == nil {
		return nil, errors.New("rollup service required")
	}
	return &RollupRefresh{rollups: rollups}, nil
}

func (j *RollupRefresh) Name() string { return "sales-rollup-refresh" }

func (j *RollupRefresh) Run(ctx context.Context) error {
	return j.rollups.RecomputeAll(ctx)
}
