package orders

import (
	"context"
	"fmt"

	"github.com/stockline/backoffice/pkg/cache"
	"github.com/stockline/backoffice/pkg/db"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
	pkgerrors "github.com/stockline/backoffice/pkg/errors"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/pagination"
)

const cacheScope = "orders"

// Rollups recomputes and broadcasts the sales dashboards.
type Rollups interface {
	RecomputeAll(ctx context.Context) error
}

// Service exposes order operations to controllers and consumers.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	List(ctx context.Context) ([]models.Order, error)
	Get(ctx context.Context, code string) (*models.Order, error)
	Query(ctx context.Context, params QueryParams) (*QueryResult, error)
	UpdateStatus(ctx context.Context, code string, status enums.OrderStatus) (*models.Order, error)
	// Fail marks an order failed after the product side could not reserve
	// its stock. The product side has already restored what it applied.
	Fail(ctx context.Context, code, customerID, reason string) error
}

// ServiceConfig wires the order service. Rollups and Cache are optional.
type ServiceConfig struct {
	Saga      *Saga
	Repo      Repository
	Publisher eventbus.Publisher
	Topic     string
	Rollups   Rollups
	Cache     *cache.Cache
	Logger    *logger.Logger
}

type service struct {
	saga      *Saga
	repo      Repository
	publisher eventbus.Publisher
	topic     string
	rollups   Rollups
	cache     *cache.Cache
	logg      *logger.Logger
}

func NewService(cfg ServiceConfig) (Service, error) {
	switch {
	case cfg.Saga == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order saga required")
	case cfg.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	case cfg.Publisher == nil || cfg.Topic == "":
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order event publisher required")
	case cfg.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		saga:      cfg.Saga,
		repo:      cfg.Repo,
		publisher: cfg.Publisher,
		topic:     cfg.Topic,
		rollups:   cfg.Rollups,
		cache:     cfg.Cache,
		logg:      cfg.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	order, err := s.saga.Run(ctx, input)
	// a rejected run may still have committed a failed order
	s.invalidate(ctx)
	if err != nil {
		return nil, err
	}
	s.recompute(ctx)
	return order, nil
}

func (s *service) List(ctx context.Context) ([]models.Order, error) {
	rows, err := cache.Fetch(ctx, s.cache, s.cache.Key(cacheScope, "list"), s.repo.List)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, code string) (*models.Order, error) {
	order, err := cache.Fetch(ctx, s.cache, s.cache.Key(cacheScope, code), func(ctx context.Context) (*models.Order, error) {
		return s.repo.FindByCode(ctx, code)
	})
	if err != nil {
		return nil, orderNotFoundOr(err, "load order")
	}
	return order, nil
}

func (s *service) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	page := pagination.Params{Page: params.Page, Limit: params.Limit}.Normalize()
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid status filter")
	}
	params.SortBy = ParseSortField(string(params.SortBy))

	rows, total, err := s.repo.Query(ctx, params, page.Offset(), page.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query orders")
	}
	return &QueryResult{
		Data:       rows,
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: pagination.TotalPages(total, page.Limit),
	}, nil
}

// UpdateStatus applies an admin status change. Failed is reserved for the
// saga, and failed orders never move again.
func (s *service) UpdateStatus(ctx context.Context, code string, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Invalid status %q", status))
	}
	if !status.IsAssignable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Status failed cannot be set manually")
	}

	ok, err := s.repo.UpdateStatus(ctx, code, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update order status")
	}
	if !ok {
		existing, err := s.repo.FindByCode(ctx, code)
		if err != nil {
			return nil, orderNotFoundOr(err, "load order")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("Order %s is %s and cannot change status", code, existing.Status))
	}
	s.invalidate(ctx)

	order, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, orderNotFoundOr(err, "load order")
	}

	ctx = s.logg.WithOrderID(ctx, code)
	if _, err := eventbus.PublishEvent(ctx, s.publisher, s.topic, enums.EventOrderStatusUpdated, order); err != nil {
		s.logg.Error(ctx, "failed to publish order status update", err)
	}
	s.recompute(ctx)
	return order, nil
}

func (s *service) Fail(ctx context.Context, code, customerID, reason string) error {
	ctx = s.logg.WithFields(s.logg.WithOrderID(ctx, code), map[string]any{"reason": reason})
	if _, err := s.repo.FindByCode(ctx, code); err != nil {
		return orderNotFoundOr(err, "load order")
	}
	err := s.saga.fail(ctx, code, customerID)
	s.invalidate(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "fail order")
	}
	s.logg.Warn(ctx, "order failed by inventory reconciliation")
	s.recompute(ctx)
	return nil
}

func (s *service) recompute(ctx context.Context) {
	if s.rollups == nil {
		return
	}
	if err := s.rollups.RecomputeAll(ctx); err != nil {
		s.logg.Error(ctx, "failed to recompute sales rollups", err)
	}
}

func (s *service) invalidate(ctx context.Context) {
	s.cache.InvalidatePrefix(ctx, s.cache.Key(cacheScope))
}

func orderNotFoundOr(err error, msg string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
