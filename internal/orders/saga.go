package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/stockline/backoffice/internal/alerts"
	"github.com/stockline/backoffice/internal/productclient"
	"github.com/stockline/backoffice/pkg/db"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
	pkgerrors "github.com/stockline/backoffice/pkg/errors"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
	"github.com/stockline/backoffice/pkg/tracing"
)

const (
	stepValidate   = "validate"
	stepPersist    = "persist"
	stepReserve    = "reserve"
	stepPublish    = "publish"
	stepCompensate = "compensate"

	outcomeCreated       = "created"
	outcomeRejected      = "rejected"
	outcomePersistFailed = "persist_failed"
	outcomeReserveFailed = "reserve_failed"
	outcomePublishFailed = "publish_failed"
)

// Transactor runs fn inside a database transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

var _ Transactor = (*db.Client)(nil)

// SagaConfig wires the order creation saga.
type SagaConfig struct {
	Tx         Transactor
	Repo       Repository
	Products   productclient.Client
	Publisher  eventbus.Publisher
	OrderTopic string
	Raiser     alerts.Raiser
	// InlineReservation decrements stock during the request. When false the
	// product service reserves stock from the order_created event.
	InlineReservation bool
	NewCode           CodeGenerator
	Metrics           *metrics.SagaMetrics
	Logger            *logger.Logger
}

// Saga runs order creation as validate, persist, reserve and publish, and
// compensates a committed order when a later step fails.
type Saga struct {
	tx        Transactor
	repo      Repository
	products  productclient.Client
	publisher eventbus.Publisher
	topic     string
	raiser    alerts.Raiser
	inline    bool
	newCode   CodeGenerator
	metrics   *metrics.SagaMetrics
	logg      *logger.Logger
}

func NewSaga(cfg SagaConfig) (*Saga, error) {
	switch {
	case cfg.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transactor required")
	case cfg.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	case cfg.Products == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product client required")
	case cfg.Publisher == nil || cfg.OrderTopic == "":
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order event publisher required")
	case cfg.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	newCode := cfg.NewCode
	if newCode == nil {
		newCode = NewCode
	}
	return &Saga{
		tx:        cfg.Tx,
		repo:      cfg.Repo,
		products:  cfg.Products,
		publisher: cfg.Publisher,
		topic:     cfg.OrderTopic,
		raiser:    cfg.Raiser,
		inline:    cfg.InlineReservation,
		newCode:   newCode,
		metrics:   cfg.Metrics,
		logg:      cfg.Logger,
	}, nil
}

// line is a merged, priced order line.
type line struct {
	productID uuid.UUID
	quantity  int
	price     decimal.Decimal
}

// Run executes the saga and returns the committed order.
func (s *Saga) Run(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	ctx, span := tracing.Tracer().Start(ctx, "orders.create")
	defer span.End()

	var lines []line
	if err := s.step(ctx, stepValidate, func(ctx context.Context) error {
		var err error
		lines, err = s.validate(ctx, input)
		return err
	}); err != nil {
		s.metrics.IncOutcome(outcomeRejected)
		return nil, err
	}

	var order *models.Order
	if err := s.step(ctx, stepPersist, func(ctx context.Context) error {
		var err error
		order, err = s.persist(ctx, strings.TrimSpace(input.CustomerID), lines)
		return err
	}); err != nil {
		s.metrics.IncOutcome(outcomePersistFailed)
		return nil, err
	}

	span.SetAttributes(attribute.String("order.code", order.OrderCode))
	ctx = s.logg.WithOrderID(ctx, order.OrderCode)

	var applied []models.OrderItem
	if s.inline {
		if err := s.step(ctx, stepReserve, func(ctx context.Context) error {
			var err error
			applied, err = s.reserve(ctx, order)
			return err
		}); err != nil {
			s.compensate(ctx, order, applied)
			s.metrics.IncOutcome(outcomeReserveFailed)
			return nil, err
		}
	}

	if err := s.step(ctx, stepPublish, func(ctx context.Context) error {
		_, err := eventbus.PublishEvent(ctx, s.publisher, s.topic, enums.EventOrderCreated, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeEventPublish, err, "publish order_created")
		}
		return nil
	}); err != nil {
		s.compensate(ctx, order, applied)
		s.metrics.IncOutcome(outcomePublishFailed)
		return nil, err
	}

	s.metrics.IncOutcome(outcomeCreated)
	s.logg.Info(ctx, "order created")
	return order, nil
}

// validate merges duplicate products, resolves every product in one lookup
// and reports every failing line at once.
func (s *Saga) validate(ctx context.Context, input CreateOrderInput) ([]line, error) {
	if strings.TrimSpace(input.CustomerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customerId is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "items must be a non-empty array")
	}

	var lines []line
	index := map[uuid.UUID]int{}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		if i, ok := index[item.ProductID]; ok {
			lines[i].quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, line{productID: item.ProductID, quantity: item.Quantity})
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.productID)
	}
	found, err := s.products.Bulk(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	var (
		problems     []string
		insufficient []string
		issues       []ItemIssue
		unresolved   bool
	)
	for i := range lines {
		l := &lines[i]
		product, ok := byID[l.productID]
		switch {
		case !ok:
			unresolved = true
			problems = append(problems, fmt.Sprintf("Product %s not found", l.productID))
			issues = append(issues, ItemIssue{ProductID: l.productID, Reason: issueNotFound})
		case product.IsDeleted:
			unresolved = true
			problems = append(problems, fmt.Sprintf("Product %s is not available", product.Name))
			issues = append(issues, ItemIssue{ProductID: l.productID, Name: product.Name, Reason: issueUnavailable})
		case product.InventoryCount < l.quantity:
			available := product.InventoryCount
			insufficient = append(insufficient, fmt.Sprintf("%s (requested: %d, available: %d)", product.Name, l.quantity, available))
			issues = append(issues, ItemIssue{
				ProductID: l.productID,
				Name:      product.Name,
				Reason:    issueInsufficient,
				Requested: l.quantity,
				Available: &available,
			})
			l.price = product.Price
		default:
			l.price = product.Price
		}
	}
	if len(insufficient) > 0 {
		problems = append(problems, "Insufficient inventory for: "+strings.Join(insufficient, ", "))
	}
	if !unresolved && input.Total != nil && !input.Total.Round(2).Equal(totalOf(lines).Round(2)) {
		problems = append(problems, "total does not match line items")
	}
	if len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, strings.Join(problems, "; ")).
			WithDetails(map[string]any{"items": issues})
	}
	return lines, nil
}

// persist inserts the order, re-rolling the code on collisions.
func (s *Saga) persist(ctx context.Context, customerID string, lines []line) (*models.Order, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order code")
		}
		order := &models.Order{
			OrderCode:  code,
			CustomerID: customerID,
			Total:      totalOf(lines),
			Status:     enums.OrderStatusPending,
		}
		for _, l := range lines {
			order.Items = append(order.Items, models.OrderItem{ProductID: l.productID, Quantity: l.quantity, Price: l.price})
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).Create(ctx, order)
		})
		if err == nil {
			return order, nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "persist order")
		}
		s.logg.Warn(ctx, fmt.Sprintf("order code collision code=%s attempt=%d", code, attempt))
	}
	return nil, pkgerrors.New(pkgerrors.CodePersistence, "could not allocate a unique order code")
}

// reserve decrements stock line by line and returns the lines applied
// before a failure.
func (s *Saga) reserve(ctx context.Context, order *models.Order) ([]models.OrderItem, error) {
	applied := make([]models.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		if _, err := s.products.DecreaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			return applied, reservationError(err)
		}
		applied = append(applied, item)
	}
	return applied, nil
}

// reservationError reports a stock rejection at decrement time the same way
// validation reports it: a 400 carrying the product service's message.
func reservationError(err error) error {
	rejected := pkgerrors.As(err)
	if rejected == nil || rejected.Code() != pkgerrors.CodeConflict {
		return err
	}
	out := pkgerrors.Wrap(pkgerrors.CodeValidation, err, rejected.Message())
	if details := rejected.Details(); details != nil {
		out = out.WithDetails(details)
	}
	return out
}

// compensate fails the order, raises the alert and restores applied stock.
// It runs detached from the request so a disconnecting client cannot cut it
// short.
func (s *Saga) compensate(ctx context.Context, order *models.Order, applied []models.OrderItem) {
	ctx = context.WithoutCancel(ctx)
	_ = s.step(ctx, stepCompensate, func(ctx context.Context) error {
		errs := s.fail(ctx, order.OrderCode, order.CustomerID)
		order.Status = enums.OrderStatusFailed

		restored := 0
		for i := len(applied) - 1; i >= 0; i-- {
			item := applied[i]
			if err := s.products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("restore %s x%d: %w", item.ProductID, item.Quantity, err))
				continue
			}
			restored++
		}
		s.metrics.AddRestores(restored)

		if errs != nil {
			s.logg.Error(ctx, "order compensation incomplete", errs)
		}
		return errs
	})
}

// fail marks the order failed and raises the high severity alert.
func (s *Saga) fail(ctx context.Context, code, customerID string) error {
	var errs error
	if _, err := s.repo.MarkFailed(ctx, code); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("mark order failed: %w", err))
	}
	if s.raiser != nil {
		msg := fmt.Sprintf("Order %s has failed for customer %s", code, customerID)
		if err := s.raiser.Raise(ctx, enums.AlertTypeHigh, msg); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("raise order failed alert: %w", err))
		}
	}
	return errs
}

func (s *Saga) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracing.Tracer().Start(ctx, "orders.create."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveStep(name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
	}
	return err
}

func totalOf(lines []line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.price.Mul(decimal.NewFromInt(int64(l.quantity))))
	}
	return total
}
