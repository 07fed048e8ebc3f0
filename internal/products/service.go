package products

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/stockline/backoffice/internal/alerts"
	"github.com/stockline/backoffice/pkg/cache"
	"github.com/stockline/backoffice/pkg/db"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
	pkgerrors "github.com/stockline/backoffice/pkg/errors"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/events"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/pagination"
)

// DefaultLowStockThreshold raises an alert once remaining stock drops below it.
const DefaultLowStockThreshold = 10

const cacheScope = "products"

// Service exposes catalog and stock operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	ListPage(ctx context.Context, params pagination.Params) (*PageResult, error)
	Counts(ctx context.Context) (*Counts, error)
	Bulk(ctx context.Context, ids []uuid.UUID, includeDeleted bool) ([]models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error)
	SetInventory(ctx context.Context, id uuid.UUID, count int) (*models.Product, error)
	DecreaseStock(ctx context.Context, id uuid.UUID, quantity int) (*models.Product, error)
	RestoreStock(ctx context.Context, id uuid.UUID, quantity int) (*models.Product, error)
	BulkSoftDelete(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// Dependencies wires a product service. Publisher, Raiser and Cache are
// optional.
type Dependencies struct {
	Repo              Repository
	Categories        CategoryRepository
	Publisher         eventbus.Publisher
	Topic             string
	Raiser            alerts.Raiser
	Cache             *cache.Cache
	LowStockThreshold int
	Logger            *logger.Logger
}

type service struct {
	repo       Repository
	categories CategoryRepository
	publisher  eventbus.Publisher
	topic      string
	raiser     alerts.Raiser
	cache      *cache.Cache
	threshold  int
	logg       *logger.Logger
}

func NewService(deps Dependencies) (Service, error) {
	if deps.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product repository required")
	}
	if deps.Categories == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "category repository required")
	}
	if deps.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if deps.Publisher != nil && deps.Topic == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "products topic required")
	}
	threshold := deps.LowStockThreshold
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return &service{
		repo:       deps.Repo,
		categories: deps.Categories,
		publisher:  deps.Publisher,
		topic:      deps.Topic,
		raiser:     deps.Raiser,
		cache:      deps.Cache,
		threshold:  threshold,
		logg:       deps.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Product name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Price must be non-negative")
	}
	if err := s.ensureCategory(ctx, input.Category); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:       name,
		CategoryID: input.Category,
		Price:      input.Price.Round(2),
	}
	if input.InventoryCount != nil {
		if *input.InventoryCount < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Inventory count must be non-negative")
		}
		product.InventoryCount = *input.InventoryCount
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create product")
	}
	s.invalidate(ctx)

	created, err := s.repo.FindByID(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	s.publish(ctx, enums.EventProductCreated, created)
	return created, nil
}

func (s *service) List(ctx context.Context) ([]models.Product, error) {
	rows, err := cache.Fetch(ctx, s.cache, s.cache.Key(cacheScope, "list"), s.repo.ListListed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return rows, nil
}

func (s *service) ListPage(ctx context.Context, params pagination.Params) (*PageResult, error) {
	params = params.Normalize()
	key := s.cache.Key(cacheScope, "page", strconv.Itoa(params.Page), strconv.Itoa(params.Limit))
	result, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (*PageResult, error) {
		rows, total, err := s.repo.ListPage(ctx, params.Offset(), params.Limit)
		if err != nil {
			return nil, err
		}
		return &PageResult{Products: rows, Total: total}, nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products page")
	}
	return result, nil
}

func (s *service) Counts(ctx context.Context) (*Counts, error) {
	counts, err := cache.Fetch(ctx, s.cache, s.cache.Key(cacheScope, "counts"), s.repo.Counts)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count products")
	}
	return &counts, nil
}

// Bulk is read straight from the store; the order saga relies on it for
// fresh stock and prices.
func (s *service) Bulk(ctx context.Context, ids []uuid.UUID, includeDeleted bool) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Product IDs are required")
	}
	rows, err := s.repo.FindByIDs(ctx, ids, includeDeleted)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bulk product lookup")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := cache.Fetch(ctx, s.cache, s.cache.Key(cacheScope, id.String()), func(ctx context.Context) (*models.Product, error) {
		return s.repo.FindByID(ctx, id)
	})
	if err != nil {
		return nil, notFoundOr(err, "load product")
	}
	return product, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load product")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Product name is required")
		}
		product.Name = name
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Price must be non-negative")
		}
		product.Price = input.Price.Round(2)
	}
	if input.Category != nil {
		if err := s.ensureCategory(ctx, input.Category); err != nil {
			return nil, err
		}
		product.CategoryID = input.Category
	}

	if err := s.repo.Save(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update product")
	}
	s.invalidate(ctx)
	return s.reload(ctx, id)
}

func (s *service) SetInventory(ctx context.Context, id uuid.UUID, count int) (*models.Product, error) {
	if count < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Inventory count must be non-negative")
	}
	ok, err := s.repo.SetInventory(ctx, id, count)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update inventory")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
	}
	s.invalidate(ctx)

	product, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, enums.EventInventoryUpdated, inventoryPayload(product))
	return product, nil
}

// DecreaseStock applies the guarded decrement and explains a rejection.
func (s *service) DecreaseStock(ctx context.Context, id uuid.UUID, quantity int) (*models.Product, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Quantity must be at least 1")
	}
	ok, err := s.repo.DecrementStock(ctx, id, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "decrease stock")
	}
	if !ok {
		return nil, s.rejection(ctx, id, quantity)
	}
	s.invalidate(ctx)

	product, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.InventoryCount < s.threshold {
		s.raiseLowStock(ctx, product)
	}
	return product, nil
}

func (s *service) RestoreStock(ctx context.Context, id uuid.UUID, quantity int) (*models.Product, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Quantity must be at least 1")
	}
	ok, err := s.repo.IncrementStock(ctx, id, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "restore stock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
	}
	s.invalidate(ctx)
	return s.reload(ctx, id)
}

func (s *service) BulkSoftDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "productIds must be a non-empty array")
	}
	n, err := s.repo.SoftDelete(ctx, ids)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "soft delete products")
	}
	s.invalidate(ctx)
	return n, nil
}

func (s *service) rejection(ctx context.Context, id uuid.UUID, quantity int) error {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "load product")
	}
	if product.IsDeleted {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("Product %s is not available", product.Name)).
			WithDetails(map[string]any{"productId": id})
	}
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf(
		"Insufficient inventory for: %s (requested: %d, available: %d)",
		product.Name, quantity, product.InventoryCount,
	)).WithDetails(map[string]any{
		"productId": id,
		"requested": quantity,
		"available": product.InventoryCount,
	})
}

func (s *service) raiseLowStock(ctx context.Context, product *models.Product) {
	if s.raiser == nil {
		return
	}
	msg := fmt.Sprintf("Inventory for product %s is low: %d left.", product.Name, product.InventoryCount)
	if err := s.raiser.Raise(ctx, enums.AlertTypeHigh, msg); err != nil {
		s.logg.Error(ctx, "failed to raise low stock alert", err)
	}
}

func (s *service) ensureCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.categories.FindByID(ctx, *id); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeValidation, "Category not found").
				WithDetails(map[string]any{"category": id.String()})
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load category")
	}
	return nil
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load product")
	}
	return product, nil
}

// publish reports the change on the products topic. The write has already
// committed, so a failure is logged rather than returned.
func (s *service) publish(ctx context.Context, event enums.EventName, payload any) {
	if s.publisher == nil {
		return
	}
	if _, err := eventbus.PublishEvent(ctx, s.publisher, s.topic, event, payload); err != nil {
		s.logg.Error(s.logg.WithEvent(ctx, event.String()), "failed to publish product event", err)
	}
}

func (s *service) invalidate(ctx context.Context) {
	s.cache.InvalidatePrefix(ctx, s.cache.Key(cacheScope))
}

func inventoryPayload(p *models.Product) events.InventoryUpdated {
	payload := events.InventoryUpdated{
		ProductID:      p.ID,
		Name:           p.Name,
		Price:          p.Price,
		InventoryCount: p.InventoryCount,
	}
	if p.Category != nil {
		payload.CategoryName = p.Category.Name
	}
	return payload
}

func notFoundOr(err error, msg string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
