// Package customers is the customer directory: CRUD with soft delete behind
// a read-through cache.
package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stockline/backoffice/pkg/cache"
	"github.com/stockline/backoffice/pkg/db"
	"github.com/stockline/backoffice/pkg/db/models"
	pkgerrors "github.com/stockline/backoffice/pkg/errors"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/pagination"
)

const (
	listScope = "customers"
	itemScope = "customer"
)

var validate = validator.New()

// Service defines customer directory operations.
type Service interface {
	List(ctx context.Context) ([]models.Customer, error)
	Query(ctx context.Context, params QueryParams) (*QueryResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	Create(ctx context.Context, input CreateInput) (*models.Customer, error)
	Replace(ctx context.Context, id uuid.UUID, input CreateInput) (*models.Customer, error)
	Patch(ctx context.Context, id uuid.UUID, input PatchInput) (*models.Customer, error)
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*models.Customer, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo  Repository
	cache *cache.Cache
	logg  *logger.Logger
}

// NewService wires the directory. A nil cache disables caching.
func NewService(repo Repository, c *cache.Cache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "customers repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, cache: c, logg: logg}, nil
}

func (s *service) List(ctx context.Context) ([]models.Customer, error) {
	rows, err := cache.Fetch(ctx, s.cache, s.cache.Key(listScope, "all"), s.repo.List)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list customers")
	}
	return rows, nil
}

func (s *service) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	page := pagination.Params{Page: params.Page, Limit: params.Limit}.Normalize()
	params.SortBy = ParseSortField(string(params.SortBy))
	params.Search = strings.TrimSpace(params.Search)

	order := "desc"
	if params.Ascending {
		order = "asc"
	}
	key := s.cache.Key(listScope, "query", fmt.Sprint(page.Page), fmt.Sprint(page.Limit), params.Search, string(params.SortBy), order)

	result, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (*QueryResult, error) {
		rows, total, err := s.repo.Query(ctx, params, page.Offset(), page.Limit)
		if err != nil {
			return nil, err
		}
		return &QueryResult{
			Customers:  rows,
			Total:      total,
			Page:       page.Page,
			TotalPages: pagination.TotalPages(total, page.Limit),
		}, nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query customers")
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	customer, err := cache.Fetch(ctx, s.cache, s.cache.Key(itemScope, id.String()), func(ctx context.Context) (*models.Customer, error) {
		return s.repo.FindByID(ctx, id)
	})
	if err != nil {
		return nil, notFoundOr(err, "load customer")
	}
	return customer, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Customer, error) {
	fields, err := normalizeFull(input)
	if err != nil {
		return nil, err
	}
	customer := &models.Customer{
		CustomerName: fields["customer_name"].(string),
		Email:        fields["email"].(string),
		Phone:        fields["phone"].(*string),
	}
	if blocked, ok := fields["is_blocked"].(bool); ok {
		customer.IsBlocked = blocked
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, writeError(err, "create customer")
	}
	s.invalidate(ctx, uuid.Nil)
	return customer, nil
}

// Replace overwrites name, email and phone of a live customer. The blocked
// flag changes only when supplied.
func (s *service) Replace(ctx context.Context, id uuid.UUID, input CreateInput) (*models.Customer, error) {
	fields, err := normalizeFull(input)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, fields)
}

// Patch touches only customerName and email.
func (s *service) Patch(ctx context.Context, id uuid.UUID, input PatchInput) (*models.Customer, error) {
	fields := map[string]any{}
	if input.CustomerName != nil {
		name, err := normalizeName(*input.CustomerName)
		if err != nil {
			return nil, err
		}
		fields["customer_name"] = name
	}
	if input.Email != nil {
		email, err := normalizeEmail(*input.Email)
		if err != nil {
			return nil, err
		}
		fields["email"] = email
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid fields. Allowed: customerName, email")
	}
	return s.update(ctx, id, fields)
}

func (s *service) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*models.Customer, error) {
	return s.update(ctx, id, map[string]any{"is_blocked": blocked})
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "delete customer")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Customer not found")
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *service) update(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.Customer, error) {
	ok, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return nil, writeError(err, "update customer")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Customer not found")
	}
	s.invalidate(ctx, id)

	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load customer")
	}
	return customer, nil
}

func (s *service) invalidate(ctx context.Context, id uuid.UUID) {
	s.cache.InvalidatePrefix(ctx, s.cache.Key(listScope))
	if id != uuid.Nil {
		s.cache.Invalidate(ctx, s.cache.Key(itemScope, id.String()))
	}
}

func normalizeFull(input CreateInput) (map[string]any, error) {
	name, err := normalizeName(input.CustomerName)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	var phone *string
	if input.Phone != nil {
		if p := strings.TrimSpace(*input.Phone); p != "" {
			if err := validate.Var(p, "min=5,max=32"); err != nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid phone number format")
			}
			phone = &p
		}
	}
	fields := map[string]any{
		"customer_name": name,
		"email":         email,
		"phone":         phone,
	}
	if input.IsBlocked != nil {
		fields["is_blocked"] = *input.IsBlocked
	}
	return fields, nil
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	switch n := len([]rune(name)); {
	case n == 0:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Customer name is required")
	case n < 2:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Customer name must be at least 2 characters")
	case n > 100:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Customer name must not exceed 100 characters")
	}
	return name, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Email is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Invalid email format")
	}
	return email, nil
}

func writeError(err error, msg string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "A customer with this email or phone already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, msg)
}

func notFoundOr(err error, msg string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Customer not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
