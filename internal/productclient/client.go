// Package productclient is the order service's HTTP view of the product
// service: the batched lookup used for validation and the stock mutations
// used for reservation and compensation.
package productclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/stockline/backoffice/api/responses"
	"github.com/stockline/backoffice/pkg/config"
	"github.com/stockline/backoffice/pkg/db/models"
	pkgerrors "github.com/stockline/backoffice/pkg/errors"
	"github.com/stockline/backoffice/pkg/requestid"
	"github.com/stockline/backoffice/pkg/tracing"
)

const defaultTimeout = 5 * time.Second

// Client is the product surface the order saga depends on.
type Client interface {
	// Bulk returns the products found among ids, soft-deleted ones included,
	// so callers can tell a missing product from an unlisted one.
	Bulk(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	DecreaseStock(ctx context.Context, productID uuid.UUID, quantity int) (*models.Product, error)
	RestoreStock(ctx context.Context, productID uuid.UUID, quantity int) error
}

// Catalog is the read surface the sales rollups use.
type Catalog interface {
	Bulk(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	Listed(ctx context.Context) ([]models.Product, error)
	Counts(ctx context.Context) (Counts, error)
}

// Counts mirrors the product service's catalog counters.
type Counts struct {
	TotalProducts    int64 `json:"totalProducts"`
	ListedProducts   int64 `json:"listedProducts"`
	UnlistedProducts int64 `json:"unlistedProducts"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type stockRequest struct {
	Quantity int `json:"quantity"`
}

// HTTPClient calls the product service over REST.
type HTTPClient struct {
	rest *resty.Client
}

var (
	_ Client  = (*HTTPClient)(nil)
	_ Catalog = (*HTTPClient)(nil)
)

// New builds a client for the configured product service base URL.
func New(cfg config.ServicesConfig) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.ProductServiceURL), "/")
	if baseURL == "" {
		return nil, errors.New("product service url is required")
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	return &HTTPClient{rest: rest}, nil
}

func (c *HTTPClient) Bulk(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	var out envelope[[]models.Product]
	resp, err := c.request(ctx).
		SetQueryParam("ids", strings.Join(raw, ",")).
		SetQueryParam("includeDeleted", strconv.FormatBool(true)).
		SetResult(&out).
		Get("/api/products/bulk")
	if err := mapResponse(resp, err, "product lookup"); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []models.Product{}
	}
	return out.Data, nil
}

// Listed returns every listed product.
func (c *HTTPClient) Listed(ctx context.Context) ([]models.Product, error) {
	var out envelope[[]models.Product]
	resp, err := c.request(ctx).SetResult(&out).Get("/api/products")
	if err := mapResponse(resp, err, "list products"); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []models.Product{}
	}
	return out.Data, nil
}

func (c *HTTPClient) Counts(ctx context.Context) (Counts, error) {
	var out envelope[Counts]
	resp, err := c.request(ctx).SetResult(&out).Get("/api/products/counts")
	if err := mapResponse(resp, err, "product counts"); err != nil {
		return Counts{}, err
	}
	return out.Data, nil
}

func (c *HTTPClient) DecreaseStock(ctx context.Context, productID uuid.UUID, quantity int) (*models.Product, error) {
	var out envelope[*models.Product]
	resp, err := c.request(ctx).
		SetBody(stockRequest{Quantity: quantity}).
		SetResult(&out).
		Patch(fmt.Sprintf("/api/products/%s/decrease-stock", productID))
	if err := mapResponse(resp, err, "decrease stock"); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *HTTPClient) RestoreStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	resp, err := c.request(ctx).
		SetBody(stockRequest{Quantity: quantity}).
		Patch(fmt.Sprintf("/api/products/%s/restore-stock", productID))
	return mapResponse(resp, err, "restore stock")
}

func (c *HTTPClient) request(ctx context.Context) *resty.Request {
	req := c.rest.R().
		SetContext(ctx).
		SetHeaders(tracing.Inject(ctx)).
		SetError(&responses.ErrorEnvelope{})
	if id := requestid.From(ctx); id != "" {
		req.SetHeader(requestid.Header, id)
	}
	return req
}

// mapResponse turns transport failures and non-2xx replies into typed
// errors. Client errors keep the product service's message so the saga can
// surface it; everything else is a dependency failure.
func mapResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+": product service unavailable")
	}
	if !resp.IsError() {
		return nil
	}

	msg := http.StatusText(resp.StatusCode())
	var details any
	if body, ok := resp.Error().(*responses.ErrorEnvelope); ok && body != nil && body.Error.Message != "" {
		msg = body.Error.Message
		details = body.Error.Details
	}
	cause := fmt.Errorf("%s: status %d", op, resp.StatusCode())

	var code pkgerrors.Code
	switch resp.StatusCode() {
	case http.StatusBadRequest:
		code = pkgerrors.CodeValidation
	case http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case http.StatusConflict:
		code = pkgerrors.CodeConflict
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, op+": product service returned "+msg)
	}
	return pkgerrors.Wrap(code, cause, msg).WithDetails(details)
}
