package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockline/backoffice/internal/orders"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
	pkgerrors "github.com/stockline/backoffice/pkg/errors"
)

type stubOrders struct {
	created     *orders.CreateOrderInput
	createErr   error
	query       *orders.QueryParams
	statusCode  string
	status      enums.OrderStatus
	statusErr   error
	getErr      error
	failedCodes []string
}

func (s *stubOrders) Create(_ context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	s.created = &input
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.Order{OrderCode: "ORD-ABC123", CustomerID: input.CustomerID, Status: enums.OrderStatusPending, Total: decimal.NewFromInt(10)}, nil
}

func (s *stubOrders) List(context.Context) ([]models.Order, error) {
	return []models.Order{{OrderCode: "ORD-ABC123"}}, nil
}

func (s *stubOrders) Get(_ context.Context, code string) (*models.Order, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &models.Order{OrderCode: code}, nil
}

func (s *stubOrders) Query(_ context.Context, params orders.QueryParams) (*orders.QueryResult, error) {
	s.query = &params
	return &orders.QueryResult{Data: []models.Order{}, Page: params.Page, Limit: params.Limit}, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, code string, status enums.OrderStatus) (*models.Order, error) {
	s.statusCode, s.status = code, status
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &models.Order{OrderCode: code, Status: status}, nil
}

func (s *stubOrders) Fail(_ context.Context, code, _, _ string) error {
	s.failedCodes = append(s.failedCodes, code)
	return nil
}

func TestCreateOrder(t *testing.T) {
	productID := uuid.New()

	t.Run("created", func(t *testing.T) {
		svc := &stubOrders{}
		body := `{"customerId":"cust-1","items":[{"productId":"` + productID.String() + `","quantity":2}]}`
		rec := serve(CreateOrder(svc, testLogger()), newRequest(http.MethodPost, "/api/orders", body, nil))
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if svc.created == nil || svc.created.Items[0].Quantity != 2 {
			t.Fatalf("expected input forwarded, got %+v", svc.created)
		}
		var order models.Order
		if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &order); err != nil {
			t.Fatalf("decode order: %v", err)
		}
		if order.OrderCode != "ORD-ABC123" {
			t.Fatalf("unexpected order code %q", order.OrderCode)
		}
	})

	t.Run("empty items", func(t *testing.T) {
		svc := &stubOrders{}
		rec := serve(CreateOrder(svc, testLogger()), newRequest(http.MethodPost, "/api/orders", `{"customerId":"cust-1","items":[]}`, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if svc.created != nil {
			t.Fatalf("service must not run on invalid input")
		}
	})

	t.Run("insufficient stock", func(t *testing.T) {
		svc := &stubOrders{createErr: pkgerrors.New(pkgerrors.CodeValidation, "Insufficient inventory for: Widget (requested: 3, available: 1)")}
		body := `{"customerId":"cust-1","items":[{"productId":"` + productID.String() + `","quantity":3}]}`
		rec := serve(CreateOrder(svc, testLogger()), newRequest(http.MethodPost, "/api/orders", body, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		env := decodeEnvelope(t, rec)
		if env.Error == nil || env.Error.Message != "Insufficient inventory for: Widget (requested: 3, available: 1)" {
			t.Fatalf("unexpected error body %s", rec.Body.String())
		}
	})

	t.Run("downstream unavailable", func(t *testing.T) {
		svc := &stubOrders{createErr: pkgerrors.New(pkgerrors.CodeDependency, "product service unavailable")}
		body := `{"customerId":"cust-1","items":[{"productId":"` + productID.String() + `","quantity":1}]}`
		rec := serve(CreateOrder(svc, testLogger()), newRequest(http.MethodPost, "/api/orders", body, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})
}

func TestQueryOrdersParsesParams(t *testing.T) {
	svc := &stubOrders{}
	rec := serve(QueryOrders(svc, testLogger()), newRequest(http.MethodGet, "/api/orders/query?page=2&limit=5&search=ord&sortBy=total&sortOrder=asc&status=shipped", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	q := svc.query
	if q == nil || q.Page != 2 || q.Limit != 5 || q.Search != "ord" || q.SortBy != orders.SortByTotal || !q.Ascending {
		t.Fatalf("unexpected params %+v", q)
	}
	if q.Status == nil || *q.Status != enums.OrderStatusShipped {
		t.Fatalf("expected shipped filter, got %v", q.Status)
	}

	rec = serve(QueryOrders(svc, testLogger()), newRequest(http.MethodGet, "/api/orders/query?status=lost", "", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
	rec = serve(QueryOrders(svc, testLogger()), newRequest(http.MethodGet, "/api/orders/query?limit=500", "", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", rec.Code)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	svc := &stubOrders{}
	params := map[string]string{"orderId": "ORD-ABC123"}
	rec := serve(UpdateOrderStatus(svc, testLogger()), newRequest(http.MethodPatch, "/api/orders/ORD-ABC123/status", `{"status":"shipped"}`, params))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.statusCode != "ORD-ABC123" || svc.status != enums.OrderStatusShipped {
		t.Fatalf("unexpected forwarded values %q %q", svc.statusCode, svc.status)
	}

	svc = &stubOrders{statusErr: pkgerrors.New(pkgerrors.CodeStateConflict, "Status failed cannot be set manually")}
	rec = serve(UpdateOrderStatus(svc, testLogger()), newRequest(http.MethodPatch, "/api/orders/ORD-ABC123/status", `{"status":"failed"}`, params))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	svc := &stubOrders{getErr: pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")}
	rec := serve(GetOrder(svc, testLogger()), newRequest(http.MethodGet, "/api/orders/ORD-NOPE00", "", map[string]string{"orderId": "ORD-NOPE00"}))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
