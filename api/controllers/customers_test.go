package controllers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stockline/backoffice/internal/customers"
	"github.com/stockline/backoffice/pkg/db/dbtest"
	"github.com/stockline/backoffice/pkg/db/models"
)

func newCustomerService(t *testing.T) customers.Service {
	t.Helper()
	svc, err := customers.NewService(customers.NewRepository(dbtest.Open(t)), nil, testLogger())
	if err != nil {
		t.Fatalf("customer service: %v", err)
	}
	return svc
}

func TestCustomerLifecycle(t *testing.T) {
	svc := newCustomerService(t)

	rec := serve(CreateCustomer(svc, testLogger()), newRequest(http.MethodPost, "/api/customers", `{"customerName":"Ada","email":"Ada@Example.com"}`, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var c models.Customer
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &c); err != nil {
		t.Fatalf("decode customer: %v", err)
	}
	if c.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", c.Email)
	}
	params := map[string]string{"customerId": c.ID.String()}

	rec = serve(CreateCustomer(svc, testLogger()), newRequest(http.MethodPost, "/api/customers", `{"customerName":"Other","email":"ada@example.com"}`, nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", rec.Code)
	}

	rec = serve(PatchCustomer(svc, testLogger()), newRequest(http.MethodPatch, "/", `{"phone":"5551234"}`, params))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a field patch cannot touch, got %d", rec.Code)
	}

	rec = serve(BlockCustomer(svc, testLogger()), newRequest(http.MethodPatch, "/", `{}`, params))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without isBlocked, got %d", rec.Code)
	}
	rec = serve(BlockCustomer(svc, testLogger()), newRequest(http.MethodPatch, "/", `{"isBlocked":true}`, params))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = serve(DeleteCustomer(svc, testLogger()), newRequest(http.MethodDelete, "/", "", params))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = serve(GetCustomer(svc, testLogger()), newRequest(http.MethodGet, "/", "", params))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestQueryCustomersShape(t *testing.T) {
	svc := newCustomerService(t)
	for _, body := range []string{
		`{"customerName":"Ada","email":"ada@example.com"}`,
		`{"customerName":"Bob","email":"bob@example.com"}`,
	} {
		serve(CreateCustomer(svc, testLogger()), newRequest(http.MethodPost, "/api/customers", body, nil))
	}

	rec := serve(QueryCustomers(svc, testLogger()), newRequest(http.MethodGet, "/api/customers/query?limit=1&sortBy=customerName&sortOrder=asc", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result customers.QueryResult
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Total != 2 || result.TotalPages != 2 || len(result.Customers) != 1 || result.Customers[0].CustomerName != "Ada" {
		t.Fatalf("unexpected page %+v", result)
	}
}
