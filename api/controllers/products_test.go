package controllers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/stockline/backoffice/internal/products"
	"github.com/stockline/backoffice/pkg/db/dbtest"
	"github.com/stockline/backoffice/pkg/db/models"
)

func newProductService(t *testing.T) (products.Service, products.CategoryService) {
	t.Helper()
	conn := dbtest.Open(t)
	categories := products.NewCategoryRepository(conn)
	svc, err := products.NewService(products.Dependencies{
		Repo:       products.NewRepository(conn),
		Categories: categories,
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatalf("product service: %v", err)
	}
	catSvc, err := products.NewCategoryService(categories)
	if err != nil {
		t.Fatalf("category service: %v", err)
	}
	return svc, catSvc
}

func createProduct(t *testing.T, svc products.Service, body string) models.Product {
	t.Helper()
	rec := serve(CreateProduct(svc, testLogger()), newRequest(http.MethodPost, "/api/products", body, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: %d %s", rec.Code, rec.Body.String())
	}
	var p models.Product
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &p); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	return p
}

func TestProductStockEndpoints(t *testing.T) {
	svc, _ := newProductService(t)
	p := createProduct(t, svc, `{"name":"Widget","price":"4.50","inventoryCount":5}`)
	params := map[string]string{"productId": p.ID.String()}

	rec := serve(DecreaseStock(svc, testLogger()), newRequest(http.MethodPatch, "/", `{"quantity":3}`, params))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(DecreaseStock(svc, testLogger()), newRequest(http.MethodPatch, "/", `{"quantity":3}`, params))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d", rec.Code)
	}
	rec = serve(DecreaseStock(svc, testLogger()), newRequest(http.MethodPatch, "/", `{"quantity":0}`, params))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", rec.Code)
	}

	rec = serve(RestoreStock(svc, testLogger()), newRequest(http.MethodPatch, "/", `{"quantity":3}`, params))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var restored models.Product
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &restored); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if restored.InventoryCount != 5 {
		t.Fatalf("expected 5 in stock, got %d", restored.InventoryCount)
	}

	rec = serve(SetProductInventory(svc, testLogger()), newRequest(http.MethodPatch, "/", `{"inventoryCount":-1}`, params))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative inventory, got %d", rec.Code)
	}
}

func TestBulkProductsAndSoftDelete(t *testing.T) {
	svc, _ := newProductService(t)
	a := createProduct(t, svc, `{"name":"A","price":"1.00","inventoryCount":1}`)
	b := createProduct(t, svc, `{"name":"B","price":"2.00","inventoryCount":1}`)

	rec := serve(BulkProducts(svc, testLogger()), newRequest(http.MethodGet, "/api/products/bulk?ids=", "", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ids, got %d", rec.Code)
	}
	rec = serve(BulkProducts(svc, testLogger()), newRequest(http.MethodGet, "/api/products/bulk?ids=nope", "", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}

	body := `{"productIds":["` + a.ID.String() + `"]}`
	rec = serve(BulkDeleteProducts(svc, testLogger()), newRequest(http.MethodPatch, "/api/products/bulk-delete", body, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var msg map[string]string
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg["message"] != "1 products soft deleted successfully" {
		t.Fatalf("unexpected message %q", msg["message"])
	}

	target := "/api/products/bulk?ids=" + a.ID.String() + "," + b.ID.String() + "," + uuid.NewString()
	rec = serve(BulkProducts(svc, testLogger()), newRequest(http.MethodGet, target, "", nil))
	var listed []models.Product
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &listed); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != b.ID {
		t.Fatalf("expected only the listed product, got %+v", listed)
	}

	rec = serve(BulkProducts(svc, testLogger()), newRequest(http.MethodGet, target+"&includeDeleted=true", "", nil))
	var all []models.Product
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &all); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both products with includeDeleted, got %d", len(all))
	}
}

func TestGetProductRejectsBadID(t *testing.T) {
	svc, _ := newProductService(t)
	rec := serve(GetProduct(svc, testLogger()), newRequest(http.MethodGet, "/", "", map[string]string{"productId": "x"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = serve(GetProduct(svc, testLogger()), newRequest(http.MethodGet, "/", "", map[string]string{"productId": uuid.NewString()}))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	_, catSvc := newProductService(t)
	rec := serve(CreateCategory(catSvc, testLogger()), newRequest(http.MethodPost, "/api/categories", `{"name":"Tools"}`, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var category models.Category
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &category); err != nil {
		t.Fatalf("decode category: %v", err)
	}

	rec = serve(GetCategory(catSvc, testLogger()), newRequest(http.MethodGet, "/", "", map[string]string{"categoryId": category.ID.String()}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = serve(CreateCategory(catSvc, testLogger()), newRequest(http.MethodPost, "/api/categories", `{"name":"Tools"}`, nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate category, got %d", rec.Code)
	}
}
