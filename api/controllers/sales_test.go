package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stockline/backoffice/internal/sales"
	"github.com/stockline/backoffice/pkg/wsfanout"
)

type stubSales struct {
	days int
	err  error
}

func (s *stubSales) Overview(context.Context) (*sales.Overview, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sales.Overview{Last24Hours: sales.WindowTotals{TotalSales: decimal.NewFromInt(5), Count: 1}}, nil
}
func (s *stubSales) Monthly(context.Context) ([]sales.MonthlySales, error) { return nil, nil }
func (s *stubSales) Yearly(context.Context) ([]sales.YearlySales, error)   { return nil, nil }
func (s *stubSales) TopProducts(context.Context) ([]sales.ProductSales, error) {
	return nil, nil
}
func (s *stubSales) LowProducts(_ context.Context, days int) (*sales.LowProducts, error) {
	s.days = days
	return &sales.LowProducts{Days: days}, nil
}
func (s *stubSales) Overall(context.Context) (*sales.OverallMetrics, error) { return nil, nil }
func (s *stubSales) RecomputeAll(context.Context) error                     { return nil }
func (s *stubSales) Snapshot(context.Context) ([]wsfanout.Message, error)  { return nil, nil }

func TestLowProductsDays(t *testing.T) {
	svc := &stubSales{}
	rec := serve(LowProducts(svc, testLogger()), newRequest(http.MethodGet, "/api/sales/low-products", "", nil))
	if rec.Code != http.StatusOK || svc.days != sales.DefaultLowProductsDays {
		t.Fatalf("expected default window, got %d (status %d)", svc.days, rec.Code)
	}
	serve(LowProducts(svc, testLogger()), newRequest(http.MethodGet, "/api/sales/low-products?days=7", "", nil))
	if svc.days != 7 {
		t.Fatalf("expected 7 day window, got %d", svc.days)
	}
	rec = serve(LowProducts(svc, testLogger()), newRequest(http.MethodGet, "/api/sales/low-products?days=abc", "", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSalesOverviewErrorsAreInternal(t *testing.T) {
	rec := serve(SalesOverview(&stubSales{err: errors.New("db down")}, testLogger()), newRequest(http.MethodGet, "/api/sales/overview", "", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error == nil || env.Error.Code != "INTERNAL_ERROR" || env.Error.Message != "internal server error" {
		t.Fatalf("expected hidden internal error, got %s", rec.Body.String())
	}
}
