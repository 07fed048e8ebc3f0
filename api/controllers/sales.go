package controllers

import (
	"context"
	"net/http"

	"github.com/stockline/backoffice/api/responses"
	"github.com/stockline/backoffice/api/validators"
	"github.com/stockline/backoffice/internal/sales"
	"github.com/stockline/backoffice/pkg/logger"
)

func salesHandler[T any](logg *logger.Logger, compute func(ctx context.Context) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := compute(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func SalesOverview(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return salesHandler(logg, svc.Overview)
}

func MonthlySales(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return salesHandler(logg, svc.Monthly)
}

func YearlySales(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return salesHandler(logg, svc.Yearly)
}

func TopProducts(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return salesHandler(logg, svc.TopProducts)
}

func OverallMetrics(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return salesHandler(logg, svc.Overall)
}

// LowProducts accepts ?days= to widen or narrow the unsold window.
func LowProducts(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := validators.ParseQueryInt(r, "days", sales.DefaultLowProductsDays, 1, 3650)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.LowProducts(r.Context(), days)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
