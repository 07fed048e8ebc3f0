package controllers

import (
	"net/http"

	"github.com/stockline/backoffice/api/responses"
	"github.com/stockline/backoffice/api/validators"
	"github.com/stockline/backoffice/internal/analytics"
	"github.com/stockline/backoffice/pkg/logger"
)

func RecentAnalyticsEvents(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", analytics.DefaultRecentLimit, 1, analytics.MaxRecentLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.Recent(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func RollupSnapshots(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.Rollups(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
