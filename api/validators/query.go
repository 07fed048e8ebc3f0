package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/stockline/backoffice/pkg/errors"
	"github.com/stockline/backoffice/pkg/pagination"
)

const maxPage = 1_000_000

// ParseQueryInt reads an integer query parameter. Missing values yield
// def; values outside [min, max] are rejected.
func ParseQueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a whole number").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" is out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParsePage reads page and limit. A limit above maxLimit is rejected when
// strict, and clamped to pagination.MaxLimit otherwise.
func ParsePage(r *http.Request, strict bool) (pagination.Params, error) {
	page, err := ParseQueryInt(r, "page", pagination.DefaultPage, 1, maxPage)
	if err != nil {
		return pagination.Params{}, err
	}
	limitMax := pagination.MaxLimit
	if !strict {
		limitMax = maxPage
	}
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, limitMax)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Page: page, Limit: limit}.Normalize(), nil
}

// ParseSortOrder reports whether sortOrder asks for ascending order.
// Anything other than "asc" sorts descending.
func ParseSortOrder(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("sortOrder")), "asc")
}

// ParseQueryBool treats only "true" (any case) as set.
func ParseQueryBool(r *http.Request, key string) bool {
	return strings.EqualFold(strings.TrimSpace(r.URL.Query().Get(key)), "true")
}

// ParseQueryUUIDs splits a comma separated id list. Blank entries are
// skipped; the result may be empty.
func ParseQueryUUIDs(r *http.Request, key string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, part := range strings.Split(r.URL.Query().Get(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid id "+part).WithDetails(map[string]any{"field": key})
		}
		ids = append(ids, id)
	}
	return ids, nil
}
