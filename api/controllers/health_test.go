package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("refused") })

	rec := serve(HealthReady("order-service", map[string]Pinger{"db": ok, "redis": nil}, testLogger()), newRequest(http.MethodGet, "/health/ready", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = serve(HealthReady("order-service", map[string]Pinger{"db": ok, "redis": down}, testLogger()), newRequest(http.MethodGet, "/health/ready", "", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error == nil || env.Error.Code != "DEPENDENCY_ERROR" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
