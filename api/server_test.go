package api

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/backoffice/pkg/config"
	"github.com/stockline/backoffice/pkg/logger"
)

func TestNewServerPrefersPortEnv(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Port: "8081"}}

	t.Setenv("PORT", "")
	assert.Equal(t, ":8081", NewServer(cfg, http.NotFoundHandler()).Addr)

	t.Setenv("PORT", "9090")
	assert.Equal(t, ":9090", NewServer(cfg, http.NotFoundHandler()).Addr)
}

func TestServeStopsOnCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	logg := logger.New(logger.Options{Output: io.Discard})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, time.Second, logg) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
