// Package api holds the HTTP server lifecycle shared by every service binary.
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/stockline/backoffice/pkg/config"
	"github.com/stockline/backoffice/pkg/logger"
)

const readHeaderTimeout = 10 * time.Second

// NewServer binds handler to PORT, falling back to the configured port.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// Serve runs srv until ctx is done and then drains in-flight requests for
// at most timeout.
func Serve(ctx context.Context, srv *http.Server, timeout time.Duration, logg *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", srv.Addr), "http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	logg.Info(shutdownCtx, "http server draining")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
