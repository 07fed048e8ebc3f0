// Package platform boots the connections every service binary shares and
// supervises its HTTP server and consumers until shutdown.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/stockline/backoffice/api"
	"github.com/stockline/backoffice/api/controllers"
	"github.com/stockline/backoffice/pkg/cache"
	"github.com/stockline/backoffice/pkg/config"
	"github.com/stockline/backoffice/pkg/db"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/idempotency"
	"github.com/stockline/backoffice/pkg/instance"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
	"github.com/stockline/backoffice/pkg/migrate"
	"github.com/stockline/backoffice/pkg/redis"
	"github.com/stockline/backoffice/pkg/tracing"
)

// Runtime is the set of live connections for one service process.
type Runtime struct {
	Service  string
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Cache    *cache.Cache
	Bus      eventbus.Bus
	Deduper  *idempotency.Manager
	Registry *prometheus.Registry
	Consumer *metrics.ConsumerMetrics

	closers []func(context.Context) error
}

// Start loads configuration and opens the database, redis and the event bus.
// Models are auto-migrated when the configuration asks for it.
func Start(ctx context.Context, service string, models ...any) (*Runtime, error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	rt := &Runtime{Service: service, Config: cfg, Logger: logg}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, service)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	rt.onClose(shutdownTracing)

	rt.DB, err = db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, rt.abort(ctx, fmt.Errorf("bootstrap database: %w", err))
	}
	rt.onClose(func(context.Context) error { return rt.DB.Close() })

	if err := migrate.MaybeRun(ctx, cfg, logg, rt.DB, models...); err != nil {
		return nil, rt.abort(ctx, err)
	}

	rt.Redis, err = redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, rt.abort(ctx, fmt.Errorf("bootstrap redis: %w", err))
	}
	rt.onClose(func(context.Context) error { return rt.Redis.Close() })

	if cfg.Cache.Enabled {
		rt.Cache = cache.New(rt.Redis, cfg.Cache.TTL, logg)
	}

	rt.Deduper, err = idempotency.NewManager(rt.Redis, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		return nil, rt.abort(ctx, fmt.Errorf("idempotency manager: %w", err))
	}

	rt.Bus, err = eventbus.New(ctx, cfg, logg)
	if err != nil {
		return nil, rt.abort(ctx, fmt.Errorf("bootstrap event bus: %w", err))
	}
	rt.onClose(func(context.Context) error { return rt.Bus.Close() })

	rt.Registry = prometheus.NewRegistry()
	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.Consumer = metrics.NewConsumerMetrics(rt.Registry)

	logg.Info(logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"eventing": cfg.Eventing.DriverName(),
	}), "runtime ready")
	return rt, nil
}

// Ready lists the dependencies probed by /health/ready.
func (rt *Runtime) Ready() map[string]controllers.Pinger {
	return map[string]controllers.Pinger{"db": rt.DB, "redis": rt.Redis}
}

// OnClose registers fn to run when the runtime closes, before the
// connections opened by Start.
func (rt *Runtime) OnClose(fn func(context.Context) error) {
	rt.onClose(fn)
}

func (rt *Runtime) onClose(fn func(context.Context) error) {
	rt.closers = append(rt.closers, fn)
}

// Close releases everything in reverse registration order.
func (rt *Runtime) Close(ctx context.Context) error {
	var err error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, rt.closers[i](ctx))
	}
	rt.closers = nil
	return err
}

func (rt *Runtime) abort(ctx context.Context, err error) error {
	return multierr.Append(err, rt.Close(ctx))
}

// Worker is a long running loop supervised next to the HTTP server, such as
// an event consumer or a scheduler.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// Run serves handler and runs every worker until SIGINT or SIGTERM, or
// until one of them fails.
func (rt *Runtime) Run(handler http.Handler, workers ...Worker) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	srv := api.NewServer(rt.Config, handler)
	g.Go(func() error {
		return api.Serve(gctx, srv, rt.Config.App.ShutdownTimeout, rt.Logger)
	})
	for _, w := range workers {
		g.Go(func() error {
			if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", w.Name(), err)
			}
			return nil
		})
	}

	rt.Logger.Info(ctx, rt.Service+" running")
	err := g.Wait()
	rt.Logger.Info(context.Background(), rt.Service+" stopped")
	return err
}

// Exit logs a fatal startup or run error and terminates the process.
func Exit(ctx context.Context, logg *logger.Logger, what string, err error) {
	if err == nil {
		return
	}
	if logg == nil {
		logg = logger.New(logger.Options{})
	}
	logg.Error(ctx, what+" failed", err)
	os.Exit(1)
}
