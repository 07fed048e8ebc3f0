package main

import (
	"context"

	"github.com/stockline/backoffice/api/routes"
	"github.com/stockline/backoffice/internal/alerts"
	"github.com/stockline/backoffice/internal/consumers/inventoryresult"
	"github.com/stockline/backoffice/internal/orders"
	"github.com/stockline/backoffice/internal/platform"
	"github.com/stockline/backoffice/internal/productclient"
	"github.com/stockline/backoffice/internal/sales"
	"github.com/stockline/backoffice/internal/scheduler"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/events"
	"github.com/stockline/backoffice/pkg/metrics"
	"github.com/stockline/backoffice/pkg/wsfanout"
)

const serviceName = "order-service"

func main() {
	ctx := context.Background()

	rt, err := platform.Start(ctx, serviceName, &models.Order{}, &models.OrderItem{})
	platform.Exit(ctx, nil, "runtime", err)
	logg := rt.Logger

	cfg := rt.Config
	topics := events.TopicsFrom(cfg.Eventing)

	products, err := productclient.New(cfg.Services)
	platform.Exit(ctx, logg, "product client", err)

	raiser, err := alerts.NewEventRaiser(rt.Bus, topics.Alerts)
	platform.Exit(ctx, logg, "alert raiser", err)

	hub := wsfanout.NewHub(wsfanout.Options{
		AllowedOrigins: cfg.App.CORSOrigins,
		Logger:         logg,
		Metrics:        metrics.NewFanoutMetrics(rt.Registry),
	})
	rt.OnClose(func(context.Context) error { hub.Close(); return nil })

	salesSvc, err := sales.NewService(sales.Dependencies{
		Repo:        sales.NewRepository(rt.DB.DB()),
		Catalog:     products,
		Broadcaster: hub,
		Publisher:   rt.Bus,
		Topic:       topics.Analytics,
		Logger:      logg,
	})
	platform.Exit(ctx, logg, "sales service", err)
	hub.SetResync(salesSvc.Snapshot)

	repo := orders.NewRepository(rt.DB.DB())
	saga, err := orders.NewSaga(orders.SagaConfig{
		Tx:                rt.DB,
		Repo:              repo,
		Products:          products,
		Publisher:         rt.Bus,
		OrderTopic:        topics.Orders,
		Raiser:            raiser,
		InlineReservation: !cfg.Inventory.IsAsync(),
		Metrics:           metrics.NewSagaMetrics(rt.Registry),
		Logger:            logg,
	})
	platform.Exit(ctx, logg, "order saga", err)

	orderSvc, err := orders.NewService(orders.ServiceConfig{
		Saga:      saga,
		Repo:      repo,
		Publisher: rt.Bus,
		Topic:     topics.Orders,
		Rollups:   salesSvc,
		Cache:     rt.Cache,
		Logger:    logg,
	})
	platform.Exit(ctx, logg, "order service", err)

	var workers []platform.Worker
	if cfg.Inventory.IsAsync() {
		handler, err := inventoryresult.NewHandler(orderSvc, logg)
		platform.Exit(ctx, logg, "inventory result handler", err)
		consumer, err := inventoryresult.NewConsumer(inventoryresult.ConsumerConfig{
			Handler:       handler,
			Subscriber:    rt.Bus,
			Subscription:  cfg.PubSub.ProductEventsSubscription,
			ProductsTopic: topics.Products,
			Deduper:       rt.Deduper,
			Metrics:       rt.Consumer,
			Logger:        logg,
		})
		platform.Exit(ctx, logg, "inventory result consumer", err)
		workers = append(workers, consumer)
	}

	if interval := cfg.Rollups.RefreshInterval; interval > 0 {
		refresh, err := scheduler.NewRollupRefresh(salesSvc)
		platform.Exit(ctx, logg, "rollup refresh job", err)
		lock, err := scheduler.NewRedisLock(rt.Redis, rt.Redis.LockKey(refresh.Name()), interval)
		platform.Exit(ctx, logg, "rollup refresh lock", err)
		sched, err := scheduler.New(scheduler.Config{
			Name:     "rollup-scheduler",
			Interval: interval,
			Jobs:     []scheduler.Job{refresh},
			Lock:     lock,
			Metrics:  metrics.NewJobMetrics(rt.Registry),
			Logger:   logg,
		})
		platform.Exit(ctx, logg, "rollup scheduler", err)
		workers = append(workers, sched)
	}

	router := routes.NewOrderRouter(routes.Base{
		Config:   cfg,
		Service:  serviceName,
		Logger:   logg,
		Registry: rt.Registry,
		Ready:    rt.Ready(),
	}, orderSvc, salesSvc, rt.Redis, hub)

	runErr := rt.Run(router, workers...)
	if err := rt.Close(context.Background()); err != nil {
		logg.Error(ctx, "failed to close runtime", err)
	}
	platform.Exit(ctx, logg, serviceName, runErr)
}
