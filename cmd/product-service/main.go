package main

import (
	"context"

	"github.com/stockline/backoffice/api/routes"
	"github.com/stockline/backoffice/internal/alerts"
	"github.com/stockline/backoffice/internal/consumers/inventory"
	"github.com/stockline/backoffice/internal/platform"
	"github.com/stockline/backoffice/internal/products"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/events"
)

const serviceName = "product-service"

func main() {
	ctx := context.Background()

	rt, err := platform.Start(ctx, serviceName, &models.Category{}, &models.Product{})
	platform.Exit(ctx, nil, "runtime", err)
	logg := rt.Logger

	cfg := rt.Config
	topics := events.TopicsFrom(cfg.Eventing)

	raiser, err := alerts.NewEventRaiser(rt.Bus, topics.Alerts)
	platform.Exit(ctx, logg, "alert raiser", err)

	categoryRepo := products.NewCategoryRepository(rt.DB.DB())
	productSvc, err := products.NewService(products.Dependencies{
		Repo:              products.NewRepository(rt.DB.DB()),
		Categories:        categoryRepo,
		Publisher:         rt.Bus,
		Topic:             topics.Products,
		Raiser:            raiser,
		Cache:             rt.Cache,
		LowStockThreshold: cfg.Inventory.LowStockThreshold,
		Logger:            logg,
	})
	platform.Exit(ctx, logg, "product service", err)

	categorySvc, err := products.NewCategoryService(categoryRepo)
	platform.Exit(ctx, logg, "category service", err)

	var workers []platform.Worker
	if cfg.Inventory.IsAsync() {
		handler, err := inventory.NewHandler(productSvc, rt.Bus, topics.Products, logg)
		platform.Exit(ctx, logg, "inventory handler", err)
		consumer, err := inventory.NewConsumer(inventory.ConsumerConfig{
			Handler:      handler,
			Subscriber:   rt.Bus,
			Subscription: cfg.PubSub.OrderEventsSubscription,
			OrdersTopic:  topics.Orders,
			Deduper:      rt.Deduper,
			Metrics:      rt.Consumer,
			Logger:       logg,
		})
		platform.Exit(ctx, logg, "inventory consumer", err)
		workers = append(workers, consumer)
	}

	router := routes.NewProductRouter(routes.Base{
		Config:   cfg,
		Service:  serviceName,
		Logger:   logg,
		Registry: rt.Registry,
		Ready:    rt.Ready(),
	}, productSvc, categorySvc)

	runErr := rt.Run(router, workers...)
	if err := rt.Close(context.Background()); err != nil {
		logg.Error(ctx, "failed to close runtime", err)
	}
	platform.Exit(ctx, logg, serviceName, runErr)
}
