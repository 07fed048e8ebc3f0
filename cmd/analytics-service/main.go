package main

import (
	"context"

	"github.com/stockline/backoffice/api/routes"
	"github.com/stockline/backoffice/internal/analytics"
	"github.com/stockline/backoffice/internal/analytics/router"
	"github.com/stockline/backoffice/internal/analytics/types"
	"github.com/stockline/backoffice/internal/analytics/writer"
	analyticsconsumer "github.com/stockline/backoffice/internal/consumers/analytics"
	"github.com/stockline/backoffice/internal/platform"
	"github.com/stockline/backoffice/pkg/bigquery"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/events"
)

const serviceName = "analytics-service"

func main() {
	ctx := context.Background()

	rt, err := platform.Start(ctx, serviceName, &models.AnalyticsEvent{}, &models.RollupSnapshot{})
	platform.Exit(ctx, nil, "runtime", err)
	logg := rt.Logger

	cfg := rt.Config
	repo := analytics.NewRepository(rt.DB.DB())
	ready := rt.Ready()

	writerCfg := writer.Config{Logger: logg}
	if cfg.BigQuery.Enabled() {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, types.EventSchema(), logg)
		platform.Exit(ctx, logg, "bigquery client", err)
		rt.OnClose(func(context.Context) error { return bqClient.Close() })
		writerCfg.Mirror = bqClient
		writerCfg.Table = bqClient.AnalyticsTable()
		ready["bigquery"] = bqClient
	}
	analyticsWriter, err := writer.New(repo, writerCfg)
	platform.Exit(ctx, logg, "analytics writer", err)

	eventRouter, err := router.NewRouter(analyticsWriter, logg, nil)
	platform.Exit(ctx, logg, "analytics router", err)

	consumers, err := analyticsconsumer.NewConsumers(analyticsconsumer.Config{
		Subscriber:    rt.Bus,
		Router:        eventRouter,
		Topics:        events.TopicsFrom(cfg.Eventing),
		Subscriptions: cfg.PubSub,
		Deduper:       rt.Deduper,
		Metrics:       rt.Consumer,
		Logger:        logg,
	})
	platform.Exit(ctx, logg, "analytics consumers", err)

	svc, err := analytics.NewService(repo)
	platform.Exit(ctx, logg, "analytics service", err)

	handler := routes.NewAnalyticsRouter(routes.Base{
		Config:   cfg,
		Service:  serviceName,
		Logger:   logg,
		Registry: rt.Registry,
		Ready:    ready,
	}, svc)

	workers := make([]platform.Worker, 0, len(consumers))
	for _, c := range consumers {
		workers = append(workers, c)
	}
	runErr := rt.Run(handler, workers...)
	if err := rt.Close(context.Background()); err != nil {
		logg.Error(ctx, "failed to close runtime", err)
	}
	platform.Exit(ctx, logg, serviceName, runErr)
}
