package main

import (
	"context"

	"github.com/stockline/backoffice/api/routes"
	"github.com/stockline/backoffice/internal/alerts"
	alertconsumer "github.com/stockline/backoffice/internal/consumers/alerts"
	"github.com/stockline/backoffice/internal/platform"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/events"
	"github.com/stockline/backoffice/pkg/metrics"
	"github.com/stockline/backoffice/pkg/wsfanout"
)

const serviceName = "alert-service"

func main() {
	ctx := context.Background()

	rt, err := platform.Start(ctx, serviceName, &models.Alert{})
	platform.Exit(ctx, nil, "runtime", err)
	logg := rt.Logger

	cfg := rt.Config
	topics := events.TopicsFrom(cfg.Eventing)

	hub := wsfanout.NewHub(wsfanout.Options{
		AllowedOrigins: cfg.App.CORSOrigins,
		Logger:         logg,
		Metrics:        metrics.NewFanoutMetrics(rt.Registry),
	})
	rt.OnClose(func(context.Context) error { hub.Close(); return nil })

	svc, err := alerts.NewService(alerts.NewRepository(rt.DB.DB()), hub, logg)
	platform.Exit(ctx, logg, "alert service", err)
	hub.SetResync(svc.Snapshot)

	consumer, err := alertconsumer.NewConsumer(alertconsumer.ConsumerConfig{
		Alerts:       svc,
		Subscriber:   rt.Bus,
		Subscription: cfg.PubSub.AlertEventsSubscription,
		AlertsTopic:  topics.Alerts,
		Deduper:      rt.Deduper,
		Metrics:      rt.Consumer,
		Logger:       logg,
	})
	platform.Exit(ctx, logg, "alert consumer", err)

	router := routes.NewAlertRouter(routes.Base{
		Config:   cfg,
		Service:  serviceName,
		Logger:   logg,
		Registry: rt.Registry,
		Ready:    rt.Ready(),
	}, svc, hub)

	runErr := rt.Run(router, consumer)
	if err := rt.Close(context.Background()); err != nil {
		logg.Error(ctx, "failed to close runtime", err)
	}
	platform.Exit(ctx, logg, serviceName, runErr)
}
