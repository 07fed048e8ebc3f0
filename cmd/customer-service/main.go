package main

import (
	"context"

	"github.com/stockline/backoffice/api/routes"
	"github.com/stockline/backoffice/internal/customers"
	"github.com/stockline/backoffice/internal/platform"
	"github.com/stockline/backoffice/pkg/db/models"
)

const serviceName = "customer-service"

func main() {
	ctx := context.Background()

	rt, err := platform.Start(ctx, serviceName, &models.Customer{})
	platform.Exit(ctx, nil, "runtime", err)
	logg := rt.Logger

	svc, err := customers.NewService(customers.NewRepository(rt.DB.DB()), rt.Cache, logg)
	platform.Exit(ctx, logg, "customer service", err)

	router := routes.NewCustomerRouter(routes.Base{
		Config:   rt.Config,
		Service:  serviceName,
		Logger:   logg,
		Registry: rt.Registry,
		Ready:    rt.Ready(),
	}, svc)

	runErr := rt.Run(router)
	if err := rt.Close(context.Background()); err != nil {
		logg.Error(ctx, "failed to close runtime", err)
	}
	platform.Exit(ctx, logg, serviceName, runErr)
}
