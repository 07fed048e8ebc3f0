// Package events holds the payload shapes carried on the event channel.
// Order and product events carry the full model snapshot.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockline/backoffice/pkg/config"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
)

// OrderSnapshot is the payload of order_created and order_status_updated.
type OrderSnapshot = models.Order

// ProductSnapshot is the payload of product_created.
type ProductSnapshot = models.Product

// InventoryUpdated reports an admin stock correction.
type InventoryUpdated struct {
	ProductID      uuid.UUID       `json:"productId"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	InventoryCount int             `json:"inventoryCount"`
	CategoryName   string          `json:"categoryName,omitempty"`
}

// InventoryUpdateFailed reports that stock could not be reserved for an order.
type InventoryUpdateFailed struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	Reason     string `json:"reason"`
}

// InventoryUpdatedSuccess reports that every line of an order was reserved.
type InventoryUpdatedSuccess struct {
	OrderID string `json:"orderId"`
}

// AlertRaised asks the alert service to persist and broadcast an alert.
type AlertRaised struct {
	Type    enums.AlertType `json:"type"`
	Message string          `json:"message"`
}

// RollupSnapshot carries one freshly computed analytics rollup.
type RollupSnapshot struct {
	Tag        enums.BroadcastTag `json:"tag"`
	Data       json.RawMessage    `json:"data"`
	ComputedAt time.Time          `json:"computedAt"`
}

// Topics resolves the configured topic names.
type Topics struct {
	Orders    string
	Products  string
	Analytics string
	Alerts    string
}

func TopicsFrom(cfg config.EventingConfig) Topics {
	return Topics{
		Orders:    cfg.OrdersTopic,
		Products:  cfg.ProductsTopic,
		Analytics: cfg.AnalyticsTopic,
		Alerts:    cfg.AlertsTopic,
	}
}

// DefaultTopics matches the configuration defaults.
var DefaultTopics = Topics{
	Orders:    "orders",
	Products:  "products",
	Analytics: "analytics",
	Alerts:    "alerts",
}
