package sales

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stockline/backoffice/internal/productclient"
	"github.com/stockline/backoffice/pkg/db/dbtest"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/events"
	"github.com/stockline/backoffice/pkg/logger"
)

var now = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	products []models.Product
	counts   productclient.Counts
	err      error
}

func (f *fakeCatalog) Bulk(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Product{}
	for _, p := range f.products {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f *fakeCatalog) Listed(context.Context) ([]models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Product{}
	for _, p := range f.products {
		if !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Counts(context.Context) (productclient.Counts, error) {
	return f.counts, f.err
}

type recordingBroadcaster struct {
	tags []enums.BroadcastTag
}

func (r *recordingBroadcaster) Broadcast(event enums.BroadcastTag, _ any) int {
	r.tags = append(r.tags, event)
	return 1
}

type fixture struct {
	conn    *gorm.DB
	catalog *fakeCatalog
	bus     *eventbus.MemoryBus
	hub     *recordingBroadcaster
	svc     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		conn:    dbtest.Open(t),
		catalog: &fakeCatalog{},
		bus:     eventbus.NewMemoryBus(),
		hub:     &recordingBroadcaster{},
	}
	svc, err := NewService(Dependencies{
		Repo:        NewRepository(f.conn),
		Catalog:     f.catalog,
		Broadcaster: f.hub,
		Publisher:   f.bus,
		Topic:       events.DefaultTopics.Analytics,
		Logger:      logger.New(logger.Options{Output: io.Discard}),
		Now:         func() time.Time { return now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) product(name string, deleted bool) models.Product {
	p := models.Product{ID: uuid.New(), Name: name, Price: decimal.NewFromInt(1), IsDeleted: deleted}
	f.catalog.products = append(f.catalog.products, p)
	return p
}

type line struct {
	product models.Product
	qty     int
	price   string
}

func (f *fixture) order(t *testing.T, customer string, status enums.OrderStatus, at time.Time, lines ...line) {
	t.Helper()
	order := models.Order{
		OrderCode:  "ORD-" + uuid.NewString()[:6],
		CustomerID: customer,
		Status:     status,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	for _, l := range lines {
		item := models.OrderItem{ProductID: l.product.ID, Quantity: l.qty, Price: decimal.RequireFromString(l.price)}
		order.Items = append(order.Items, item)
		order.Total = order.Total.Add(item.Subtotal())
	}
	require.NoError(t, f.conn.Create(&order).Error)
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestOverviewWindowsExcludeFailedOrders(t *testing.T) {
	f := newFixture(t)
	pen := f.product("Pen", false)

	f.order(t, "a", enums.OrderStatusPending, now.Add(-2*time.Hour), line{pen, 2, "2.50"})
	f.order(t, "b", enums.OrderStatusShipped, now.Add(-3*24*time.Hour), line{pen, 1, "10.00"})
	f.order(t, "c", enums.OrderStatusDelivered, now.Add(-20*24*time.Hour), line{pen, 4, "1.25"})
	f.order(t, "d", enums.OrderStatusFailed, now.Add(-time.Hour), line{pen, 9, "9.00"})
	f.order(t, "e", enums.OrderStatusPending, now.Add(-40*24*time.Hour), line{pen, 1, "100.00"})

	out, err := f.svc.Overview(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, out.Last24Hours.Count)
	assert.True(t, out.Last24Hours.TotalSales.Equal(dec("5")), out.Last24Hours.TotalSales.String())
	assert.EqualValues(t, 2, out.Last7Days.Count)
	assert.True(t, out.Last7Days.TotalSales.Equal(dec("15")))
	assert.EqualValues(t, 3, out.Last30Days.Count)
	assert.True(t, out.Last30Days.TotalSales.Equal(dec("20")))

	assert.Equal(t, []enums.BroadcastTag{enums.BroadcastSalesOverview}, f.hub.tags)
	published := f.bus.Published(events.DefaultTopics.Analytics)
	require.Len(t, published, 1)
	var snapshot events.RollupSnapshot
	require.NoError(t, published[0].Decode(&snapshot))
	assert.Equal(t, enums.BroadcastSalesOverview, snapshot.Tag)
}

func TestMonthlyAndYearlyAreNewestFirst(t *testing.T) {
	f := newFixture(t)
	pen := f.product("Pen", false)

	f.order(t, "a", enums.OrderStatusPending, time.Date(2025, time.December, 3, 0, 0, 0, 0, time.UTC), line{pen, 1, "10.00"})
	f.order(t, "a", enums.OrderStatusPending, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), line{pen, 1, "4.00"})
	f.order(t, "b", enums.OrderStatusShipped, time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC), line{pen, 2, "3.00"})
	f.order(t, "c", enums.OrderStatusFailed, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), line{pen, 1, "50.00"})

	monthly, err := f.svc.Monthly(context.Background())
	require.NoError(t, err)
	require.Len(t, monthly, 2)
	assert.Equal(t, 2026, monthly[0].Year)
	assert.Equal(t, 2, monthly[0].Month)
	assert.EqualValues(t, 2, monthly[0].OrderCount)
	assert.True(t, monthly[0].TotalSales.Equal(dec("10")))
	assert.Equal(t, 2025, monthly[1].Year)
	assert.Equal(t, 12, monthly[1].Month)

	yearly, err := f.svc.Yearly(context.Background())
	require.NoError(t, err)
	require.Len(t, yearly, 2)
	assert.Equal(t, 2026, yearly[0].Year)
	assert.EqualValues(t, 2, yearly[0].OrderCount)
	assert.Equal(t, 2025, yearly[1].Year)
	assert.True(t, yearly[1].TotalSales.Equal(dec("10")))
}

func TestTopProductsRankByQuantityWithDetails(t *testing.T) {
	f := newFixture(t)
	pen := f.product("Pen", false)
	ink := f.product("Ink", true)
	lamp := f.product("Lamp", false)

	f.order(t, "a", enums.OrderStatusPending, now.Add(-time.Hour), line{pen, 2, "1.50"}, line{ink, 5, "2.00"})
	f.order(t, "b", enums.OrderStatusPending, now.Add(-time.Hour), line{pen, 1, "1.50"})
	f.order(t, "c", enums.OrderStatusFailed, now.Add(-time.Hour), line{lamp, 50, "1.00"})

	top, err := f.svc.TopProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, top, 2)

	assert.Equal(t, ink.ID, top[0].ProductID)
	assert.EqualValues(t, 5, top[0].TotalSold)
	assert.True(t, top[0].TotalRevenue.Equal(dec("10")))
	require.NotNil(t, top[0].Product)
	assert.Equal(t, "Ink", top[0].Product.Name)

	assert.Equal(t, pen.ID, top[1].ProductID)
	assert.EqualValues(t, 3, top[1].TotalSold)
	assert.True(t, top[1].TotalRevenue.Equal(dec("4.5")))
}

func TestLowProductsSplitsSoldAndUnsold(t *testing.T) {
	f := newFixture(t)
	pen := f.product("Pen", false)
	ink := f.product("Ink", false)
	lamp := f.product("Lamp", false)
	f.product("Hidden", true)

	f.order(t, "a", enums.OrderStatusPending, now.Add(-time.Hour), line{pen, 7, "1.00"}, line{ink, 1, "1.00"})
	f.order(t, "b", enums.OrderStatusPending, now.Add(-60*24*time.Hour), line{lamp, 3, "1.00"})

	out, err := f.svc.LowProducts(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLowProductsDays, out.Days)
	require.Len(t, out.LowSelling, 2)
	assert.Equal(t, ink.ID, out.LowSelling[0].ProductID)
	assert.Equal(t, pen.ID, out.LowSelling[1].ProductID)
	require.Len(t, out.UnsoldProducts, 1)
	assert.Equal(t, lamp.ID, out.UnsoldProducts[0].ID)

	wide, err := f.svc.LowProducts(context.Background(), 90)
	require.NoError(t, err)
	assert.Len(t, wide.LowSelling, 3)
	assert.Empty(t, wide.UnsoldProducts)
}

func TestOverallCountsDistinctCustomers(t *testing.T) {
	f := newFixture(t)
	pen := f.product("Pen", false)
	f.catalog.counts = productclient.Counts{TotalProducts: 4, ListedProducts: 3, UnlistedProducts: 1}

	f.order(t, "a", enums.OrderStatusPending, now, line{pen, 1, "2.00"})
	f.order(t, "a", enums.OrderStatusDelivered, now, line{pen, 1, "3.00"})
	f.order(t, "b", enums.OrderStatusCancelled, now, line{pen, 1, "5.00"})
	f.order(t, "z", enums.OrderStatusFailed, now, line{pen, 1, "70.00"})

	out, err := f.svc.Overall(context.Background())
	require.NoError(t, err)
	assert.True(t, out.TotalRevenue.Equal(dec("10")), out.TotalRevenue.String())
	assert.EqualValues(t, 3, out.TotalOrders)
	assert.EqualValues(t, 2, out.TotalCustomers)
	assert.EqualValues(t, 4, out.TotalProducts)
	assert.EqualValues(t, 3, out.ListedProducts)
	assert.EqualValues(t, 1, out.UnlistedProducts)
}

func TestRecomputeAllBroadcastsEveryRollup(t *testing.T) {
	f := newFixture(t)
	pen := f.product("Pen", false)
	f.order(t, "a", enums.OrderStatusPending, now, line{pen, 1, "2.00"})

	require.NoError(t, f.svc.RecomputeAll(context.Background()))
	assert.Equal(t, enums.RollupTags, f.hub.tags)
	assert.Len(t, f.bus.Published(events.DefaultTopics.Analytics), len(enums.RollupTags))
}

func TestRecomputeAllKeepsGoingWhenCatalogFails(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = errors.New("product service down")

	err := f.svc.RecomputeAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, []enums.BroadcastTag{
		enums.BroadcastSalesOverview,
		enums.BroadcastMonthlySales,
		enums.BroadcastYearlySales,
	}, f.hub.tags)
}

func TestSnapshotDoesNotBroadcast(t *testing.T) {
	f := newFixture(t)
	msgs, err := f.svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, msgs, len(enums.RollupTags))
	assert.Empty(t, f.hub.tags)
	assert.Empty(t, f.bus.Published(events.DefaultTopics.Analytics))
}
