// Package sales computes the dashboard rollups over counted orders and
// pushes each fresh result to connected dashboards and the analytics topic.
package sales

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/stockline/backoffice/internal/productclient"
	"github.com/stockline/backoffice/pkg/db/models"
	"github.com/stockline/backoffice/pkg/enums"
	pkgerrors "github.com/stockline/backoffice/pkg/errors"
	"github.com/stockline/backoffice/pkg/eventbus"
	"github.com/stockline/backoffice/pkg/events"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/wsfanout"
)

// Broadcaster pushes an envelope to connected dashboards.
type Broadcaster interface {
	Broadcast(event enums.BroadcastTag, data any) int
}

// Service defines the sales rollup operations. Every exported read
// recomputes from the order store and broadcasts the result.
type Service interface {
	Overview(ctx context.Context) (*Overview, error)
	Monthly(ctx context.Context) ([]MonthlySales, error)
	Yearly(ctx context.Context) ([]YearlySales, error)
	TopProducts(ctx context.Context) ([]ProductSales, error)
	LowProducts(ctx context.Context, days int) (*LowProducts, error)
	Overall(ctx context.Context) (*OverallMetrics, error)
	RecomputeAll(ctx context.Context) error
	Snapshot(ctx context.Context) ([]wsfanout.Message, error)
}

// Dependencies wires the rollup service. Broadcaster and Publisher are
// optional; Now defaults to time.Now.
type Dependencies struct {
	Repo        Repository
	Catalog     productclient.Catalog
	Broadcaster Broadcaster
	Publisher   eventbus.Publisher
	Topic       string
	Logger      *logger.Logger
	Now         func() time.Time
}

type service struct {
	repo        Repository
	catalog     productclient.Catalog
	broadcaster Broadcaster
	publisher   eventbus.Publisher
	topic       string
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(deps Dependencies) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sales repository required")
	case deps.Catalog == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product catalog required")
	case deps.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	case deps.Publisher != nil && deps.Topic == "":
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "analytics topic required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        deps.Repo,
		catalog:     deps.Catalog,
		broadcaster: deps.Broadcaster,
		publisher:   deps.Publisher,
		topic:       deps.Topic,
		logg:        deps.Logger,
		now:         now,
	}, nil
}

func (s *service) Overview(ctx context.Context) (*Overview, error) {
	out, err := s.overview(ctx)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, enums.BroadcastSalesOverview, out)
	return out, nil
}

func (s *service) Monthly(ctx context.Context) ([]MonthlySales, error) {
	out, err := s.monthly(ctx)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, enums.BroadcastMonthlySales, out)
	return out, nil
}

func (s *service) Yearly(ctx context.Context) ([]YearlySales, error) {
	out, err := s.yearly(ctx)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, enums.BroadcastYearlySales, out)
	return out, nil
}

func (s *service) TopProducts(ctx context.Context) ([]ProductSales, error) {
	out, err := s.topProducts(ctx)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, enums.BroadcastTopProducts, out)
	return out, nil
}

func (s *service) LowProducts(ctx context.Context, days int) (*LowProducts, error) {
	out, err := s.lowProducts(ctx, days)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, enums.BroadcastLowProducts, out)
	return out, nil
}

func (s *service) Overall(ctx context.Context) (*OverallMetrics, error) {
	out, err := s.overall(ctx)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, enums.BroadcastOverallMetrics, out)
	return out, nil
}

// RecomputeAll refreshes and broadcasts every rollup. One failing rollup
// does not stop the others.
func (s *service) RecomputeAll(ctx context.Context) error {
	msgs, err := s.compute(ctx)
	for _, msg := range msgs {
		s.emit(ctx, msg.Event, msg.Data)
	}
	return err
}

// Snapshot computes every rollup for a single newly connected client
// without broadcasting.
func (s *service) Snapshot(ctx context.Context) ([]wsfanout.Message, error) {
	return s.compute(ctx)
}

func (s *service) compute(ctx context.Context) ([]wsfanout.Message, error) {
	steps := []struct {
		tag enums.BroadcastTag
		fn  func(context.Context) (any, error)
	}{
		{enums.BroadcastSalesOverview, func(ctx context.Context) (any, error) { return s.overview(ctx) }},
		{enums.BroadcastMonthlySales, func(ctx context.Context) (any, error) { return s.monthly(ctx) }},
		{enums.BroadcastYearlySales, func(ctx context.Context) (any, error) { return s.yearly(ctx) }},
		{enums.BroadcastTopProducts, func(ctx context.Context) (any, error) { return s.topProducts(ctx) }},
		{enums.BroadcastLowProducts, func(ctx context.Context) (any, error) { return s.lowProducts(ctx, DefaultLowProductsDays) }},
		{enums.BroadcastOverallMetrics, func(ctx context.Context) (any, error) { return s.overall(ctx) }},
	}

	var errs error
	msgs := make([]wsfanout.Message, 0, len(steps))
	for _, step := range steps {
		data, err := step.fn(ctx)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		msgs = append(msgs, wsfanout.Message{Event: step.tag, Data: data})
	}
	return msgs, errs
}

func (s *service) overview(ctx context.Context) (*Overview, error) {
	now := s.now()
	windows := []time.Duration{24 * time.Hour, 7 * 24 * time.Hour, 30 * 24 * time.Hour}
	totals := make([]WindowTotals, len(windows))
	for i, d := range windows {
		t, err := s.repo.Window(ctx, now.Add(-d))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sales overview")
		}
		t.TotalSales = t.TotalSales.Round(2)
		totals[i] = t
	}
	return &Overview{Last24Hours: totals[0], Last7Days: totals[1], Last30Days: totals[2]}, nil
}

func (s *service) monthly(ctx context.Context) ([]MonthlySales, error) {
	facts, err := s.repo.Facts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "monthly sales")
	}
	type key struct{ year, month int }
	buckets := map[key]*MonthlySales{}
	for _, f := range facts {
		at := f.CreatedAt.UTC()
		k := key{at.Year(), int(at.Month())}
		b, ok := buckets[k]
		if !ok {
			b = &MonthlySales{Year: k.year, Month: k.month}
			buckets[k] = b
		}
		b.TotalSales = b.TotalSales.Add(f.Total)
		b.OrderCount++
	}

	out := make([]MonthlySales, 0, len(buckets))
	for _, b := range buckets {
		b.TotalSales = b.TotalSales.Round(2)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out, nil
}

func (s *service) yearly(ctx context.Context) ([]YearlySales, error) {
	facts, err := s.repo.Facts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "yearly sales")
	}
	buckets := map[int]*YearlySales{}
	for _, f := range facts {
		year := f.CreatedAt.UTC().Year()
		b, ok := buckets[year]
		if !ok {
			b = &YearlySales{Year: year}
			buckets[year] = b
		}
		b.TotalSales = b.TotalSales.Add(f.Total)
		b.OrderCount++
	}

	out := make([]YearlySales, 0, len(buckets))
	for _, b := range buckets {
		b.TotalSales = b.TotalSales.Round(2)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out, nil
}

func (s *service) topProducts(ctx context.Context) ([]ProductSales, error) {
	rows, err := s.repo.ProductSales(ctx, time.Time{}, false, ProductLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "top products")
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
	}
	details, err := s.catalog.Bulk(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(details))
	for _, p := range details {
		byID[p.ID] = p
	}

	out := make([]ProductSales, 0, len(rows))
	for _, row := range rows {
		entry := toProductSales(row)
		if p, ok := byID[row.ProductID]; ok {
			entry.Product = &p
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *service) lowProducts(ctx context.Context, days int) (*LowProducts, error) {
	if days <= 0 {
		days = DefaultLowProductsDays
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)

	rows, err := s.repo.ProductSales(ctx, since, true, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "low products")
	}
	listed, err := s.catalog.Listed(ctx)
	if err != nil {
		return nil, err
	}

	sold := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		sold[row.ProductID] = struct{}{}
	}
	unsold := make([]models.Product, 0)
	for _, p := range listed {
		if _, ok := sold[p.ID]; !ok {
			unsold = append(unsold, p)
		}
	}

	if len(rows) > ProductLimit {
		rows = rows[:ProductLimit]
	}
	low := make([]ProductSales, 0, len(rows))
	for _, row := range rows {
		low = append(low, toProductSales(row))
	}
	return &LowProducts{Days: days, LowSelling: low, UnsoldProducts: unsold}, nil
}

func (s *service) overall(ctx context.Context) (*OverallMetrics, error) {
	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "overall metrics")
	}
	counts, err := s.catalog.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &OverallMetrics{
		TotalRevenue:     totals.TotalRevenue.Round(2),
		TotalOrders:      totals.TotalOrders,
		TotalCustomers:   totals.TotalCustomers,
		TotalProducts:    counts.TotalProducts,
		ListedProducts:   counts.ListedProducts,
		UnlistedProducts: counts.UnlistedProducts,
	}, nil
}

// emit is best-effort: a dashboard or broker hiccup never fails a read.
func (s *service) emit(ctx context.Context, tag enums.BroadcastTag, data any) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(tag, data)
	}
	if s.publisher == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		s.logg.Error(ctx, "failed to encode rollup snapshot", err)
		return
	}
	snapshot := events.RollupSnapshot{Tag: tag, Data: raw, ComputedAt: s.now().UTC()}
	if _, err := eventbus.PublishEvent(ctx, s.publisher, s.topic, enums.EventRollupSnapshot, snapshot); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "rollup", string(tag)), "failed to publish rollup snapshot", err)
	}
}

func toProductSales(row ProductTotals) ProductSales {
	return ProductSales{
		ProductID:    row.ProductID,
		TotalSold:    row.TotalSold,
		TotalRevenue: row.TotalRevenue.Round(2),
	}
}
