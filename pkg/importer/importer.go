// Package importer runs import cycles: it logs in to the portal, fetches the
// hourly data of every configured metering point and publishes statistics
// with running sums.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raterudder/esoimport/pkg/eso"
	"github.com/raterudder/esoimport/pkg/log"
	"github.com/raterudder/esoimport/pkg/metrics"
	"github.com/raterudder/esoimport/pkg/statistics"
	"github.com/raterudder/esoimport/pkg/storage"
	"github.com/raterudder/esoimport/pkg/types"
)

const costKind = "cost"

var (
	// ErrCycleRunning is returned by RunCycle when another cycle hasn't
	// finished yet.
	ErrCycleRunning = errors.New("import cycle already running")

	errMissingSeries = errors.New("missing series")
)

// PortalClient is the subset of eso.Client used by the importer.
type PortalClient interface {
	Login(ctx context.Context, creds types.Credentials) error
	Ready() bool
	FetchConsumption(ctx context.Context, pointID string, asOf time.Time) error
	Dataset(pointID string) (types.Dataset, bool)
}

var _ PortalClient = (*eso.Client)(nil)

// PriceSyncer fills the price history used to build cost statistics.
type PriceSyncer interface {
	Sync(ctx context.Context) (int, error)
}

// Summary describes the outcome of one import cycle.
type Summary struct {
	CycleID  string `json:"cycleID"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Records  int    `json:"records"`
}

// Importer imports the configured metering points into storage.
type Importer struct {
	client  PortalClient
	db      storage.Database
	metrics *metrics.Metrics
	prices  PriceSyncer

	creds    types.Credentials
	points   []types.MeteringPoint
	interval time.Duration
	period   types.StatisticsPeriod
	source   string
	now      func() time.Time

	running sync.Mutex
}

// New returns an importer with default settings and no metering points.
func New(client PortalClient, db storage.Database, m *metrics.Metrics) *Importer {
	return &Importer{
		client:   client,
		db:       db,
		metrics:  m,
		interval: 2 * time.Hour,
		period:   types.PeriodDay,
		source:   "eso",
		now:      time.Now,
	}
}

// SetPriceSyncer makes every cycle sync prices before importing points.
func (i *Importer) SetPriceSyncer(s PriceSyncer) {
	i.prices = s
}

// Validate ensures the configuration is valid.
func (i *Importer) Validate() error {
	if err := i.creds.Validate(); err != nil {
		return err
	}
	if err := types.ValidateMeteringPoints(i.points); err != nil {
		return err
	}
	if i.interval <= 0 {
		return fmt.Errorf("import-interval must be positive")
	}
	if i.source == "" {
		return fmt.Errorf("statistics-source is required")
	}
	return nil
}

// Run runs a cycle immediately and then on every interval until ctx is done.
func (i *Importer) Run(ctx context.Context) error {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		if _, err := i.RunCycle(ctx); err != nil {
			if errors.Is(err, ErrCycleRunning) {
				log.Ctx(ctx).DebugContext(ctx, "skipping tick, cycle already running")
			} else if ctx.Err() == nil {
				log.Ctx(ctx).ErrorContext(ctx, "import cycle failed", slog.Any("error", err))
			}
		}

		select {
		case <-ctx.Done():
			log.Ctx(ctx).InfoContext(ctx, "stopping importer")
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle logs in and imports every metering point once. Failures of a
// single point are logged and counted in the summary. An error is returned if
// the login fails, ctx is cancelled or another cycle is running.
func (i *Importer) RunCycle(ctx context.Context) (Summary, error) {
	if !i.running.TryLock() {
		return Summary{}, ErrCycleRunning
	}
	defer i.running.Unlock()

	summary := Summary{CycleID: uuid.NewString()}
	ctx = log.WithAttrs(ctx, slog.String("cycleID", summary.CycleID))

	start := time.Now()
	err := i.runCycle(ctx, &summary)
	i.metrics.ObserveCycle(start, err)

	log.Ctx(ctx).InfoContext(
		ctx,
		"import cycle finished",
		slog.Int("imported", summary.Imported),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Int("records", summary.Records),
		slog.Duration("took", time.Since(start)),
	)
	return summary, err
}

func (i *Importer) runCycle(ctx context.Context, summary *Summary) error {
	if len(i.points) == 0 {
		log.Ctx(ctx).WarnContext(ctx, "no metering points configured")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// a failed sync only means cost statistics use whatever prices are stored
	if i.prices != nil {
		if _, err := i.prices.Sync(ctx); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to sync prices", slog.Any("error", err))
		}
	}

	log.Ctx(ctx).DebugContext(ctx, "logging in")
	if err := i.client.Login(ctx, i.creds); err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}

	asOf := i.now()
	for _, p := range i.points {
		if err := ctx.Err(); err != nil {
			return err
		}
		pctx := log.WithAttrs(ctx, slog.String("pointID", p.ID), slog.String("pointName", p.Name))

		if !i.client.Ready() {
			log.Ctx(pctx).InfoContext(pctx, "session lost, logging in again")
			if err := i.client.Login(pctx, i.creds); err != nil {
				log.Ctx(pctx).ErrorContext(pctx, "failed to login", slog.Any("error", err))
				summary.Failed++
				i.metrics.ObservePoint(metrics.ResultError)
				continue
			}
		}

		n, err := i.importPoint(pctx, p, asOf)
		switch {
		case err == nil:
			summary.Imported++
			summary.Records += n
			i.metrics.ObservePoint(metrics.ResultSuccess)
		case errors.Is(err, eso.ErrEmptyDataset), errors.Is(err, errMissingSeries):
			log.Ctx(pctx).WarnContext(pctx, "skipping metering point", slog.Any("error", err))
			summary.Skipped++
			i.metrics.ObservePoint(metrics.ResultSkipped)
		default:
			log.Ctx(pctx).ErrorContext(pctx, "failed to import metering point", slog.Any("error", err))
			summary.Failed++
			i.metrics.ObservePoint(metrics.ResultError)
		}
	}
	return nil
}

type pendingStatistic struct {
	kind     string
	metadata types.StatisticMetadata
	records  []types.Statistic
}

// importPoint fetches and builds every statistic of the point and publishes
// them only once all of them were built.
func (i *Importer) importPoint(ctx context.Context, p types.MeteringPoint, asOf time.Time) (int, error) {
	if err := i.client.FetchConsumption(ctx, p.ID, asOf); err != nil {
		return 0, err
	}
	dataset, ok := i.client.Dataset(p.ID)
	if !ok {
		return 0, eso.ErrEmptyDataset
	}

	var pending []pendingStatistic
	for _, kind := range p.Kinds() {
		series, ok := dataset[kind.SeriesKey()]
		if !ok {
			return 0, fmt.Errorf("%w: %s", errMissingSeries, kind.SeriesKey())
		}

		md := types.StatisticMetadata{
			StatisticID: types.EnergyStatisticID(i.source, kind, p.ID),
			Source:      i.source,
			Name:        fmt.Sprintf("%s (%s)", p.Name, kind),
			Unit:        types.UnitKWH,
			HasSum:      true,
		}
		records, err := statistics.Build(ctx, md.StatisticID, series, i.period, i.db)
		if err != nil {
			return 0, err
		}
		pending = append(pending, pendingStatistic{kind: string(kind), metadata: md, records: records})

		if kind == types.EnergyConsumed && p.PriceEntity != "" {
			cost, err := i.buildCost(ctx, p, series)
			if errors.Is(err, statistics.ErrNoPrices) {
				log.Ctx(ctx).WarnContext(ctx, "no prices found, skipping cost", slog.String("priceEntity", p.PriceEntity))
			} else if err != nil {
				return 0, err
			} else {
				pending = append(pending, cost)
			}
		}
	}

	var published int
	for _, s := range pending {
		if len(s.records) == 0 {
			continue
		}
		i.checkMetadata(ctx, s.metadata)
		if err := i.db.UpsertStatistics(ctx, s.metadata, s.records); err != nil {
			return published, fmt.Errorf("failed to publish %s: %w", s.metadata.StatisticID, err)
		}
		published += len(s.records)
		i.metrics.ObservePublished(s.kind, len(s.records))
		log.Ctx(ctx).DebugContext(
			ctx,
			"published statistic",
			slog.String("statisticID", s.metadata.StatisticID),
			slog.Int("records", len(s.records)),
		)
	}
	return published, nil
}

func (i *Importer) buildCost(ctx context.Context, p types.MeteringPoint, consumed types.Series) (pendingStatistic, error) {
	points := consumed.Points()
	if len(points) == 0 {
		return pendingStatistic{}, statistics.ErrNoPrices
	}
	from := points[0].Start
	to := points[len(points)-1].Start.Add(time.Hour)

	prices, err := i.db.PricesBetween(ctx, p.PriceEntity, from, to)
	if err != nil {
		return pendingStatistic{}, fmt.Errorf("failed to get prices for %s: %w", p.PriceEntity, err)
	}

	md := types.StatisticMetadata{
		StatisticID: types.CostStatisticID(i.source, p.ID),
		Source:      i.source,
		Name:        fmt.Sprintf("%s (%s)", p.Name, costKind),
		Unit:        p.Currency(),
		HasSum:      true,
	}
	records, err := statistics.BuildCost(ctx, md.StatisticID, consumed, prices, i.period, i.db)
	if err != nil {
		return pendingStatistic{}, err
	}
	return pendingStatistic{kind: costKind, metadata: md, records: records}, nil
}

// checkMetadata warns when a statistic is about to be published with a unit
// different from the one already stored, which happens when a point's price
// currency changes.
func (i *Importer) checkMetadata(ctx context.Context, md types.StatisticMetadata) {
	prev, err := i.db.GetStatisticMetadata(ctx, md.StatisticID)
	switch {
	case errors.Is(err, storage.ErrStatisticNotFound):
		log.Ctx(ctx).DebugContext(ctx, "publishing new statistic", slog.String("statisticID", md.StatisticID))
	case err != nil:
		log.Ctx(ctx).WarnContext(
			ctx,
			"failed to get statistic metadata",
			slog.String("statisticID", md.StatisticID),
			slog.Any("error", err),
		)
	case prev.Unit != md.Unit:
		log.Ctx(ctx).WarnContext(
			ctx,
			"statistic unit changed",
			slog.String("statisticID", md.StatisticID),
			slog.String("previousUnit", prev.Unit),
			slog.String("unit", md.Unit),
		)
	}
}
