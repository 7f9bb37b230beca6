// Package statistics turns hourly series into records with running sums that
// continue from previously published history.
package statistics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/raterudder/esoimport/pkg/log"
	"github.com/raterudder/esoimport/pkg/types"
)

// ErrNoPrices is returned by BuildCost when there are no prices to join
// against. Callers skip the cost statistic.
var ErrNoPrices = errors.New("no prices available")

// costPrecision is the number of decimal places kept for hourly cost values.
const costPrecision = 5

// HistoryLookup returns the running sum a statistic had before an instant.
type HistoryLookup interface {
	// SumBefore returns the latest sum among records starting in
	// [before-period, before). It returns 0 if there are none.
	SumBefore(ctx context.Context, statisticID string, before time.Time, period types.StatisticsPeriod) (float64, error)
}

// PriceSource returns the hourly prices of a price entity.
type PriceSource interface {
	// PricesBetween returns prices starting in [from, to). An unknown entity
	// returns an empty slice.
	PricesBetween(ctx context.Context, entityID string, from, to time.Time) ([]types.Price, error)
}

// Build returns one record per instant of series in ascending order. The
// running sum starts from the statistic's history before the first instant.
func Build(ctx context.Context, statisticID string, series types.Series, period types.StatisticsPeriod, history HistoryLookup) ([]types.Statistic, error) {
	return accumulate(ctx, statisticID, series.Points(), period, history)
}

// BuildCost multiplies each consumed value with the price starting at the
// same instant. Instants without a price cost nothing.
func BuildCost(ctx context.Context, statisticID string, consumed types.Series, prices []types.Price, period types.StatisticsPeriod, history HistoryLookup) ([]types.Statistic, error) {
	if len(prices) == 0 {
		return nil, ErrNoPrices
	}

	// keyed by unix time so instants in different locations match
	byStart := make(map[int64]float64, len(prices))
	for _, p := range prices {
		byStart[p.TSStart.Unix()] = p.PerKWH
	}

	points := consumed.Points()
	var missing int
	for i, p := range points {
		price, ok := byStart[p.Start.Unix()]
		if !ok {
			missing++
		}
		points[i].Value = Round(p.Value*price, costPrecision)
	}
	if missing > 0 {
		log.Ctx(ctx).WarnContext(
			ctx,
			"missing prices for some hours, using 0",
			slog.String("statisticID", statisticID),
			slog.Int("missing", missing),
		)
	}

	return accumulate(ctx, statisticID, points, period, history)
}

func accumulate(ctx context.Context, statisticID string, points []types.SeriesPoint, period types.StatisticsPeriod, history HistoryLookup) ([]types.Statistic, error) {
	if len(points) == 0 {
		return nil, nil
	}

	sum, err := history.SumBefore(ctx, statisticID, points[0].Start, period)
	if err != nil {
		return nil, fmt.Errorf("failed to get history sum for %s: %w", statisticID, err)
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"seeding running sum",
		slog.String("statisticID", statisticID),
		slog.Time("before", points[0].Start),
		slog.Float64("sum", sum),
	)

	records := make([]types.Statistic, 0, len(points))
	for _, p := range points {
		sum += p.Value
		records = append(records, types.Statistic{
			Start: p.Start,
			Value: p.Value,
			Sum:   sum,
		})
	}
	return records, nil
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
