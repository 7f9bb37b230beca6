package storage

import (
	"context"
	"errors"
	"time"

	"github.com/raterudder/esoimport/pkg/types"
)

// ErrStatisticNotFound is returned when a statistic has never been published.
var ErrStatisticNotFound = errors.New("statistic not found")

// Database persists published statistics and the prices used to compute
// cost statistics.
type Database interface {
	// History
	// SumBefore returns the latest sum among records of the statistic that
	// start in [before-period, before). It returns 0 if there are none.
	SumBefore(ctx context.Context, statisticID string, before time.Time, period types.StatisticsPeriod) (float64, error)
	// GetStatistics returns records starting in [start, end) in ascending
	// order.
	GetStatistics(ctx context.Context, statisticID string, start, end time.Time) ([]types.Statistic, error)
	GetStatisticMetadata(ctx context.Context, statisticID string) (types.StatisticMetadata, error)

	// Prices
	// PricesBetween returns prices of the entity starting in [start, end) in
	// ascending order. An unknown entity returns an empty slice.
	PricesBetween(ctx context.Context, entityID string, start, end time.Time) ([]types.Price, error)
	UpsertPrice(ctx context.Context, entityID string, price types.Price) error

	// Publishing
	// UpsertStatistics stores the metadata and records of a statistic,
	// replacing any record with the same start.
	UpsertStatistics(ctx context.Context, metadata types.StatisticMetadata, records []types.Statistic) error

	// Lifecycle
	Close() error
}

// sumWindow returns the range SumBefore searches.
func sumWindow(before time.Time, period types.StatisticsPeriod) (time.Time, time.Time) {
	return before.Add(-period.Duration()), before
}
