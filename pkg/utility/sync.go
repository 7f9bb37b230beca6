package utility

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raterudder/esoimport/pkg/log"
)

// Syncer copies confirmed prices from a Provider into the price history of a
// price entity so they can be joined with consumption.
type Syncer struct {
	provider Provider
	store    PriceStore
	entityID string
	lookback time.Duration
	now      func() time.Time
}

// NewSyncer returns a Syncer writing prices of provider to store under
// entityID. Each sync covers the hours within lookback of now.
func NewSyncer(provider Provider, store PriceStore, entityID string, lookback time.Duration) *Syncer {
	return &Syncer{
		provider: provider,
		store:    store,
		entityID: entityID,
		lookback: lookback,
		now:      time.Now,
	}
}

// Validate ensures the configuration is valid.
func (s *Syncer) Validate() error {
	if s.entityID == "" {
		return fmt.Errorf("price-entity is required")
	}
	if s.lookback < time.Hour {
		return fmt.Errorf("price-sync-lookback must be at least an hour")
	}
	return nil
}

// Enabled reports whether the syncer has a price entity to fill.
func (s *Syncer) Enabled() bool {
	return s.entityID != "" && s.provider != nil
}

// Sync fetches the confirmed prices of the lookback window and upserts them.
// It returns the number of prices written. A disabled syncer does nothing.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	end := s.now().Truncate(time.Hour)
	start := end.Add(-s.lookback)

	prices, err := s.provider.GetConfirmedPrices(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to get prices: %w", err)
	}

	var n int
	for _, p := range prices {
		if err := s.store.UpsertPrice(ctx, s.entityID, p); err != nil {
			return n, fmt.Errorf("failed to upsert price for %s: %w", p.TSStart, err)
		}
		n++
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"synced prices",
		slog.String("priceEntity", s.entityID),
		slog.Time("start", start),
		slog.Time("end", end),
		slog.Int("count", n),
	)
	return n, nil
}
