package utility

import (
	"context"
	"time"

	"github.com/raterudder/esoimport/pkg/types"
)

// Provider defines the interface for fetching energy prices.
type Provider interface {
	// GetConfirmedPrices returns hourly prices for hours that already ended
	// within [start, end).
	GetConfirmedPrices(ctx context.Context, start, end time.Time) ([]types.Price, error)
}

// PriceStore persists prices for a price entity.
type PriceStore interface {
	UpsertPrice(ctx context.Context, entityID string, price types.Price) error
}
