package utility

import (
	"context"
	"fmt"
	"time"

	"github.com/raterudder/esoimport/pkg/types"
)

// Fees wraps a Provider and adds fixed per kWh fees, such as distribution
// and public service obligation charges, to every price it returns.
type Fees struct {
	base    Provider
	periods []types.FeesPeriod
}

// NewFees returns a Provider that adds the periods' fees to base.
func NewFees(base Provider, periods []types.FeesPeriod) *Fees {
	return &Fees{base: base, periods: periods}
}

// Validate ensures every period is valid.
func (f *Fees) Validate() error {
	for _, p := range f.periods {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid price-fees: %w", err)
		}
	}
	return nil
}

func (f *Fees) applyFees(p types.Price) types.Price {
	for _, period := range f.periods {
		if !period.Start.IsZero() && p.TSStart.Before(period.Start) {
			continue
		}
		// End is exclusive
		if !period.End.IsZero() && !p.TSStart.Before(period.End) {
			continue
		}
		h := p.TSStart.In(vilniusLocation).Hour()
		if h < period.HourStart || h >= period.HourEnd {
			continue
		}
		p.PerKWH += period.PerKWH
	}
	return p
}

// GetConfirmedPrices implements Provider.
func (f *Fees) GetConfirmedPrices(ctx context.Context, start, end time.Time) ([]types.Price, error) {
	prices, err := f.base.GetConfirmedPrices(ctx, start, end)
	if err != nil {
		return nil, err
	}
	for i := range prices {
		prices[i] = f.applyFees(prices[i])
	}
	return prices, nil
}
