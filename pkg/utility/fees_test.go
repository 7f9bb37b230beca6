package utility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/esoimport/pkg/types"
)

type mockUtilityPrices struct {
	prices []types.Price
	err    error
}

func (m *mockUtilityPrices) GetConfirmedPrices(ctx context.Context, start, end time.Time) ([]types.Price, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]types.Price, len(m.prices))
	copy(out, m.prices)
	return out, nil
}

func TestFees(t *testing.T) {
	// 06:00 and 07:00 in Vilnius
	six := time.Date(2024, 1, 15, 4, 0, 0, 0, time.UTC)
	seven := six.Add(time.Hour)
	base := &mockUtilityPrices{prices: []types.Price{
		{Provider: "nordpool", TSStart: six, TSEnd: seven, PerKWH: 0.1},
		{Provider: "nordpool", TSStart: seven, TSEnd: seven.Add(time.Hour), PerKWH: 0.2},
	}}

	t.Run("Periods", func(t *testing.T) {
		f := NewFees(base, []types.FeesPeriod{
			{Description: "distribution", HourStart: 0, HourEnd: 24, PerKWH: 0.05},
			{Description: "day", HourStart: 7, HourEnd: 23, PerKWH: 0.01},
			{Description: "expired", HourStart: 0, HourEnd: 24, End: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), PerKWH: 1},
			{Description: "future", HourStart: 0, HourEnd: 24, Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), PerKWH: 1},
		})
		require.NoError(t, f.Validate())

		prices, err := f.GetConfirmedPrices(context.Background(), six, seven.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, prices, 2)
		assert.InDelta(t, 0.15, prices[0].PerKWH, 1e-9)
		assert.InDelta(t, 0.26, prices[1].PerKWH, 1e-9)
		assert.Equal(t, "nordpool", prices[1].Provider)

		// base prices are untouched
		assert.Equal(t, 0.1, base.prices[0].PerKWH)
	})

	t.Run("EndExclusive", func(t *testing.T) {
		f := NewFees(base, []types.FeesPeriod{
			{HourStart: 0, HourEnd: 24, End: seven, PerKWH: 0.5},
		})
		prices, err := f.GetConfirmedPrices(context.Background(), six, seven.Add(time.Hour))
		require.NoError(t, err)
		assert.InDelta(t, 0.6, prices[0].PerKWH, 1e-9)
		assert.InDelta(t, 0.2, prices[1].PerKWH, 1e-9)
	})

	t.Run("NoPeriods", func(t *testing.T) {
		prices, err := NewFees(base, nil).GetConfirmedPrices(context.Background(), six, seven)
		require.NoError(t, err)
		assert.Equal(t, base.prices, prices)
	})

	t.Run("BaseError", func(t *testing.T) {
		f := NewFees(&mockUtilityPrices{err: errors.New("boom")}, nil)
		_, err := f.GetConfirmedPrices(context.Background(), six, seven)
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("Invalid", func(t *testing.T) {
		f := NewFees(base, []types.FeesPeriod{{HourStart: 10, HourEnd: 5}})
		assert.Error(t, f.Validate())
	})
}
