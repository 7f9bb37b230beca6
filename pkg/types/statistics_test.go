package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesPoints(t *testing.T) {
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	s := Series{
		base.Add(2 * time.Hour): 3,
		base:                    1,
		base.Add(time.Hour):     2,
	}

	points := s.Points()
	require.Len(t, points, 3)
	for i, p := range points {
		assert.Equal(t, base.Add(time.Duration(i)*time.Hour), p.Start)
		assert.Equal(t, float64(i+1), p.Value)
	}

	assert.Empty(t, Series{}.Points())
}

func TestStatisticIDs(t *testing.T) {
	assert.Equal(t, "eso:energy_consumed_123", EnergyStatisticID("eso", EnergyConsumed, "123"))
	assert.Equal(t, "eso:energy_returned_123", EnergyStatisticID("eso", EnergyReturned, "123"))
	assert.Equal(t, "eso:energy_cost_123", CostStatisticID("eso", "123"))
	assert.Equal(t, "P+", EnergyConsumed.SeriesKey())
	assert.Equal(t, "P-", EnergyReturned.SeriesKey())
}

func TestStatisticsPeriod(t *testing.T) {
	p, err := ParseStatisticsPeriod("hour")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, p.Duration())

	p, err = ParseStatisticsPeriod("day")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, p.Duration())

	_, err = ParseStatisticsPeriod("week")
	assert.Error(t, err)
}
