package eso

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vilnius(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Vilnius")
	require.NoError(t, err)
	return loc
}

func TestParseSeries(t *testing.T) {
	loc := vilnius(t)

	t.Run("EndOfHourShift", func(t *testing.T) {
		series, err := ParseSeries(RawDataset{
			Key:     "P+",
			Records: []RawRecord{{Date: "202403150300", Value: "1.234"}},
		}, loc)
		require.NoError(t, err)
		require.Len(t, series, 1)

		expected, err := time.Parse(time.RFC3339, "2024-03-15T02:00:00+02:00")
		require.NoError(t, err)
		for ts, v := range series {
			assert.True(t, expected.Equal(ts), "got %s", ts)
			assert.Equal(t, loc, ts.Location())
			assert.Equal(t, 1.234, v)
		}
	})

	t.Run("AbsoluteAndMissing", func(t *testing.T) {
		series, err := ParseSeries(RawDataset{
			Key: "P-",
			Records: []RawRecord{
				{Date: "20240315010000", Value: "-2.5"},
				{Date: "202403150200", Value: ""},
				{Date: "202403150300", Value: "0.75"},
			},
		}, loc)
		require.NoError(t, err)

		points := series.Points()
		require.Len(t, points, 3)
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, loc), points[0].Start)
		assert.Equal(t, 2.5, points[0].Value)
		assert.Equal(t, 0.0, points[1].Value)
		assert.Equal(t, 0.75, points[2].Value)
	})

	t.Run("LastWriteWins", func(t *testing.T) {
		series, err := ParseSeries(RawDataset{
			Records: []RawRecord{
				{Date: "202403150100", Value: "1"},
				{Date: "202403150100", Value: "3"},
			},
		}, loc)
		require.NoError(t, err)
		require.Len(t, series, 1)
		assert.Equal(t, 3.0, series[time.Date(2024, 3, 15, 0, 0, 0, 0, loc)])
	})

	t.Run("AutumnChange", func(t *testing.T) {
		// 03:00 happens twice on 2024-10-27, first as EEST then as EET
		series, err := ParseSeries(RawDataset{
			Key: "P+",
			Records: []RawRecord{
				{Date: "202410270200", Value: "1"},
				{Date: "202410270300", Value: "2"},
				{Date: "202410270300", Value: "3"},
				{Date: "202410270400", Value: "4"},
			},
		}, loc)
		require.NoError(t, err)

		points := series.Points()
		require.Len(t, points, 4)
		first := time.Date(2024, 10, 26, 22, 0, 0, 0, time.UTC)
		for i, p := range points {
			assert.True(t, first.Add(time.Duration(i)*time.Hour).Equal(p.Start), "got %s", p.Start)
			assert.Equal(t, float64(i+1), p.Value)
		}
		assert.Equal(t, "2024-10-27T02:00:00+03:00", points[1].Start.Format(time.RFC3339))
		assert.Equal(t, "2024-10-27T03:00:00+03:00", points[2].Start.Format(time.RFC3339))
		assert.Equal(t, "2024-10-27T03:00:00+02:00", points[3].Start.Format(time.RFC3339))
	})

	t.Run("AutumnChangeSingleRecord", func(t *testing.T) {
		series, err := ParseSeries(RawDataset{
			Records: []RawRecord{{Date: "20241027030000", Value: "1"}},
		}, loc)
		require.NoError(t, err)
		points := series.Points()
		require.Len(t, points, 1)
		assert.Equal(t, "2024-10-27T02:00:00+03:00", points[0].Start.Format(time.RFC3339))
	})

	t.Run("SpringChange", func(t *testing.T) {
		// 03:00 doesn't exist on 2024-03-31, the clock jumps to 04:00
		series, err := ParseSeries(RawDataset{
			Records: []RawRecord{
				{Date: "202403310200", Value: "1"},
				{Date: "202403310400", Value: "2"},
				{Date: "202403310500", Value: "3"},
			},
		}, loc)
		require.NoError(t, err)

		points := series.Points()
		require.Len(t, points, 3)
		first := time.Date(2024, 3, 30, 23, 0, 0, 0, time.UTC)
		for i, p := range points {
			assert.True(t, first.Add(time.Duration(i)*time.Hour).Equal(p.Start), "got %s", p.Start)
			assert.Equal(t, float64(i+1), p.Value)
		}
		assert.Equal(t, "2024-03-31T01:00:00+02:00", points[0].Start.Format(time.RFC3339))
		assert.Equal(t, "2024-03-31T02:00:00+02:00", points[1].Start.Format(time.RFC3339))
		assert.Equal(t, "2024-03-31T04:00:00+03:00", points[2].Start.Format(time.RFC3339))
	})

	t.Run("InvalidDate", func(t *testing.T) {
		_, err := ParseSeries(RawDataset{Records: []RawRecord{{Date: "2024-03-15", Value: "1"}}}, loc)
		assert.Error(t, err)

		_, err = ParseSeries(RawDataset{Records: []RawRecord{{Date: "202413150100", Value: "1"}}}, loc)
		assert.Error(t, err)
	})

	t.Run("InvalidValue", func(t *testing.T) {
		_, err := ParseSeries(RawDataset{Records: []RawRecord{{Date: "202403150100", Value: "abc"}}}, loc)
		assert.Error(t, err)
	})
}

func TestParseDatasets(t *testing.T) {
	loc := vilnius(t)
	raw := []RawDataset{
		{Key: "P+", Records: []RawRecord{{Date: "202403150100", Value: "1.5"}, {Date: "202403150200", Value: "2"}}},
		{Key: "P-", Records: []RawRecord{{Date: "202403150100", Value: "-0.5"}}},
	}

	first, err := ParseDatasets(raw, loc)
	require.NoError(t, err)
	second, err := ParseDatasets(raw, loc)
	require.NoError(t, err)
	assert.Equal(t, first, second, "parsing must be idempotent")

	require.Contains(t, first, "P+")
	require.Contains(t, first, "P-")
	assert.Len(t, first["P+"], 2)
	assert.Equal(t, 0.5, first["P-"][time.Date(2024, 3, 15, 0, 0, 0, 0, loc)])

	_, err = ParseDatasets([]RawDataset{{Key: "P+", Records: []RawRecord{{Date: "bad"}}}}, loc)
	assert.ErrorContains(t, err, `"P+"`)
}
