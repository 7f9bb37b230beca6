package types

import (
	"fmt"
	"sort"
	"time"
)

// EnergyKind is the kind of energy series imported for a metering point.
type EnergyKind string

const (
	EnergyConsumed EnergyKind = "consumed"
	EnergyReturned EnergyKind = "returned"
)

// SeriesKey returns the provider series key for the energy kind.
func (k EnergyKind) SeriesKey() string {
	switch k {
	case EnergyConsumed:
		return "P+"
	case EnergyReturned:
		return "P-"
	default:
		return ""
	}
}

// UnitKWH is the unit of every energy statistic.
const UnitKWH = "kWh"

// Series maps the start of an hour to the energy measured during that hour.
// Values are always non-negative.
type Series map[time.Time]float64

// SeriesPoint is a single hourly reading.
type SeriesPoint struct {
	Start time.Time `json:"start"`
	Value float64   `json:"value"`
}

// Points returns the series sorted by ascending start time.
func (s Series) Points() []SeriesPoint {
	points := make([]SeriesPoint, 0, len(s))
	for ts, v := range s {
		points = append(points, SeriesPoint{Start: ts, Value: v})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Start.Before(points[j].Start)
	})
	return points
}

// Dataset maps a provider series key (P+, P-) to its hourly series.
type Dataset map[string]Series

// Statistic is a single hourly record with its running sum.
type Statistic struct {
	Start time.Time `json:"start"`
	Value float64   `json:"value"`
	Sum   float64   `json:"sum"`
}

// StatisticMetadata describes a published statistic series.
type StatisticMetadata struct {
	StatisticID string `json:"statisticID"`
	Source      string `json:"source"`
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	HasSum      bool   `json:"hasSum"`
	HasMean     bool   `json:"hasMean"`
}

// EnergyStatisticID returns the statistic id for an energy kind of a point.
func EnergyStatisticID(source string, kind EnergyKind, pointID string) string {
	return fmt.Sprintf("%s:energy_%s_%s", source, kind, pointID)
}

// CostStatisticID returns the statistic id for the cost of a point.
func CostStatisticID(source string, pointID string) string {
	return fmt.Sprintf("%s:energy_cost_%s", source, pointID)
}

// StatisticsPeriod is the granularity used when looking up the previous sum
// of a statistic.
type StatisticsPeriod string

const (
	PeriodHour StatisticsPeriod = "hour"
	PeriodDay  StatisticsPeriod = "day"
)

// ParseStatisticsPeriod validates a period name.
func ParseStatisticsPeriod(s string) (StatisticsPeriod, error) {
	switch StatisticsPeriod(s) {
	case PeriodHour, PeriodDay:
		return StatisticsPeriod(s), nil
	default:
		return "", fmt.Errorf("unknown statistics period: %s", s)
	}
}

// Duration returns the length of one bucket of the period.
func (p StatisticsPeriod) Duration() time.Duration {
	if p == PeriodHour {
		return time.Hour
	}
	return 24 * time.Hour
}
