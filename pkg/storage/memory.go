package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raterudder/esoimport/pkg/types"
)

// Memory is an in-process Database used for local runs and tests. Nothing
// survives a restart.
type Memory struct {
	mu         sync.RWMutex
	metadata   map[string]types.StatisticMetadata
	statistics map[string]map[int64]types.Statistic
	prices     map[string]map[int64]types.Price
}

var _ Database = (*Memory)(nil)

// NewMemory returns an empty in-memory database.
func NewMemory() *Memory {
	return &Memory{
		metadata:   make(map[string]types.StatisticMetadata),
		statistics: make(map[string]map[int64]types.Statistic),
		prices:     make(map[string]map[int64]types.Price),
	}
}

// SumBefore implements Database.
func (m *Memory) SumBefore(ctx context.Context, statisticID string, before time.Time, period types.StatisticsPeriod) (float64, error) {
	start, end := sumWindow(before, period)
	records, err := m.GetStatistics(ctx, statisticID, start, end)
	if err != nil || len(records) == 0 {
		return 0, err
	}
	return records[len(records)-1].Sum, nil
}

// GetStatistics implements Database.
func (m *Memory) GetStatistics(ctx context.Context, statisticID string, start, end time.Time) ([]types.Statistic, error) {
	if statisticID == "" {
		return nil, fmt.Errorf("statisticID cannot be empty")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []types.Statistic
	for _, s := range m.statistics[statisticID] {
		if inRange(s.Start, start, end) {
			records = append(records, s)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Start.Before(records[j].Start)
	})
	return records, nil
}

// GetStatisticMetadata implements Database.
func (m *Memory) GetStatisticMetadata(ctx context.Context, statisticID string) (types.StatisticMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.metadata[statisticID]
	if !ok {
		return types.StatisticMetadata{}, fmt.Errorf("%w: %s", ErrStatisticNotFound, statisticID)
	}
	return md, nil
}

// UpsertStatistics implements Database.
func (m *Memory) UpsertStatistics(ctx context.Context, metadata types.StatisticMetadata, records []types.Statistic) error {
	if metadata.StatisticID == "" {
		return fmt.Errorf("statisticID cannot be empty")
	}
	for _, r := range records {
		if r.Start.IsZero() {
			return fmt.Errorf("statistic record missing start")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[metadata.StatisticID] = metadata
	byStart, ok := m.statistics[metadata.StatisticID]
	if !ok {
		byStart = make(map[int64]types.Statistic)
		m.statistics[metadata.StatisticID] = byStart
	}
	for _, r := range records {
		byStart[r.Start.Unix()] = r
	}
	return nil
}

// UpsertPrice implements Database.
func (m *Memory) UpsertPrice(ctx context.Context, entityID string, price types.Price) error {
	if entityID == "" {
		return fmt.Errorf("entityID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byStart, ok := m.prices[entityID]
	if !ok {
		byStart = make(map[int64]types.Price)
		m.prices[entityID] = byStart
	}
	byStart[price.TSStart.Unix()] = price
	return nil
}

// PricesBetween implements Database.
func (m *Memory) PricesBetween(ctx context.Context, entityID string, start, end time.Time) ([]types.Price, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entityID cannot be empty")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	prices := []types.Price{}
	for _, p := range m.prices[entityID] {
		if inRange(p.TSStart, start, end) {
			prices = append(prices, p)
		}
	}
	sort.Slice(prices, func(i, j int) bool {
		return prices[i].TSStart.Before(prices[j].TSStart)
	})
	return prices, nil
}

// Close implements Database.
func (m *Memory) Close() error {
	return nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
