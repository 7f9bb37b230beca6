package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/raterudder/esoimport/pkg/storage"
	"github.com/raterudder/esoimport/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) SumBefore(ctx context.Context, statisticID string, before time.Time, period types.StatisticsPeriod) (float64, error) {
	args := m.Called(ctx, statisticID, before, period)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockDatabase) GetStatistics(ctx context.Context, statisticID string, start, end time.Time) ([]types.Statistic, error) {
	args := m.Called(ctx, statisticID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Statistic), args.Error(1)
}

func (m *MockDatabase) GetStatisticMetadata(ctx context.Context, statisticID string) (types.StatisticMetadata, error) {
	args := m.Called(ctx, statisticID)
	return args.Get(0).(types.StatisticMetadata), args.Error(1)
}

func (m *MockDatabase) PricesBetween(ctx context.Context, entityID string, start, end time.Time) ([]types.Price, error) {
	args := m.Called(ctx, entityID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Price), args.Error(1)
}

func (m *MockDatabase) UpsertPrice(ctx context.Context, entityID string, price types.Price) error {
	args := m.Called(ctx, entityID, price)
	return args.Error(0)
}

func (m *MockDatabase) UpsertStatistics(ctx context.Context, metadata types.StatisticMetadata, records []types.Statistic) error {
	args := m.Called(ctx, metadata, records)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
