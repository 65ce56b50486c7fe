package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/room-compactor/room-compactor/internal/store"
	"github.com/room-compactor/room-compactor/pkg/model"
)

// MockStore is a mock implementation of the store.Store interface.
type MockStore struct {
	mock.Mock
}

// LoadWindow mocks the LoadWindow method.
func (m *MockStore) LoadWindow(ctx context.Context, room model.RoomID, minExclusive *model.StateGroupID, count int) (model.StateGroupMap, model.StateGroupID, bool, error) {
	args := m.Called(ctx, room, minExclusive, count)
	var entries model.StateGroupMap
	if args.Get(0) != nil {
		entries = args.Get(0).(model.StateGroupMap)
	}
	return entries, args.Get(1).(model.StateGroupID), args.Bool(2), args.Error(3)
}

// LoadByIDs mocks the LoadByIDs method.
func (m *MockStore) LoadByIDs(ctx context.Context, room model.RoomID, ids []model.StateGroupID) (model.StateGroupMap, error) {
	args := m.Called(ctx, room, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.StateGroupMap), args.Error(1)
}

// ApplyDiff mocks the ApplyDiff method.
func (m *MockStore) ApplyDiff(ctx context.Context, room model.RoomID, diff store.Diff) error {
	args := m.Called(ctx, room, diff)
	return args.Error(0)
}

// Rank mocks the Rank method.
func (m *MockStore) Rank(ctx context.Context, limit int) ([]model.RoomRanking, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RoomRanking), args.Error(1)
}
