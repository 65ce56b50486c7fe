package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/room-compactor/room-compactor/pkg/model"
)

// MockCheckpointStore is a mock implementation of the checkpoint.Store interface.
type MockCheckpointStore struct {
	mock.Mock
}

// Read mocks the Read method.
func (m *MockCheckpointStore) Read(ctx context.Context, room model.RoomID) (model.Continuation, bool, error) {
	args := m.Called(ctx, room)
	return args.Get(0).(model.Continuation), args.Bool(1), args.Error(2)
}

// Write mocks the Write method.
func (m *MockCheckpointStore) Write(ctx context.Context, room model.RoomID, cont model.Continuation) error {
	args := m.Called(ctx, room, cont)
	return args.Error(0)
}

// EnsureSchema mocks the EnsureSchema method.
func (m *MockCheckpointStore) EnsureSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
