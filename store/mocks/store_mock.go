package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/whiteboard/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) PutSnapshot(ctx context.Context, snap models.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockStore) GetSnapshot(ctx context.Context, ownerId string, boardId string) (models.Snapshot, error) {
	args := m.Called(ctx, ownerId, boardId)
	return args.Get(0).(models.Snapshot), args.Error(1)
}

func (m *MockStore) GetRoomSnapshot(ctx context.Context, roomId string, boardId string) (models.Snapshot, error) {
	args := m.Called(ctx, roomId, boardId)
	return args.Get(0).(models.Snapshot), args.Error(1)
}

func (m *MockStore) ListSnapshots(ctx context.Context, ownerId string) ([]models.SnapshotSummary, error) {
	args := m.Called(ctx, ownerId)
	return args.Get(0).([]models.SnapshotSummary), args.Error(1)
}
