package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/whiteboard/models"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Publish(ctx context.Context, channel string, message []byte) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

func (m *MockCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

func (m *MockCache) SaveDraft(ctx context.Context, ownerId string, draft models.Draft) error {
	args := m.Called(ctx, ownerId, draft)
	return args.Error(0)
}

func (m *MockCache) LoadDraft(ctx context.Context, ownerId string, boardId string) (models.Draft, error) {
	args := m.Called(ctx, ownerId, boardId)
	return args.Get(0).(models.Draft), args.Error(1)
}

func (m *MockCache) DeleteDraft(ctx context.Context, ownerId string, boardId string) error {
	args := m.Called(ctx, ownerId, boardId)
	return args.Error(0)
}

func (m *MockCache) ListDrafts(ctx context.Context, ownerId string) ([]string, error) {
	args := m.Called(ctx, ownerId)
	return args.Get(0).([]string), args.Error(1)
}
