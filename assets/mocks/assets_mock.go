package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockAssetStore struct {
	mock.Mock
}

func (m *MockAssetStore) Upload(ctx context.Context, blob []byte, contentType string, folder string) (string, error) {
	args := m.Called(ctx, blob, contentType, folder)
	return args.String(0), args.Error(1)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	args := m.Called(ctx, url)
	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}
	return data, args.String(1), args.Error(2)
}
