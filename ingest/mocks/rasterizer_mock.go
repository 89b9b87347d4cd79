package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/whiteboard/ingest"
)

type MockRasterizer struct {
	mock.Mock
}

func (m *MockRasterizer) Rasterize(ctx context.Context, pdf []byte, maxPages int) ([]ingest.Page, error) {
	args := m.Called(ctx, pdf, maxPages)
	var pages []ingest.Page
	if v := args.Get(0); v != nil {
		pages = v.([]ingest.Page)
	}
	return pages, args.Error(1)
}
