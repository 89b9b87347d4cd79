package service_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/whiteboard/assets"
	assetmocks "github.com/zlnvch/whiteboard/assets/mocks"
	cachemocks "github.com/zlnvch/whiteboard/cache/mocks"
	"github.com/zlnvch/whiteboard/ingest"
	mqmocks "github.com/zlnvch/whiteboard/mq/mocks"
	"github.com/zlnvch/whiteboard/render"
	"github.com/zlnvch/whiteboard/service"
	storemocks "github.com/zlnvch/whiteboard/store/mocks"
	"github.com/zlnvch/whiteboard/worker"
)

const ownerId = "owner-1"

type fixture struct {
	svc        *service.Service
	store      *storemocks.MockStore
	cache      *cachemocks.MockCache
	mq         *mqmocks.MockMQ
	assets     *assetmocks.MockAssetStore
	blobs      *assets.Blobs
	stopWriter context.CancelFunc
}

func setupService(t *testing.T, opts service.Options) fixture {
	t.Helper()
	mockStore := new(storemocks.MockStore)
	mockCache := new(cachemocks.MockCache)
	mockMQ := new(mqmocks.MockMQ)
	mockAssets := new(assetmocks.MockAssetStore)
	blobs := assets.NewBlobs()

	// A real writer is used; tests observe it through the cache mock.
	draftWriter := worker.NewDraftWriter(mockCache, 10)
	ctx, cancel := context.WithCancel(context.Background())
	go draftWriter.Run(ctx)
	t.Cleanup(cancel)

	svc := service.NewService(
		mockStore,
		mockCache,
		mockMQ,
		draftWriter,
		mockAssets,
		assets.NewFetcher(blobs, http.DefaultClient),
		blobs,
		ingest.NewImporter(blobs, nil, ingest.DefaultLimits()),
		[]byte("secret"),
		opts,
	)

	return fixture{
		svc:        svc,
		store:      mockStore,
		cache:      mockCache,
		mq:         mockMQ,
		assets:     mockAssets,
		blobs:      blobs,
		stopWriter: cancel,
	}
}

// fixedClock returns a clock the test can advance.
func fixedClock(start int64) (func() time.Time, func(time.Duration)) {
	now := time.UnixMilli(start)
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func testOptions(now func() time.Time) service.Options {
	opts := service.DefaultOptions()
	opts.Now = now
	opts.Grid = false
	return opts
}

func newRenderer(t *testing.T, svc *service.Service) *render.Renderer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return render.NewRenderer(render.NewImageCache(ctx, func(ctx context.Context, url string) ([]byte, error) {
		data, _, err := svc.Fetcher.Fetch(ctx, url)
		return data, err
	}))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// Helper that creates a channel and wraps a mock call to signal when it's called
func wrapMockWithSignal(call *mock.Call) chan struct{} {
	done := make(chan struct{}, 16)
	call.Run(func(args mock.Arguments) {
		select {
		case done <- struct{}{}:
		default:
		}
	})
	return done
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
