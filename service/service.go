package service

import (
	"context"
	"sync"
	"time"

	"github.com/zlnvch/whiteboard/assets"
	"github.com/zlnvch/whiteboard/cache"
	"github.com/zlnvch/whiteboard/ingest"
	"github.com/zlnvch/whiteboard/mq"
	"github.com/zlnvch/whiteboard/render"
	"github.com/zlnvch/whiteboard/store"
	"github.com/zlnvch/whiteboard/viewport"
	"github.com/zlnvch/whiteboard/worker"
)

const (
	DefaultAutosaveDebounce = 600 * time.Millisecond
	DefaultFrameInterval    = 16 * time.Millisecond
	DefaultBoardName        = "Untitled whiteboard"
)

type Options struct {
	ZoomLimits       viewport.Limits
	AutosaveDebounce time.Duration
	FrameInterval    time.Duration
	Grid             bool
	Now              func() time.Time
}

func DefaultOptions() Options {
	return Options{
		ZoomLimits:       viewport.DefaultLimits,
		AutosaveDebounce: DefaultAutosaveDebounce,
		FrameInterval:    DefaultFrameInterval,
		Grid:             true,
		Now:              time.Now,
	}
}

type Service struct {
	Store       store.WhiteboardStore
	Cache       cache.WhiteboardCache
	MQ          mq.MessageQueue
	DraftWriter *worker.DraftWriter
	Assets      assets.Store
	Fetcher     assets.Fetcher
	Blobs       *assets.Blobs
	Importer    *ingest.Importer
	Normalizer  *assets.Normalizer
	JWTSecret   []byte
	Options     Options

	sessions sync.WaitGroup
}

func NewService(
	store store.WhiteboardStore,
	cache cache.WhiteboardCache,
	mq mq.MessageQueue,
	draftWriter *worker.DraftWriter,
	assetStore assets.Store,
	fetcher assets.Fetcher,
	blobs *assets.Blobs,
	importer *ingest.Importer,
	jwtSecret []byte,
	options Options,
) *Service {
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.FrameInterval <= 0 {
		options.FrameInterval = DefaultFrameInterval
	}
	if options.AutosaveDebounce <= 0 {
		options.AutosaveDebounce = DefaultAutosaveDebounce
	}
	if options.ZoomLimits == (viewport.Limits{}) {
		options.ZoomLimits = viewport.DefaultLimits
	}

	return &Service{
		Store:       store,
		Cache:       cache,
		MQ:          mq,
		DraftWriter: draftWriter,
		Assets:      assetStore,
		Fetcher:     fetcher,
		Blobs:       blobs,
		Importer:    importer,
		Normalizer:  assets.NewNormalizer(fetcher, assetStore),
		JWTSecret:   jwtSecret,
		Options:     options,
	}
}

// newImageCache builds a session's decode cache on top of the asset fetcher.
func (s *Service) newImageCache(ctx context.Context) *render.ImageCache {
	return render.NewImageCache(ctx, func(ctx context.Context, url string) ([]byte, error) {
		data, _, err := s.Fetcher.Fetch(ctx, url)
		return data, err
	})
}

// WaitSessions blocks until every runner started by StartSession has
// returned from Run, or ctx is done.
func (s *Service) WaitSessions(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
