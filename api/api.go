package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zlnvch/whiteboard/api/rest"
	"github.com/zlnvch/whiteboard/api/ws"
	"github.com/zlnvch/whiteboard/assets"
	"github.com/zlnvch/whiteboard/cache"
	"github.com/zlnvch/whiteboard/config"
	"github.com/zlnvch/whiteboard/ingest"
	"github.com/zlnvch/whiteboard/mq"
	"github.com/zlnvch/whiteboard/service"
	"github.com/zlnvch/whiteboard/store"
	"github.com/zlnvch/whiteboard/viewport"
	"github.com/zlnvch/whiteboard/worker"
)

const assetFetchTimeout = 30 * time.Second

type WhiteboardAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	wsUpgrader  websocket.Upgrader
	shutdownCtx context.Context
	service     *service.Service
	draftWriter *worker.DraftWriter
	stopDrafts  context.CancelFunc
}

func NewWhiteboardAPI(
	whiteboardStore store.WhiteboardStore,
	publishQueue mq.MessageQueue,
	whiteboardCache cache.WhiteboardCache,
	assetStore assets.Store,
	cfg *config.Config,
	shutdownCtx context.Context,
) *WhiteboardAPI {
	wsHub := ws.NewHub(whiteboardCache)
	go wsHub.Run(shutdownCtx)

	// The draft writer outlives shutdownCtx: sessions flush their last
	// drafts while closing, and Shutdown stops it once they are gone.
	draftWriter := worker.NewDraftWriter(whiteboardCache, cfg.DraftTickMs)
	draftCtx, stopDrafts := context.WithCancel(context.Background())
	go draftWriter.Run(draftCtx)

	blobs := assets.NewBlobs()
	fetcher := assets.NewFetcher(blobs, &http.Client{Timeout: assetFetchTimeout})

	limits := ingest.Limits{
		MaxImageBytes: cfg.MaxImageBytes,
		MaxPDFBytes:   cfg.MaxPDFBytes,
		MaxPDFPages:   cfg.MaxPDFPages,
		MaxWidth:      ingest.DefaultMaxWidth,
	}
	// pdftoppm is looked up on the first PDF so servers without it still
	// start and serve images.
	rasterizer := ingest.NewLazyRasterizer(func() (ingest.Rasterizer, error) {
		return ingest.NewPdftoppm(cfg.PdftoppmPath)
	})
	importer := ingest.NewImporter(blobs, rasterizer, limits)

	svc := service.NewService(
		whiteboardStore,
		whiteboardCache,
		publishQueue,
		draftWriter,
		assetStore,
		fetcher,
		blobs,
		importer,
		cfg.JWTSecret,
		service.Options{
			ZoomLimits:       viewport.Limits{Min: cfg.ZoomMin, Max: cfg.ZoomMax},
			AutosaveDebounce: cfg.AutosaveDebounce,
			Grid:             cfg.Grid,
		},
	)

	restHandler := rest.NewHandler(svc, limits)
	wsHandler := ws.NewHandler(svc, wsHub)

	return &WhiteboardAPI{
		restHandler: restHandler,
		wsHandler:   wsHandler,
		shutdownCtx: shutdownCtx,
		service:     svc,
		draftWriter: draftWriter,
		stopDrafts:  stopDrafts,
	}
}

// Shutdown waits for open sessions to flush their drafts, then stops the
// draft writer. It is called after the HTTP server has stopped accepting
// connections.
func (whiteboardAPI *WhiteboardAPI) Shutdown(ctx context.Context) {
	if err := whiteboardAPI.service.WaitSessions(ctx); err != nil {
		log.Printf("Sessions still open at shutdown: %v", err)
	}
	whiteboardAPI.stopDrafts()
	select {
	case <-whiteboardAPI.draftWriter.Done():
	case <-ctx.Done():
		log.Printf("Draft writer did not stop in time: %v", ctx.Err())
	}
}

func (whiteboardAPI *WhiteboardAPI) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/boards", whiteboardAPI.restHandler.HandleBoards)
	mux.HandleFunc("/boards/{id}", whiteboardAPI.restHandler.HandleBoard)
	mux.HandleFunc("/ingest/image", whiteboardAPI.restHandler.HandleIngestImage)
	mux.HandleFunc("/ingest/pdf", whiteboardAPI.restHandler.HandleIngestPDF)

	whiteboardAPI.wsUpgrader = whiteboardAPI.wsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		whiteboardAPI.wsHandler.ServeWS(whiteboardAPI.wsUpgrader, w, r, whiteboardAPI.shutdownCtx)
	})
}
