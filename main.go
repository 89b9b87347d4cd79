package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zlnvch/whiteboard/api"
	"github.com/zlnvch/whiteboard/assets"
	"github.com/zlnvch/whiteboard/cache/redis"
	"github.com/zlnvch/whiteboard/config"
	"github.com/zlnvch/whiteboard/models"
	"github.com/zlnvch/whiteboard/mq/sqsmq"
	"github.com/zlnvch/whiteboard/store/dynamo"
)

const assetUploadTimeout = 60 * time.Second

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	whiteboardStore, err := dynamo.NewDynamoWhiteboardStore(ctx, cfg.DevMode, cfg.DynamoDBEndpoint, cfg.DynamoDBTable)
	if err != nil {
		log.Fatalf("Failed to create dynamodb store: %v", err)
	}

	publishQueue, err := sqsmq.NewSQSMessageQueue(ctx, cfg.DevMode, cfg.SQSEndpoint, cfg.SQSPublishQueue, models.SnapshotKind)
	if err != nil {
		log.Fatalf("Failed to create SQS MQ: %v", err)
	}

	whiteboardCache, err := redis.NewRedisWhiteboardCache(ctx, cfg.DevMode, cfg.RedisEndpoint)
	if err != nil {
		log.Fatalf("Failed to create redis cache: %v", err)
	}

	var assetStore assets.Store = assets.UnavailableStore{}
	if cfg.AssetStoreURL != "" {
		assetStore = assets.NewHTTPStore(
			cfg.AssetStoreURL,
			&http.Client{Timeout: assetUploadTimeout},
			assets.DefaultBreakerConfig("asset-store"),
		)
	} else {
		log.Printf("ASSET_STORE_URL not set, saving boards with images will fail")
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	whiteboardApi := api.NewWhiteboardAPI(whiteboardStore, publishQueue, whiteboardCache, assetStore, cfg, shutdownCtx)

	mux := http.NewServeMux()
	whiteboardApi.RegisterRoutes(mux, cfg.AllowedOrigin)

	server := &http.Server{Addr: ":" + cfg.HostPort, Handler: mux}
	stopped := make(chan struct{})
	go func() {
		<-shutdownCtx.Done()
		log.Printf("Server shutting down...")
		// Leave time for sessions to flush their drafts.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		whiteboardApi.Shutdown(ctx)
		close(stopped)
	}()

	log.Printf("Starting server on host port: %s\n", cfg.HostPort)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	<-stopped
}
