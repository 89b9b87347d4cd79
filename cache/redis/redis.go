package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zlnvch/whiteboard/cache"
	"github.com/zlnvch/whiteboard/models"
)

type RedisWhiteboardCache struct {
	client redis.UniversalClient
}

func NewRedisWhiteboardCache(ctx context.Context, devMode bool, redisEndpoint string) (*RedisWhiteboardCache, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return &RedisWhiteboardCache{client: client}, nil
}

func (redisCache *RedisWhiteboardCache) Publish(ctx context.Context, channel string, message []byte) error {
	if err := redisCache.client.Publish(ctx, channel, message).Err(); err != nil {
		return err
	}
	return nil
}

func (redisCache *RedisWhiteboardCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisCache.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

// Keys share the owner hash tag so an owner's drafts and index live in one
// cluster slot.
func buildDraftKey(ownerId string, boardId string) string {
	return "draft:{" + ownerId + "}:" + boardId
}

func buildDraftIndexKey(ownerId string) string {
	return "drafts:{" + ownerId + "}"
}

const draftTTL = 7 * 24 * time.Hour

// SaveDraft overwrites the draft and records it in the owner's index, scored
// by updatedAt so ListDrafts returns the most recent first.
func (redisCache *RedisWhiteboardCache) SaveDraft(ctx context.Context, ownerId string, draft models.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft %s: %w", draft.Id, err)
	}

	key := buildDraftKey(ownerId, draft.Id)
	indexKey := buildDraftIndexKey(ownerId)

	pipe := redisCache.client.TxPipeline()
	pipe.Set(ctx, key, data, draftTTL)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(draft.UpdatedAt), Member: draft.Id})
	pipe.Expire(ctx, indexKey, draftTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (redisCache *RedisWhiteboardCache) LoadDraft(ctx context.Context, ownerId string, boardId string) (models.Draft, error) {
	data, err := redisCache.client.Get(ctx, buildDraftKey(ownerId, boardId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Draft{}, cache.ErrDraftNotFound
		}
		return models.Draft{}, err
	}

	var draft models.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return models.Draft{}, fmt.Errorf("unmarshal draft %s: %w", boardId, err)
	}
	return draft, nil
}

func (redisCache *RedisWhiteboardCache) DeleteDraft(ctx context.Context, ownerId string, boardId string) error {
	pipe := redisCache.client.TxPipeline()
	pipe.Del(ctx, buildDraftKey(ownerId, boardId))
	pipe.ZRem(ctx, buildDraftIndexKey(ownerId), boardId)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisWhiteboardCache) ListDrafts(ctx context.Context, ownerId string) ([]string, error) {
	ids, err := redisCache.client.ZRevRange(ctx, buildDraftIndexKey(ownerId), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if ids == nil {
		return []string{}, nil
	}
	return ids, nil
}
