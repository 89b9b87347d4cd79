package cache

import (
	"context"
	"errors"

	"github.com/zlnvch/whiteboard/models"
)

var ErrDraftNotFound = errors.New("draft not found")

// BoardsChannel is where save and post notifications for an owner go.
func BoardsChannel(ownerId string) string {
	return "boards:" + ownerId
}

type WhiteboardCache interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	// Drafts are scoped to their owner and keyed by board id.
	SaveDraft(ctx context.Context, ownerId string, draft models.Draft) error
	LoadDraft(ctx context.Context, ownerId string, boardId string) (models.Draft, error)
	DeleteDraft(ctx context.Context, ownerId string, boardId string) error
	ListDrafts(ctx context.Context, ownerId string) ([]string, error)
}
