package store

import (
	"context"
	"errors"

	"github.com/zlnvch/whiteboard/models"
)

type WhiteboardStore interface {
	// PutSnapshot writes the owner-scoped document and, when RoomId is set,
	// an identical room-scoped mirror. Either both are written or neither.
	PutSnapshot(ctx context.Context, snap models.Snapshot) error
	GetSnapshot(ctx context.Context, ownerId string, boardId string) (models.Snapshot, error)
	GetRoomSnapshot(ctx context.Context, roomId string, boardId string) (models.Snapshot, error)
	ListSnapshots(ctx context.Context, ownerId string) ([]models.SnapshotSummary, error)
}

// Custom error types for clarity
var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrConditionFailed = errors.New("condition not met")
)
