package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zlnvch/whiteboard/apperr"
	"github.com/zlnvch/whiteboard/assets"
	"github.com/zlnvch/whiteboard/cache"
	"github.com/zlnvch/whiteboard/models"
	"github.com/zlnvch/whiteboard/store"
)

type OpenParams struct {
	OwnerId string
	BoardId string
	Name    string
	RoomId  string
}

// SavedState is what a session remembers about its last durable write.
// Unknown is set when the snapshot could not be read at open; the first save
// then reads it again.
type SavedState struct {
	CreatedAt    int64
	ContentHash  string
	ThumbnailURL string
	Unknown      bool
}

type LoadedBoard struct {
	Board     models.Board
	Saved     SavedState
	FromDraft bool
}

// OpenBoard resolves the board a session starts from. Without a board id a
// fresh empty board is created. Otherwise the owner's draft and the saved
// snapshot are both looked up and the newer one wins; a tie goes to the
// draft. When neither exists the board starts empty under the given id.
func (s *Service) OpenBoard(ctx context.Context, p OpenParams) (LoadedBoard, error) {
	if p.OwnerId == "" {
		return LoadedBoard{}, apperr.NewValidation("owner is required")
	}
	if p.BoardId == "" {
		return LoadedBoard{Board: s.emptyBoard(models.NewId(), p)}, nil
	}

	draft, hasDraft := s.loadDraft(ctx, p.OwnerId, p.BoardId)

	snap, hasSnap, err := s.loadSnapshot(ctx, p)
	if err != nil {
		if !hasDraft {
			return LoadedBoard{}, apperr.NewNetwork("board could not be loaded", err)
		}
		log.Printf("Failed to load snapshot %s, using draft: %v", p.BoardId, err)
	}

	var loaded LoadedBoard
	switch {
	case hasDraft && (!hasSnap || draft.UpdatedAt >= snap.UpdatedAt):
		loaded = LoadedBoard{
			Board: models.Board{
				Id:       p.BoardId,
				Name:     draft.Name,
				OwnerId:  p.OwnerId,
				RoomId:   p.RoomId,
				Elements: draft.Elements,
				Viewport: models.Viewport{PanX: draft.PanX, PanY: draft.PanY, Zoom: draft.Zoom},
			},
			FromDraft: true,
		}
	case hasSnap:
		loaded = LoadedBoard{
			Board: models.Board{
				Id:       p.BoardId,
				Name:     snap.Name,
				OwnerId:  p.OwnerId,
				RoomId:   p.RoomId,
				Elements: snap.Elements,
				Viewport: snap.Viewport,
			},
		}
	default:
		return LoadedBoard{Board: s.emptyBoard(p.BoardId, p)}, nil
	}

	if hasSnap {
		loaded.Saved = savedStateOf(snap)
	}
	if err != nil {
		loaded.Saved.Unknown = true
	}
	if loaded.Board.Name == "" {
		loaded.Board.Name = DefaultBoardName
	}
	if p.Name != "" {
		loaded.Board.Name = p.Name
	}
	loaded.Board.Elements = s.dropDeadBlobs(loaded.Board.Elements.Persistable())
	return loaded, nil
}

func (s *Service) emptyBoard(id string, p OpenParams) models.Board {
	name := p.Name
	if name == "" {
		name = DefaultBoardName
	}
	return models.Board{
		Id:       id,
		Name:     name,
		OwnerId:  p.OwnerId,
		RoomId:   p.RoomId,
		Elements: models.Elements{},
		Viewport: models.DefaultViewport(),
	}
}

// loadDraft treats a cache failure like a missing draft so an unavailable
// cache never blocks opening a saved board.
func (s *Service) loadDraft(ctx context.Context, ownerId string, boardId string) (models.Draft, bool) {
	draft, err := s.Cache.LoadDraft(ctx, ownerId, boardId)
	if err != nil {
		if !errors.Is(err, cache.ErrDraftNotFound) {
			log.Printf("Failed to load draft %s for %s: %v", boardId, ownerId, err)
		}
		return models.Draft{}, false
	}
	return draft, true
}

func (s *Service) loadSnapshot(ctx context.Context, p OpenParams) (models.Snapshot, bool, error) {
	if s.Store == nil {
		return models.Snapshot{}, false, nil
	}
	snap, err := s.Store.GetSnapshot(ctx, p.OwnerId, p.BoardId)
	if err == nil {
		return snap, true, nil
	}
	if !errors.Is(err, store.ErrItemNotFound) {
		return models.Snapshot{}, false, fmt.Errorf("get snapshot: %w", err)
	}
	if p.RoomId == "" {
		return models.Snapshot{}, false, nil
	}

	snap, err = s.Store.GetRoomSnapshot(ctx, p.RoomId, p.BoardId)
	if errors.Is(err, store.ErrItemNotFound) {
		return models.Snapshot{}, false, nil
	}
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("get room snapshot: %w", err)
	}
	return snap, true, nil
}

// dropDeadBlobs removes images whose transient reference did not survive a
// restart. They were never uploaded, so nothing durable is lost.
func (s *Service) dropDeadBlobs(elements models.Elements) models.Elements {
	if s.Blobs == nil {
		return elements
	}
	kept := make(models.Elements, 0, len(elements))
	for _, el := range elements {
		if img, ok := el.(*models.Image); ok && assets.IsBlobURL(img.URL) {
			if _, _, live := s.Blobs.Get(img.URL); !live {
				log.Printf("Dropping image %s: transient reference is gone", img.Id)
				continue
			}
		}
		kept = append(kept, el)
	}
	return kept
}

// GetBoard returns the owner's saved snapshot.
func (s *Service) GetBoard(ctx context.Context, ownerId string, boardId string) (models.Snapshot, error) {
	if s.Store == nil {
		return models.Snapshot{}, apperr.NewStorageUnavailable("board storage is not configured")
	}
	return s.Store.GetSnapshot(ctx, ownerId, boardId)
}

// BoardList is an owner's saved boards plus the ids of boards with an
// unsaved draft, most recently edited first.
type BoardList struct {
	Boards []models.SnapshotSummary
	Drafts []string
}

// ListBoards lists saved snapshots and recoverable drafts. Drafts are
// best-effort: a cache failure only leaves them out.
func (s *Service) ListBoards(ctx context.Context, ownerId string) (BoardList, error) {
	if s.Store == nil {
		return BoardList{}, apperr.NewStorageUnavailable("board storage is not configured")
	}
	boards, err := s.Store.ListSnapshots(ctx, ownerId)
	if err != nil {
		return BoardList{}, err
	}
	list := BoardList{Boards: boards, Drafts: []string{}}
	if list.Boards == nil {
		list.Boards = []models.SnapshotSummary{}
	}
	if s.Cache == nil {
		return list, nil
	}
	drafts, err := s.Cache.ListDrafts(ctx, ownerId)
	if err != nil {
		log.Printf("Failed to list drafts for %s: %v", ownerId, err)
		return list, nil
	}
	list.Drafts = append(list.Drafts, drafts...)
	return list, nil
}

func savedStateOf(snap models.Snapshot) SavedState {
	return SavedState{
		CreatedAt:    snap.CreatedAt,
		ContentHash:  snap.ContentHash,
		ThumbnailURL: snap.ThumbnailURL,
	}
}

// reloadSaved reads the saved state that could not be read at open. A board
// that was never saved has none; any other failure leaves it unknown and the
// save goes ahead as a first save.
func (s *Service) reloadSaved(ctx context.Context, b models.Board) SavedState {
	snap, err := s.Store.GetSnapshot(ctx, b.OwnerId, b.Id)
	if err != nil {
		if !errors.Is(err, store.ErrItemNotFound) {
			log.Printf("Failed to reload saved state of board %s, saving as new: %v", b.Id, err)
		}
		return SavedState{}
	}
	return savedStateOf(snap)
}
