package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zlnvch/whiteboard/apperr"
	"github.com/zlnvch/whiteboard/assets"
	"github.com/zlnvch/whiteboard/cache"
	"github.com/zlnvch/whiteboard/models"
	"github.com/zlnvch/whiteboard/render"
	"github.com/zlnvch/whiteboard/store"
)

const sideEffectTimeout = 5 * time.Second

// ExitJob is a copy of the board taken by the session loop when the user
// picks an exit mode. Elements must already exclude ephemeral strokes.
type ExitJob struct {
	Mode     models.ExitMode
	Board    models.Board
	Saved    SavedState
	Renderer *render.Renderer
}

// ExitOutcome carries the result back to the session loop. Rewrites and
// Saved are set whenever a snapshot was written, even if a later step
// failed, so a retry does not upload the same images again.
type ExitOutcome struct {
	Result   models.ExitResult
	Saved    SavedState
	Rewrites map[string]string
	Written  bool
	Err      error
}

type BoardSavedMessage struct {
	Type string                 `json:"type"`
	Data models.SnapshotSummary `json:"data"`
}

// Exit runs the pipeline for job.Mode. Steps run strictly in order and stop
// at the first failure.
func (s *Service) Exit(ctx context.Context, job ExitJob) ExitOutcome {
	switch job.Mode {
	case models.ExitDiscard:
		if err := s.Discard(ctx, job.Board.OwnerId, job.Board.Id); err != nil {
			return ExitOutcome{Err: err}
		}
		return ExitOutcome{Result: models.ExitResult{Mode: models.ExitDiscard}}
	case models.ExitSave:
		return s.Save(ctx, job)
	case models.ExitPost:
		return s.Post(ctx, job)
	default:
		return ExitOutcome{Err: apperr.NewValidation(fmt.Sprintf("unknown exit mode %q", job.Mode))}
	}
}

func (s *Service) Discard(ctx context.Context, ownerId string, boardId string) error {
	if err := s.DraftWriter.Delete(ctx, ownerId, boardId); err != nil {
		return apperr.NewNetwork("draft could not be discarded", err)
	}
	return nil
}

// Save normalizes assets, captures a thumbnail and writes the snapshot to
// the owner's store, plus the room mirror when the board belongs to a room.
// Nothing is written unless every earlier step succeeded.
func (s *Service) Save(ctx context.Context, job ExitJob) ExitOutcome {
	if s.Store == nil {
		return ExitOutcome{Err: apperr.NewStorageUnavailable("board storage is not configured")}
	}
	b := job.Board
	if job.Saved.Unknown {
		job.Saved = s.reloadSaved(ctx, b)
	}

	elements, rewrites, err := s.Normalizer.Normalize(ctx, b.Elements.Persistable())
	if err != nil {
		return ExitOutcome{Err: asAppError(err, "images could not be uploaded")}
	}

	hash, err := contentHash(b, elements)
	if err != nil {
		return ExitOutcome{Err: fmt.Errorf("hash board %s: %w", b.Id, err)}
	}

	// savedHash is what the next save compares against. A thumbnail drawn
	// without all of its images is not worth reusing, so it records none.
	thumbnailURL := job.Saved.ThumbnailURL
	savedHash := hash
	if hash != job.Saved.ContentHash || thumbnailURL == "" {
		var complete bool
		thumbnailURL, complete, err = s.uploadThumbnail(ctx, job.Renderer, b.Elements.Persistable())
		if err != nil {
			return ExitOutcome{Err: asAppError(err, "thumbnail could not be uploaded")}
		}
		if !complete {
			log.Printf("Thumbnail for board %s is missing images", b.Id)
			savedHash = ""
		}
	}

	// A session closed mid-pipeline must not leave a snapshot behind.
	if err := ctx.Err(); err != nil {
		return ExitOutcome{Err: apperr.NewNetwork("save was cancelled", err)}
	}

	now := s.Options.Now().UnixMilli()
	createdAt := job.Saved.CreatedAt
	if createdAt == 0 {
		createdAt = now
	}
	snap := models.Snapshot{
		Id:           b.Id,
		Kind:         models.SnapshotKind,
		Name:         b.Name,
		OwnerId:      b.OwnerId,
		RoomId:       b.RoomId,
		Elements:     elements,
		Viewport:     b.Viewport,
		ThumbnailURL: thumbnailURL,
		LastExitMode: job.Mode,
		ContentHash:  savedHash,
		CreatedAt:    createdAt,
		UpdatedAt:    now,
	}
	if err := s.Store.PutSnapshot(ctx, snap); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return ExitOutcome{Err: apperr.NewValidation("this board belongs to someone else")}
		}
		return ExitOutcome{Err: apperr.NewNetwork("board could not be saved", err)}
	}
	log.Printf("Saved board %s for %s (%d elements)", b.Id, b.OwnerId, len(elements))

	s.announce(b.OwnerId, snap)

	if err := s.DraftWriter.Delete(ctx, b.OwnerId, b.Id); err != nil {
		// The snapshot is newer than the draft, so the draft loses on open.
		log.Printf("Failed to delete draft %s after save: %v", b.Id, err)
	}

	return ExitOutcome{
		Result: models.ExitResult{
			Mode:         job.Mode,
			ItemId:       snap.Id,
			ThumbnailURL: thumbnailURL,
			Name:         snap.Name,
		},
		Saved: SavedState{
			CreatedAt:    createdAt,
			ContentHash:  savedHash,
			ThumbnailURL: thumbnailURL,
		},
		Rewrites: rewrites,
		Written:  true,
	}
}

// Post saves the board and then hands it to the publish queue. It only
// succeeds once both steps have.
func (s *Service) Post(ctx context.Context, job ExitJob) ExitOutcome {
	job.Mode = models.ExitPost
	out := s.Save(ctx, job)
	if out.Err != nil {
		return out
	}
	if s.MQ == nil {
		out.Err = apperr.NewStorageUnavailable("publishing is not configured")
		return out
	}

	msg := models.PublishMessage{
		BoardId:      out.Result.ItemId,
		OwnerId:      job.Board.OwnerId,
		Name:         out.Result.Name,
		ThumbnailURL: out.Result.ThumbnailURL,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		out.Err = fmt.Errorf("marshal publish message: %w", err)
		return out
	}
	if err := s.MQ.Send(ctx, string(msgBytes)); err != nil {
		out.Err = apperr.NewNetwork("board was saved but could not be posted", err)
		return out
	}
	log.Printf("Posted board %s for %s", msg.BoardId, msg.OwnerId)
	return out
}

func (s *Service) uploadThumbnail(ctx context.Context, renderer *render.Renderer, elements models.Elements) (string, bool, error) {
	thumb, complete := renderer.Thumbnail(ctx, elements)
	pngBytes, err := render.EncodePNG(thumb, false)
	if err != nil {
		return "", false, err
	}
	url, err := s.Assets.Upload(ctx, pngBytes, "image/png", assets.FolderThumbnails)
	return url, complete, err
}

// announce tells the owner's other connections about the saved board. It
// is best-effort and never fails the save.
func (s *Service) announce(ownerId string, snap models.Snapshot) {
	if s.Cache == nil {
		return
	}
	msg := BoardSavedMessage{
		Type: "board_saved",
		Data: models.SnapshotSummary{
			Id:           snap.Id,
			Name:         snap.Name,
			RoomId:       snap.RoomId,
			ThumbnailURL: snap.ThumbnailURL,
			LastExitMode: snap.LastExitMode,
			UpdatedAt:    snap.UpdatedAt,
		},
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal board saved message: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := s.Cache.Publish(ctx, cache.BoardsChannel(ownerId), msgBytes); err != nil {
		log.Printf("Failed to publish board saved for %s: %v", snap.Id, err)
	}
}

// contentHash identifies what a snapshot persists, ignoring timestamps and
// the thumbnail derived from it.
func contentHash(b models.Board, elements models.Elements) (string, error) {
	content := struct {
		Name     string          `json:"name"`
		RoomId   string          `json:"roomId"`
		Elements models.Elements `json:"elements"`
		Viewport models.Viewport `json:"viewport"`
	}{b.Name, b.RoomId, elements, b.Viewport}

	data, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// asAppError keeps an existing error kind and otherwise reports a network
// failure.
func asAppError(err error, message string) error {
	if _, ok := apperr.KindOf(err); ok {
		return err
	}
	return apperr.NewNetwork(message, err)
}
