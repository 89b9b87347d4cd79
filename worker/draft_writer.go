package worker

import (
	"context"
	"log"
	"time"

	"github.com/zlnvch/whiteboard/cache"
	"github.com/zlnvch/whiteboard/models"
)

type DraftWrite struct {
	OwnerId string
	Draft   models.Draft
}

type DraftDelete struct {
	OwnerId string
	BoardId string
	Done    chan error
}

// DraftFlush asks for the pending write of one board to happen now.
type DraftFlush struct {
	BoardId string
	Done    chan error
}

// DraftWriter coalesces draft writes from every open session. Only the
// latest draft per board is kept between ticks. A delete drops any pending
// write for the board before removing the stored draft, so a save or discard
// can't be undone by a late autosave.
//
// Once Run has returned, Submit, Flush and Delete write through to the cache
// directly, so sessions torn down after the writer still keep their drafts.
type DraftWriter struct {
	WriteCh            chan DraftWrite
	DeleteCh           chan DraftDelete
	FlushCh            chan DraftFlush
	whiteboardCache    cache.WhiteboardCache
	tickerMilliseconds int
	stopped            chan struct{}
}

func NewDraftWriter(whiteboardCache cache.WhiteboardCache, tickerMilliseconds int) *DraftWriter {
	return &DraftWriter{
		WriteCh:            make(chan DraftWrite, 1024), // buffer to absorb bursts
		DeleteCh:           make(chan DraftDelete, 64),
		FlushCh:            make(chan DraftFlush, 64),
		whiteboardCache:    whiteboardCache,
		tickerMilliseconds: tickerMilliseconds,
		stopped:            make(chan struct{}),
	}
}

// Done is closed once Run has returned.
func (w *DraftWriter) Done() <-chan struct{} {
	return w.stopped
}

func (w *DraftWriter) isStopped() bool {
	select {
	case <-w.stopped:
		return true
	default:
		return false
	}
}

// Submit queues a draft without blocking the caller's loop. If the buffer is
// full the write is written through on a separate goroutine.
func (w *DraftWriter) Submit(ownerId string, draft models.Draft) {
	if w.isStopped() {
		w.write(DraftWrite{OwnerId: ownerId, Draft: draft})
		return
	}
	select {
	case w.WriteCh <- DraftWrite{OwnerId: ownerId, Draft: draft}:
	default:
		log.Printf("Draft writer backlog full, writing draft %s directly", draft.Id)
		go w.write(DraftWrite{OwnerId: ownerId, Draft: draft})
	}
}

// Flush blocks until the pending draft for boardId, if any, is written.
func (w *DraftWriter) Flush(ctx context.Context, boardId string) error {
	req := DraftFlush{BoardId: boardId, Done: make(chan error, 1)}
	select {
	case w.FlushCh <- req:
	case <-w.stopped:
		return w.writeThrough(boardId)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.Done:
		return err
	case <-w.stopped:
		return w.writeThrough(boardId)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delete cancels any pending write and deletes the stored draft.
func (w *DraftWriter) Delete(ctx context.Context, ownerId string, boardId string) error {
	req := DraftDelete{OwnerId: ownerId, BoardId: boardId, Done: make(chan error, 1)}
	select {
	case w.DeleteCh <- req:
	case <-w.stopped:
		return w.deleteThrough(ownerId, boardId)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.Done:
		return err
	case <-w.stopped:
		return w.deleteThrough(ownerId, boardId)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writeThrough writes whatever is still buffered after Run returned and
// reports the result for boardId.
func (w *DraftWriter) writeThrough(boardId string) error {
	pending := make(map[string]DraftWrite)
	w.drainWrites(pending)
	var err error
	for id, item := range pending {
		if writeErr := w.write(item); id == boardId {
			err = writeErr
		}
	}
	return err
}

func (w *DraftWriter) deleteThrough(ownerId string, boardId string) error {
	pending := make(map[string]DraftWrite)
	w.drainWrites(pending)
	delete(pending, boardId)
	for _, item := range pending {
		w.write(item)
	}
	return w.deleteDraft(ownerId, boardId)
}

func (w *DraftWriter) deleteDraft(ownerId string, boardId string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := w.whiteboardCache.DeleteDraft(ctx, ownerId, boardId)
	if err != nil {
		log.Printf("Error deleting draft %s for %s: %v", boardId, ownerId, err)
	}
	return err
}

func (w *DraftWriter) write(item DraftWrite) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := w.whiteboardCache.SaveDraft(ctx, item.OwnerId, item.Draft)
	if err != nil {
		log.Printf("Error writing draft %s for %s: %v", item.Draft.Id, item.OwnerId, err)
	}
	return err
}

func (w *DraftWriter) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(w.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()
	defer close(w.stopped)

	pending := make(map[string]DraftWrite)

	flush := func() {
		for id, item := range pending {
			w.write(item)
			delete(pending, id)
		}
	}

	for {
		select {
		case item := <-w.WriteCh:
			if prev, ok := pending[item.Draft.Id]; ok && prev.Draft.UpdatedAt > item.Draft.UpdatedAt {
				continue
			}
			pending[item.Draft.Id] = item

		case req := <-w.FlushCh:
			w.drainWrites(pending)
			var err error
			if item, ok := pending[req.BoardId]; ok {
				err = w.write(item)
				delete(pending, req.BoardId)
			}
			req.Done <- err

		case req := <-w.DeleteCh:
			// Writes queued before the delete must not outlive it.
			w.drainWrites(pending)
			delete(pending, req.BoardId)
			req.Done <- w.deleteDraft(req.OwnerId, req.BoardId)

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			w.drainWrites(pending)
			flush()
			return
		}
	}
}

// drainWrites moves everything already buffered on WriteCh into pending.
func (w *DraftWriter) drainWrites(pending map[string]DraftWrite) {
	for {
		select {
		case item := <-w.WriteCh:
			if prev, ok := pending[item.Draft.Id]; ok && prev.Draft.UpdatedAt > item.Draft.UpdatedAt {
				continue
			}
			pending[item.Draft.Id] = item
		default:
			return
		}
	}
}
