package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/whiteboard/cache/mocks"
	"github.com/zlnvch/whiteboard/models"
)

func draft(id string, updatedAt int64) models.Draft {
	return models.Draft{Id: id, Name: "b", Elements: models.Elements{}, Zoom: 1, UpdatedAt: updatedAt}
}

func startWriter(t *testing.T, c *mocks.MockCache, tick int) (*DraftWriter, context.CancelFunc, chan struct{}) {
	t.Helper()
	w := NewDraftWriter(c, tick)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	return w, cancel, done
}

func TestDraftWriter_CoalescesToLatest(t *testing.T) {
	saved := make(chan models.Draft, 4)
	c := new(mocks.MockCache)
	c.On("SaveDraft", mock.Anything, "u1", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		saved <- args.Get(2).(models.Draft)
	})

	w := NewDraftWriter(c, 20)
	w.Submit("u1", draft("b1", 1))
	w.Submit("u1", draft("b1", 3))
	w.Submit("u1", draft("b1", 2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	select {
	case d := <-saved:
		assert.Equal(t, int64(3), d.UpdatedAt)
	case <-time.After(time.Second):
		t.Fatal("draft was not written")
	}

	select {
	case d := <-saved:
		t.Fatalf("unexpected second write: %+v", d)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestDraftWriter_DeleteDropsPendingWrite(t *testing.T) {
	c := new(mocks.MockCache)
	c.On("DeleteDraft", mock.Anything, "u1", "b1").Return(nil).Once()

	w, cancel, done := startWriter(t, c, 3_600_000)
	w.Submit("u1", draft("b1", 1))
	require.NoError(t, w.Delete(context.Background(), "u1", "b1"))

	cancel()
	<-done
	c.AssertNotCalled(t, "SaveDraft", mock.Anything, mock.Anything, mock.Anything)
	c.AssertExpectations(t)
}

func TestDraftWriter_FlushWritesImmediately(t *testing.T) {
	c := new(mocks.MockCache)
	c.On("SaveDraft", mock.Anything, "u1", draft("b1", 7)).Return(errors.New("redis down")).Once()

	w, cancel, done := startWriter(t, c, 3_600_000)
	defer func() {
		cancel()
		<-done
	}()

	w.Submit("u1", draft("b1", 7))
	err := w.Flush(context.Background(), "b1")
	assert.EqualError(t, err, "redis down")

	// Nothing pending any more.
	assert.NoError(t, w.Flush(context.Background(), "b1"))
	c.AssertExpectations(t)
}

func TestDraftWriter_ShutdownFlushesPending(t *testing.T) {
	c := new(mocks.MockCache)
	c.On("SaveDraft", mock.Anything, "u1", draft("b1", 1)).Return(nil).Once()
	c.On("SaveDraft", mock.Anything, "u2", draft("b2", 1)).Return(nil).Once()

	w, cancel, done := startWriter(t, c, 3_600_000)
	w.Submit("u1", draft("b1", 1))
	w.Submit("u2", draft("b2", 1))

	cancel()
	<-done
	c.AssertExpectations(t)
}

func TestDraftWriter_WritesThroughAfterStop(t *testing.T) {
	c := new(mocks.MockCache)
	c.On("SaveDraft", mock.Anything, "u1", draft("b1", 4)).Return(nil).Once()
	c.On("SaveDraft", mock.Anything, "u2", draft("b2", 5)).Return(nil).Once()
	c.On("DeleteDraft", mock.Anything, "u3", "b3").Return(nil).Once()

	w, cancel, done := startWriter(t, c, 3_600_000)
	cancel()
	<-done
	select {
	case <-w.Done():
	default:
		t.Fatal("Done should be closed once Run returns")
	}

	// Submitted after the writer stopped.
	w.Submit("u1", draft("b1", 4))

	// Buffered just as the writer stopped; the flush picks it up.
	w.WriteCh <- DraftWrite{OwnerId: "u2", Draft: draft("b2", 5)}
	ctx, cancelFlush := context.WithTimeout(context.Background(), time.Second)
	defer cancelFlush()
	require.NoError(t, w.Flush(ctx, "b2"))

	require.NoError(t, w.Delete(ctx, "u3", "b3"))
	c.AssertExpectations(t)
}
