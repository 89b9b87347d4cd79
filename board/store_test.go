package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/whiteboard/models"
)

func meta(id string, created int64) models.ElementMeta {
	return models.ElementMeta{Id: id, CreatedAt: created}
}

func TestStore_AppendRejectsDuplicateIds(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Append(&models.Rect{ElementMeta: meta("a", 0)}))
	assert.ErrorIs(t, s.Append(&models.Circle{ElementMeta: meta("a", 0)}), ErrDuplicateId)
	assert.ErrorIs(t, s.Append(&models.Circle{}), ErrMissingId)
	assert.Equal(t, 1, s.Len())
}

func TestStore_NewStoreDropsDuplicates(t *testing.T) {
	s := NewStore(models.Elements{
		&models.Rect{ElementMeta: meta("a", 0)},
		&models.Rect{ElementMeta: meta("a", 0)},
		&models.Rect{ElementMeta: meta("b", 0)},
	})
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, uint64(0), s.Version())
}

func TestStore_HitTestTopmostWins(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Append(&models.Rect{ElementMeta: meta("bottom", 0), X: 0, Y: 0, W: 100, H: 100}))
	require.NoError(t, s.Append(&models.Circle{ElementMeta: meta("top", 0), X: 50, Y: 50, R: 10}))

	el, ok := s.HitTest(models.Point{X: 52, Y: 52}, 0)
	require.True(t, ok)
	assert.Equal(t, "top", el.Meta().Id)

	el, ok = s.HitTest(models.Point{X: 5, Y: 5}, 0)
	require.True(t, ok)
	assert.Equal(t, "bottom", el.Meta().Id)

	_, ok = s.HitTest(models.Point{X: 500, Y: 5}, 0)
	assert.False(t, ok)
}

func TestStore_SweepEphemeral(t *testing.T) {
	now := time.UnixMilli(10_000)
	s := NewStore(nil)
	require.NoError(t, s.Append(&models.Path{ElementMeta: meta("pen", 1_000)}))
	require.NoError(t, s.Append(&models.Path{ElementMeta: meta("old-laser", 7_000), Ephemeral: true}))
	require.NoError(t, s.Append(&models.Path{ElementMeta: meta("new-laser", 9_000), Ephemeral: true}))

	v := s.Version()
	removed := s.SweepEphemeral(now, EphemeralTTL)
	assert.Equal(t, []string{"old-laser"}, removed)
	assert.Greater(t, s.Version(), v)
	assert.Equal(t, 2, s.Len())

	removed = s.SweepEphemeral(now.Add(5*time.Second), EphemeralTTL)
	assert.Equal(t, []string{"new-laser"}, removed)
	_, ok := s.Get("pen")
	assert.True(t, ok)

	// The id is free again after a sweep.
	assert.NoError(t, s.Append(&models.Path{ElementMeta: meta("old-laser", 0)}))
}

func TestStore_SnapshotIsStableCopy(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Append(&models.Rect{ElementMeta: meta("r", 0), W: 1}))

	snap := s.Snapshot()
	assert.Same(t, &snap[0], &s.Snapshot()[0])

	s.Mutate("r", func(el models.Element) { el.(*models.Rect).W = 42 })
	assert.Equal(t, 1.0, snap[0].(*models.Rect).W)
	assert.Equal(t, 42.0, s.Snapshot()[0].(*models.Rect).W)
}

func TestStore_Remove(t *testing.T) {
	s := NewStore(models.Elements{&models.Text{ElementMeta: meta("t", 0)}})
	assert.True(t, s.Remove("t"))
	assert.False(t, s.Remove("t"))
	assert.Equal(t, 0, s.Len())
}

func TestHits_PerKind(t *testing.T) {
	text := &models.Text{X: 0, Y: 0, Content: "hello", FontSize: 20}
	w, h := TextSize(text)
	assert.InDelta(t, 60.0, w, 1e-9)
	assert.InDelta(t, 24.0, h, 1e-9)
	assert.True(t, Hits(text, models.Point{X: 59, Y: 23}, 0))
	assert.False(t, Hits(text, models.Point{X: 61, Y: 5}, 0))

	backwards := &models.Rect{X: 100, Y: 100, W: -50, H: -20}
	assert.True(t, Hits(backwards, models.Point{X: 60, Y: 90}, 0))

	path := &models.Path{Points: []models.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}}
	assert.True(t, Hits(path, models.Point{X: 5, Y: 9}, DefaultHitBuffer))
	assert.False(t, Hits(path, models.Point{X: 5, Y: 11}, DefaultHitBuffer))

	circle := &models.Circle{X: 0, Y: 0, R: 5}
	assert.True(t, Hits(circle, models.Point{X: 3, Y: 4}, 0))
	assert.False(t, Hits(circle, models.Point{X: 4, Y: 4}, 0))
}

func TestMoveAnchorTo(t *testing.T) {
	path := &models.Path{Points: []models.Point{{X: 1, Y: 1}, {X: 3, Y: 5}}}
	MoveAnchorTo(path, models.Point{X: 11, Y: 21})
	assert.Equal(t, []models.Point{{X: 11, Y: 21}, {X: 13, Y: 25}}, path.Points)

	arrow := &models.Arrow{X1: 0, Y1: 0, X2: 10, Y2: 10}
	MoveAnchorTo(arrow, models.Point{X: 5, Y: -5})
	assert.Equal(t, 15.0, arrow.X2)
	assert.Equal(t, 5.0, arrow.Y2)
}
