package tool

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/whiteboard/board"
	"github.com/zlnvch/whiteboard/models"
	"github.com/zlnvch/whiteboard/viewport"
)

var testRect = viewport.Rect{X: 0, Y: 0, W: 800, H: 600}

func newTestMachine(t *testing.T, vp models.Viewport) (*Machine, *board.Store) {
	t.Helper()
	n := 0
	store := board.NewStore(nil)
	m := NewMachine(store, vp, testRect,
		WithClock(func() time.Time { return time.UnixMilli(1_000) }),
		WithIdGenerator(func() string {
			n++
			return fmt.Sprintf("el-%d", n)
		}),
	)
	return m, store
}

func down(id int, x, y float64) PointerEvent {
	return PointerEvent{PointerId: id, Button: ButtonPrimary, Client: models.Point{X: x, Y: y}}
}

func TestRectTool_DrawsSignedRect(t *testing.T) {
	m, store := newTestMachine(t, models.DefaultViewport())
	m.SetTool(ToolRect)

	m.PointerDown(down(1, 10, 10))
	assert.Equal(t, ModeDrawing, m.State().Mode)
	m.PointerMove(down(1, 110, 60))
	m.PointerUp(down(1, 110, 60))

	require.Equal(t, 1, store.Len())
	r := store.Snapshot()[0].(*models.Rect)
	assert.Equal(t, 10.0, r.X)
	assert.Equal(t, 10.0, r.Y)
	assert.Equal(t, 100.0, r.W)
	assert.Equal(t, 50.0, r.H)
	assert.Equal(t, ModeIdle, m.State().Mode)
	assert.False(t, m.State().Captured)

	m.PointerDown(down(1, 100, 100))
	m.PointerMove(down(1, 40, 70))
	m.PointerUp(down(1, 40, 70))
	back := store.Snapshot()[1].(*models.Rect)
	assert.Equal(t, -60.0, back.W)
	assert.Equal(t, -30.0, back.H)
}

func TestRectTool_UsesWorldCoordinates(t *testing.T) {
	m, store := newTestMachine(t, models.Viewport{PanX: 20, PanY: 20, Zoom: 2})
	m.SetTool(ToolRect)

	m.PointerDown(down(1, 40, 40))
	m.PointerMove(down(1, 240, 140))
	m.PointerUp(down(1, 240, 140))

	r := store.Snapshot()[0].(*models.Rect)
	assert.Equal(t, models.Point{X: 10, Y: 10}, models.Point{X: r.X, Y: r.Y})
	assert.Equal(t, 100.0, r.W)
	assert.Equal(t, 50.0, r.H)
}

func TestCircleAndArrowTools(t *testing.T) {
	m, store := newTestMachine(t, models.DefaultViewport())

	m.SetTool(ToolCircle)
	m.PointerDown(down(1, 0, 0))
	m.PointerMove(down(1, 30, 40))
	m.PointerUp(down(1, 30, 40))

	m.SetTool(ToolArrow)
	m.PointerDown(down(1, 5, 5))
	m.PointerMove(down(1, 50, 60))
	m.PointerUp(down(1, 50, 60))

	els := store.Snapshot()
	assert.Equal(t, 50.0, els[0].(*models.Circle).R)
	arrow := els[1].(*models.Arrow)
	assert.Equal(t, [4]float64{5, 5, 50, 60}, [4]float64{arrow.X1, arrow.Y1, arrow.X2, arrow.Y2})
}

func TestPenAndLaser(t *testing.T) {
	m, store := newTestMachine(t, models.DefaultViewport())

	m.PointerDown(down(1, 0, 0))
	m.PointerMove(down(1, 1, 1))
	m.PointerMove(down(1, 2, 3))
	m.PointerUp(down(1, 2, 3))

	m.SetTool(ToolLaser)
	m.PointerDown(down(1, 0, 0))
	m.PointerUp(down(1, 0, 0))

	els := store.Snapshot()
	pen := els[0].(*models.Path)
	assert.Len(t, pen.Points, 3)
	assert.False(t, pen.Ephemeral)
	laser := els[1].(*models.Path)
	assert.True(t, laser.Ephemeral)
	assert.Equal(t, int64(1_000), laser.CreatedAt)
}

func TestPointerCaptureIgnoresOtherPointers(t *testing.T) {
	m, store := newTestMachine(t, models.DefaultViewport())
	m.SetTool(ToolRect)

	m.PointerDown(down(1, 0, 0))
	m.PointerDown(down(2, 300, 300))
	m.PointerMove(down(2, 500, 500))
	m.PointerUp(down(2, 500, 500))
	assert.Equal(t, ModeDrawing, m.State().Mode)
	assert.Equal(t, 1, store.Len())

	m.PointerMove(down(1, 20, 20))
	m.PointerUp(down(1, 20, 20))
	assert.Equal(t, 20.0, store.Snapshot()[0].(*models.Rect).W)
	assert.Equal(t, ModeIdle, m.State().Mode)
}

func TestPanTool_AndSecondaryButton(t *testing.T) {
	m, _ := newTestMachine(t, models.Viewport{Zoom: 2})
	m.SetTool(ToolPan)

	m.PointerDown(down(7, 100, 100))
	assert.Equal(t, ModePanning, m.State().Mode)
	m.PointerMove(down(7, 150, 80))
	assert.Equal(t, models.Viewport{PanX: 50, PanY: -20, Zoom: 2}, m.Viewport())
	m.PointerUp(down(7, 150, 80))

	m.SetTool(ToolPen)
	ev := down(3, 0, 0)
	ev.Button = ButtonSecondary
	m.PointerDown(ev)
	assert.Equal(t, ModePanning, m.State().Mode)
}

func TestSelectTool_MovesTopmostHit(t *testing.T) {
	m, store := newTestMachine(t, models.Viewport{Zoom: 2})
	require.NoError(t, store.Append(&models.Rect{ElementMeta: models.ElementMeta{Id: "a"}, X: 0, Y: 0, W: 100, H: 100}))
	require.NoError(t, store.Append(&models.Rect{ElementMeta: models.ElementMeta{Id: "b"}, X: 20, Y: 20, W: 10, H: 10}))
	m.SetTool(ToolSelect)

	m.PointerDown(down(1, 50, 50)) // world (25,25)
	assert.Equal(t, ModeMovingElement, m.State().Mode)
	assert.Equal(t, "b", m.SelectedId())

	m.PointerMove(down(1, 70, 30))
	m.PointerUp(down(1, 70, 30))

	b, _ := store.Get("b")
	assert.Equal(t, 30.0, b.(*models.Rect).X)
	assert.Equal(t, 10.0, b.(*models.Rect).Y)
	assert.Equal(t, "b", m.SelectedId())
}

func TestSelectTool_MissDeselectsAndPans(t *testing.T) {
	m, store := newTestMachine(t, models.DefaultViewport())
	require.NoError(t, store.Append(&models.Rect{ElementMeta: models.ElementMeta{Id: "a"}, W: 10, H: 10}))
	m.SetTool(ToolSelect)
	m.PointerDown(down(1, 5, 5))
	m.PointerUp(down(1, 5, 5))
	require.Equal(t, "a", m.SelectedId())

	m.PointerDown(down(1, 400, 400))
	assert.Equal(t, "", m.SelectedId())
	assert.Equal(t, ModePanning, m.State().Mode)
}

func TestTextTool_CommitAndCancel(t *testing.T) {
	m, store := newTestMachine(t, models.DefaultViewport())
	m.SetTool(ToolText)

	m.PointerDown(down(1, 30, 40))
	assert.Equal(t, ModeEditingText, m.State().Mode)

	// Dispatch is suspended while the draft is open.
	m.PointerDown(down(1, 300, 300))
	assert.Equal(t, models.Point{X: 30, Y: 40}, m.State().TextAnchor)

	_, ok := m.CommitText("   ")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, ModeIdle, m.State().Mode)

	m.PointerDown(down(1, 30, 40))
	el, ok := m.CommitText("hello")
	require.True(t, ok)
	text := el.(*models.Text)
	assert.Equal(t, "hello", text.Content)
	assert.Equal(t, 30.0, text.X)

	m.PointerDown(down(1, 0, 0))
	m.CancelText()
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, ModeIdle, m.State().Mode)
}

func TestDropSticker(t *testing.T) {
	m, store := newTestMachine(t, models.Viewport{PanX: 100, Zoom: 1})
	el, ok := m.DropSticker(models.Point{X: 150, Y: 20}, "🎉")
	require.True(t, ok)
	text := el.(*models.Text)
	assert.Equal(t, 50.0, text.X)
	assert.Equal(t, StickerFontSize, text.FontSize)
	assert.Equal(t, 1, store.Len())
}

func TestEscapeTogglesDialogWithoutDroppingDrawing(t *testing.T) {
	m, _ := newTestMachine(t, models.DefaultViewport())
	m.PointerDown(down(1, 0, 0))

	m.Key(KeyEvent{Key: "Escape"})
	assert.True(t, m.DialogOpen())
	assert.Equal(t, ModeDrawing, m.State().Mode)

	m.Key(KeyEvent{Key: "Escape"})
	assert.False(t, m.DialogOpen())
}

func TestWheelZoomClamped(t *testing.T) {
	m, _ := newTestMachine(t, models.DefaultViewport())
	v := m.ViewportVersion()
	for i := 0; i < 100; i++ {
		m.Wheel(WheelEvent{Client: models.Point{X: 400, Y: 300}, DeltaY: -100})
	}
	assert.Equal(t, viewport.DefaultLimits.Max, m.Viewport().Zoom)
	assert.Greater(t, m.ViewportVersion(), v)
}

func TestPlaceImage_CentersInView(t *testing.T) {
	m, _ := newTestMachine(t, models.DefaultViewport())
	el, ok := m.PlaceImage("blob:x", 200, 100)
	require.True(t, ok)
	img := el.(*models.Image)
	assert.Equal(t, 300.0, img.X)
	assert.Equal(t, 250.0, img.Y)
}
