package service_test

import (
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/whiteboard/apperr"
	"github.com/zlnvch/whiteboard/board"
	"github.com/zlnvch/whiteboard/models"
	"github.com/zlnvch/whiteboard/service"
	"github.com/zlnvch/whiteboard/tool"
)

func TestSession_NewBoardState(t *testing.T) {
	now, _ := fixedClock(1_000)
	f := setupService(t, testOptions(now))
	s := openSession(t, f, service.OpenParams{})

	state := s.State()
	assert.Equal(t, s.BoardId(), state.BoardId)
	assert.Equal(t, models.Viewport{Zoom: 1}, state.Viewport)
	assert.Equal(t, 0, state.Elements)
	assert.Equal(t, "idle", state.Mode)
	assert.Equal(t, tool.ToolPen, state.Tool)
	assert.False(t, state.Dialog.Open)
	assert.False(t, s.DraftPending())
}

func TestSession_RectScenario(t *testing.T) {
	now, _ := fixedClock(1_000)
	f := setupService(t, testOptions(now))
	s := openSession(t, f, service.OpenParams{})

	drawRect(t, s, 10, 10, 110, 60)

	elements := s.Board().Elements
	require.Len(t, elements, 1)
	r, ok := elements[0].(*models.Rect)
	require.True(t, ok)
	assert.Equal(t, 10.0, r.X)
	assert.Equal(t, 10.0, r.Y)
	assert.Equal(t, 100.0, r.W)
	assert.Equal(t, 50.0, r.H)
	assert.True(t, s.DraftPending())
}

func TestSession_LaserSweptAfterTTL(t *testing.T) {
	now, advance := fixedClock(1_000)
	f := setupService(t, testOptions(now))
	s := openSession(t, f, service.OpenParams{})

	require.NoError(t, s.Apply(service.Input{Type: service.InputSetTool, Tool: tool.ToolPen}))
	require.NoError(t, s.Apply(service.Input{Type: service.InputPointerDown, Pointer: tool.PointerEvent{PointerId: 1, Client: models.Point{X: 0, Y: 0}}}))
	require.NoError(t, s.Apply(service.Input{Type: service.InputPointerMove, Pointer: tool.PointerEvent{PointerId: 1, Client: models.Point{X: 30, Y: 30}}}))
	require.NoError(t, s.Apply(service.Input{Type: service.InputPointerUp, Pointer: tool.PointerEvent{PointerId: 1}}))

	require.NoError(t, s.Apply(service.Input{Type: service.InputSetTool, Tool: tool.ToolLaser}))
	require.NoError(t, s.Apply(service.Input{Type: service.InputPointerDown, Pointer: tool.PointerEvent{PointerId: 1, Client: models.Point{X: 50, Y: 50}}}))
	require.NoError(t, s.Apply(service.Input{Type: service.InputPointerMove, Pointer: tool.PointerEvent{PointerId: 1, Client: models.Point{X: 80, Y: 80}}}))
	require.NoError(t, s.Apply(service.Input{Type: service.InputPointerUp, Pointer: tool.PointerEvent{PointerId: 1}}))

	require.Equal(t, 2, s.Store().Len())
	// Drafts never carry the laser stroke.
	assert.Len(t, s.TakeDraft().Elements, 1)

	// The laser runs through (65,65) on screen.
	frame, ok := s.RenderIfDirty()
	require.True(t, ok)
	laser := frame.RGBAAt(65, 65)
	assert.Greater(t, laser.R, uint8(200))
	assert.Less(t, laser.G, uint8(120))

	advance(board.EphemeralTTL / 2)
	assert.Empty(t, s.Sweep())
	assert.Equal(t, 2, s.Store().Len())

	advance(board.EphemeralTTL)
	removed := s.Sweep()
	assert.Len(t, removed, 1)
	require.Equal(t, 1, s.Store().Len())
	assert.Equal(t, models.KindPath, s.Board().Elements[0].Kind())
	assert.False(t, models.IsEphemeral(s.Board().Elements[0]))

	frame, ok = s.RenderIfDirty()
	require.True(t, ok, "sweeping must mark the frame dirty")
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, frame.RGBAAt(65, 65))
}

func TestSession_RenderOnlyWhenDirty(t *testing.T) {
	now, _ := fixedClock(1_000)
	f := setupService(t, testOptions(now))
	s := openSession(t, f, service.OpenParams{})

	img, ok := s.RenderIfDirty()
	require.True(t, ok)
	assert.Equal(t, service.DefaultCanvasWidth, img.Bounds().Dx())

	_, ok = s.RenderIfDirty()
	assert.False(t, ok)

	drawRect(t, s, 10, 10, 50, 50)
	_, ok = s.RenderIfDirty()
	assert.True(t, ok)

	s.Invalidate()
	_, ok = s.RenderIfDirty()
	assert.True(t, ok)

	require.NoError(t, s.Apply(service.Input{Type: service.InputResize, Resize: service.Resize{Width: 400, Height: 300, DPR: 2}}))
	img, ok = s.RenderIfDirty()
	require.True(t, ok)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestSession_EscapeTogglesDialogUnlessBusy(t *testing.T) {
	now, _ := fixedClock(1_000)
	f := setupService(t, testOptions(now))
	s := openSession(t, f, service.OpenParams{})

	escape := service.Input{Type: service.InputKey, Key: tool.KeyEvent{Key: "Escape"}}
	require.NoError(t, s.Apply(escape))
	assert.True(t, s.Dialog().Open)
	require.NoError(t, s.Apply(escape))
	assert.False(t, s.Dialog().Open)

	_, err := s.BeginExit(service.ExitRequest{Mode: models.ExitSave})
	require.NoError(t, err)
	require.NoError(t, s.Apply(escape))
	assert.True(t, s.Dialog().Open)
	assert.True(t, s.Dialog().Busy)

	_, err = s.BeginExit(service.ExitRequest{Mode: models.ExitSave})
	assert.ErrorIs(t, err, service.ErrExitInProgress)
}

func TestSession_EscapeKeepsDrawing(t *testing.T) {
	now, _ := fixedClock(1_000)
	f := setupService(t, testOptions(now))
	s := openSession(t, f, service.OpenParams{})

	require.NoError(t, s.Apply(service.Input{Type: service.InputSetTool, Tool: tool.ToolCircle}))
	require.NoError(t, s.Apply(service.Input{Type: service.InputPointerDown, Pointer: tool.PointerEvent{PointerId: 1, Client: models.Point{X: 100, Y: 100}}}))
	require.NoError(t, s.Apply(service.Input{Type: service.InputKey, Key: tool.KeyEvent{Key: "Escape"}}))
	require.NoError(t, s.Apply(service.Input{Type: service.InputPointerMove, Pointer: tool.PointerEvent{PointerId: 1, Client: models.Point{X: 130, Y: 140}}}))

	assert.Equal(t, "drawing", s.State().Mode)
	c := s.Board().Elements[0].(*models.Circle)
	assert.InDelta(t, 50, c.R, 1e-9)
}

func TestSession_TextEditing(t *testing.T) {
	now, _ := fixedClock(1_000)
	f := setupService(t, testOptions(now))
	s := openSession(t, f, service.OpenParams{})

	require.NoError(t, s.Apply(service.Input{Type: service.InputSetTool, Tool: tool.ToolText}))
	require.NoError(t, s.Apply(service.Input{Type: service.InputPointerDown, Pointer: tool.PointerEvent{PointerId: 1, Client: models.Point{X: 40, Y: 60}}}))

	state := s.State()
	assert.True(t, state.Editing)
	assert.Equal(t, models.Point{X: 40, Y: 60}, state.TextAnchor)

	require.NoError(t, s.Apply(service.Input{Type: service.InputCommitText, Text: "hello"}))
	assert.False(t, s.State().Editing)
	require.Len(t, s.Board().Elements, 1)
	assert.Equal(t, "hello", s.Board().Elements[0].(*models.Text).Content)
}

func TestSession_RejectsBadInput(t *testing.T) {
	now, _ := fixedClock(1_000)
	f := setupService(t, testOptions(now))
	s := openSession(t, f, service.OpenParams{})

	tests := []struct {
		name string
		in   service.Input
	}{
		{"unknown tool", service.Input{Type: service.InputSetTool, Tool: "spray"}},
		{"empty canvas", service.Input{Type: service.InputResize, Resize: service.Resize{Width: 0, Height: 100}}},
		{"huge canvas", service.Input{Type: service.InputResize, Resize: service.Resize{Width: 10000, Height: 100}}},
		{"image without url", service.Input{Type: service.InputInsertImage, Image: service.ImageInsert{W: 10, H: 10}}},
		{"blank name", service.Input{Type: service.InputRename, Text: "   "}},
		{"unknown input", service.Input{Type: "teleport"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Apply(tt.in)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}
	assert.Equal(t, 0, s.Store().Len())
}

func TestSession_StickerAndStyle(t *testing.T) {
	now, _ := fixedClock(1_000)
	f := setupService(t, testOptions(now))
	s := openSession(t, f, service.OpenParams{})

	require.NoError(t, s.Apply(service.Input{Type: service.InputSetStyle, Style: tool.Style{Color: "#ff0000"}}))
	assert.Equal(t, "#ff0000", s.Machine().Style().Color)
	assert.Equal(t, tool.DefaultStyle.Width, s.Machine().Style().Width)

	require.NoError(t, s.Apply(service.Input{Type: service.InputDropSticker, Sticker: service.Sticker{Client: models.Point{X: 20, Y: 30}, Content: "👍"}}))
	require.Len(t, s.Board().Elements, 1)
	text := s.Board().Elements[0].(*models.Text)
	assert.Equal(t, tool.StickerFontSize, text.FontSize)
	assert.Equal(t, 20.0, text.X)
}

func TestSession_TakeDraft(t *testing.T) {
	now, advance := fixedClock(1_000)
	f := setupService(t, testOptions(now))
	s := openSession(t, f, service.OpenParams{})

	drawRect(t, s, 10, 10, 50, 50)
	require.NoError(t, s.Apply(service.Input{Type: service.InputWheel, Wheel: tool.WheelEvent{Client: models.Point{X: 400, Y: 300}, DeltaY: -100}}))
	advance(time.Second)

	draft := s.TakeDraft()
	assert.Equal(t, s.BoardId(), draft.Id)
	assert.Equal(t, int64(2_000), draft.UpdatedAt)
	assert.InDelta(t, 1.08, draft.Zoom, 1e-9)
	assert.Len(t, draft.Elements, 1)
	assert.False(t, s.DraftPending())

	require.NoError(t, s.Apply(service.Input{Type: service.InputRename, Text: "Renamed"}))
	assert.True(t, s.DraftPending())
}
