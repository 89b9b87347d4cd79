package viewport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zlnvch/whiteboard/models"
)

const eps = 1e-9

var testRect = Rect{X: 40, Y: 60, W: 800, H: 600}

func TestRoundTrip(t *testing.T) {
	viewports := []models.Viewport{
		{PanX: 0, PanY: 0, Zoom: 1},
		{PanX: -350.5, PanY: 120, Zoom: 0.2},
		{PanX: 1e4, PanY: -7e3, Zoom: 3.97},
	}
	points := []models.Point{{X: 0, Y: 0}, {X: 12.5, Y: -99}, {X: -4000, Y: 2.25e5}}

	for _, vp := range viewports {
		for _, p := range points {
			back := WorldFromClient(ClientFromWorld(p, testRect, vp), testRect, vp)
			assert.InDelta(t, p.X, back.X, 1e-6)
			assert.InDelta(t, p.Y, back.Y, 1e-6)
		}
	}
}

func TestZoomAt_KeepsPointUnderCursor(t *testing.T) {
	vp := models.Viewport{PanX: 30, PanY: -20, Zoom: 1.3}
	cursor := models.Point{X: 512, Y: 333}

	for _, delta := range []float64{-1, 1, -120, 300} {
		before := WorldFromClient(cursor, testRect, vp)
		next := ZoomAt(vp, testRect, cursor, delta, DefaultLimits)
		after := ClientFromWorld(before, testRect, next)

		assert.InDelta(t, cursor.X, after.X, 1e-6)
		assert.InDelta(t, cursor.Y, after.Y, 1e-6)
	}
}

func TestZoomAt_RepeatedAtSamePointKeepsWorldCoordinate(t *testing.T) {
	vp := models.DefaultViewport()
	cursor := models.Point{X: 200, Y: 150}
	world := WorldFromClient(cursor, testRect, vp)

	vp = ZoomAt(vp, testRect, cursor, -1, DefaultLimits)
	vp = ZoomAt(vp, testRect, cursor, -1, DefaultLimits)

	assert.InDelta(t, 1.08*1.08, vp.Zoom, eps)
	got := WorldFromClient(cursor, testRect, vp)
	assert.InDelta(t, world.X, got.X, 1e-6)
	assert.InDelta(t, world.Y, got.Y, 1e-6)
}

func TestZoomAt_AlwaysWithinLimits(t *testing.T) {
	vp := models.DefaultViewport()
	cursor := models.Point{X: 10, Y: 10}
	for i := 0; i < 200; i++ {
		vp = ZoomAt(vp, testRect, cursor, -1, DefaultLimits)
		assert.LessOrEqual(t, vp.Zoom, DefaultLimits.Max)
	}
	assert.Equal(t, DefaultLimits.Max, vp.Zoom)

	for i := 0; i < 400; i++ {
		vp = ZoomAt(vp, testRect, cursor, 1, DefaultLimits)
		assert.GreaterOrEqual(t, vp.Zoom, DefaultLimits.Min)
	}
	assert.Equal(t, DefaultLimits.Min, vp.Zoom)
}

func TestZoomAt_ClampsOutOfRangeStart(t *testing.T) {
	vp := models.Viewport{Zoom: 50}
	next := ZoomAt(vp, testRect, models.Point{X: 100, Y: 100}, 0, DefaultLimits)
	assert.Equal(t, DefaultLimits.Max, next.Zoom)

	next = ZoomAt(models.Viewport{Zoom: math.NaN()}, testRect, models.Point{}, -1, DefaultLimits)
	assert.InDelta(t, 1.08, next.Zoom, eps)
}

func TestPan_IndependentOfZoom(t *testing.T) {
	for _, zoom := range []float64{0.2, 1, 4} {
		start := models.Viewport{PanX: 5, PanY: 7, Zoom: zoom}
		got := Pan(start, models.Point{X: 100, Y: 100}, models.Point{X: 130, Y: 80})
		assert.Equal(t, models.Viewport{PanX: 35, PanY: -13, Zoom: zoom}, got)
	}
}

func TestVisibleWorld(t *testing.T) {
	vp := models.Viewport{PanX: -100, PanY: -50, Zoom: 2}
	got := VisibleWorld(testRect, vp)
	assert.Equal(t, Rect{X: 50, Y: 25, W: 400, H: 300}, got)
}
