// Package viewport maps between world coordinates (the board's unbounded
// plane) and client coordinates (pixels inside the visible viewport).
//
// The transform applies pan before scale:
//
//	client = rect.origin + pan + world*zoom
package viewport

import (
	"math"

	"github.com/zlnvch/whiteboard/models"
)

const (
	ZoomInStep  = 1.08
	ZoomOutStep = 0.92
)

type Limits struct {
	Min float64
	Max float64
}

var DefaultLimits = Limits{Min: 0.2, Max: 4}

func (l Limits) Clamp(zoom float64) float64 {
	if math.IsNaN(zoom) || zoom <= 0 {
		zoom = 1
	}
	return math.Max(l.Min, math.Min(l.Max, zoom))
}

// Rect is the viewport's bounding box in client space.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

func WorldFromClient(client models.Point, rect Rect, vp models.Viewport) models.Point {
	return models.Point{
		X: (client.X - rect.X - vp.PanX) / vp.Zoom,
		Y: (client.Y - rect.Y - vp.PanY) / vp.Zoom,
	}
}

func ClientFromWorld(world models.Point, rect Rect, vp models.Viewport) models.Point {
	return models.Point{
		X: rect.X + vp.PanX + world.X*vp.Zoom,
		Y: rect.Y + vp.PanY + world.Y*vp.Zoom,
	}
}

// ZoomAt applies one wheel step at the cursor. Negative deltaY zooms in.
// The world point under the cursor stays under the cursor.
func ZoomAt(vp models.Viewport, rect Rect, cursor models.Point, deltaY float64, limits Limits) models.Viewport {
	switch {
	case deltaY < 0:
		return ScaleAt(vp, rect, cursor, ZoomInStep, limits)
	case deltaY > 0:
		return ScaleAt(vp, rect, cursor, ZoomOutStep, limits)
	default:
		return Normalize(vp, limits)
	}
}

// ScaleAt multiplies zoom by factor, clamps it, and re-anchors pan so the
// world point under cursor re-projects to cursor.
func ScaleAt(vp models.Viewport, rect Rect, cursor models.Point, factor float64, limits Limits) models.Viewport {
	vp = Normalize(vp, limits)
	anchor := WorldFromClient(cursor, rect, vp)

	zoom := limits.Clamp(vp.Zoom * factor)
	return models.Viewport{
		PanX: cursor.X - rect.X - anchor.X*zoom,
		PanY: cursor.Y - rect.Y - anchor.Y*zoom,
		Zoom: zoom,
	}
}

// Pan moves the viewport by the client-space drag delta, independent of zoom.
func Pan(start models.Viewport, startClient models.Point, current models.Point) models.Viewport {
	return models.Viewport{
		PanX: start.PanX + (current.X - startClient.X),
		PanY: start.PanY + (current.Y - startClient.Y),
		Zoom: start.Zoom,
	}
}

// Normalize clamps zoom into limits and replaces non-finite pan with zero.
func Normalize(vp models.Viewport, limits Limits) models.Viewport {
	vp.Zoom = limits.Clamp(vp.Zoom)
	if math.IsNaN(vp.PanX) || math.IsInf(vp.PanX, 0) {
		vp.PanX = 0
	}
	if math.IsNaN(vp.PanY) || math.IsInf(vp.PanY, 0) {
		vp.PanY = 0
	}
	return vp
}

// VisibleWorld returns the world-space rectangle covered by the viewport.
func VisibleWorld(rect Rect, vp models.Viewport) Rect {
	origin := WorldFromClient(models.Point{X: rect.X, Y: rect.Y}, rect, vp)
	return Rect{X: origin.X, Y: origin.Y, W: rect.W / vp.Zoom, H: rect.H / vp.Zoom}
}
