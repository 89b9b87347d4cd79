// Package render draws a board onto a DPR-scaled raster surface.
//
// A frame is drawn in three passes: the viewport-relative background grid,
// the elements in store order, then the selection decoration. Image elements
// are looked up in an ImageCache and skipped until their decode resolves.
package render

import (
	"math"

	"github.com/zlnvch/whiteboard/board"
	"github.com/zlnvch/whiteboard/models"
)

const (
	GridSpacing      = 40.0
	minGridPixels    = 8.0
	SelectionPadding = 4.0
	arrowHeadAngle   = math.Pi / 7
)

// Scene is everything one frame depends on.
type Scene struct {
	Elements   models.Elements
	Viewport   models.Viewport
	SelectedId string
	Grid       bool
}

type Renderer struct {
	images *ImageCache
}

func NewRenderer(images *ImageCache) *Renderer {
	return &Renderer{images: images}
}

func (r *Renderer) Images() *ImageCache {
	return r.images
}

// Render redraws s from scratch. It reports whether an image was skipped
// because its decode is still pending.
func (r *Renderer) Render(s *Surface, scene Scene) bool {
	s.ResetTransform()
	s.Clear(Background)

	view := ViewMatrix(scene.Viewport)
	if scene.Grid {
		r.drawGrid(s, scene.Viewport)
	}

	s.SetTransform(view)
	missing := false
	var selected models.Element
	for _, el := range scene.Elements {
		if !r.drawElement(s, el) {
			missing = true
		}
		if scene.SelectedId != "" && el.Meta().Id == scene.SelectedId {
			selected = el
		}
	}

	if selected != nil {
		drawSelection(s, selected, scene.Viewport.Zoom)
	}
	s.ResetTransform()
	return missing
}

// drawGrid draws hairlines every GridSpacing world units, doubling the
// spacing until lines are at least minGridPixels apart.
func (r *Renderer) drawGrid(s *Surface, vp models.Viewport) {
	if vp.Zoom <= 0 {
		return
	}
	spacing := GridSpacing
	for spacing*vp.Zoom < minGridPixels {
		spacing *= 2
	}
	w, h := s.CSSSize()
	step := spacing * vp.Zoom

	startX := math.Mod(vp.PanX, step)
	if startX < 0 {
		startX += step
	}
	for x := startX; x <= float64(w); x += step {
		s.FillRect(math.Floor(x), 0, 1, float64(h), GridColor)
	}

	startY := math.Mod(vp.PanY, step)
	if startY < 0 {
		startY += step
	}
	for y := startY; y <= float64(h); y += step {
		s.FillRect(0, math.Floor(y), float64(w), 1, GridColor)
	}
}

// drawElement draws el in world space. It returns false if el is an image
// whose pixels are not available yet.
func (r *Renderer) drawElement(s *Surface, el models.Element) bool {
	switch e := el.(type) {
	case *models.Path:
		s.StrokePolyline(e.Points, e.Width, false, ParseHex(e.Color))

	case *models.Rect:
		pts := []models.Point{
			{X: e.X, Y: e.Y},
			{X: e.X + e.W, Y: e.Y},
			{X: e.X + e.W, Y: e.Y + e.H},
			{X: e.X, Y: e.Y + e.H},
		}
		s.StrokePolyline(pts, e.Width, true, ParseHex(e.Color))

	case *models.Circle:
		s.StrokeCircle(models.Point{X: e.X, Y: e.Y}, e.R, e.Width, ParseHex(e.Color))

	case *models.Arrow:
		c := ParseHex(e.Color)
		tip := models.Point{X: e.X2, Y: e.Y2}
		s.StrokePolyline([]models.Point{{X: e.X1, Y: e.Y1}, tip}, e.Width, false, c)
		if left, right, ok := arrowHead(e); ok {
			s.StrokePolyline([]models.Point{left, tip, right}, e.Width, false, c)
		}

	case *models.Text:
		s.DrawText(e.Content, e.X, e.Y, e.FontSize, ParseHex(e.Color))

	case *models.Image:
		if r.images == nil {
			return false
		}
		img, ok := r.images.Get(e.URL)
		if !ok {
			return false
		}
		s.DrawImage(img, e.X, e.Y, e.W, e.H)
	}
	return true
}

func arrowHead(a *models.Arrow) (models.Point, models.Point, bool) {
	dx, dy := a.X2-a.X1, a.Y2-a.Y1
	l := math.Hypot(dx, dy)
	if l == 0 {
		return models.Point{}, models.Point{}, false
	}
	size := math.Min(math.Max(10, a.Width*4), l/2)
	angle := math.Atan2(dy, dx)
	left := models.Point{
		X: a.X2 - size*math.Cos(angle-arrowHeadAngle),
		Y: a.Y2 - size*math.Sin(angle-arrowHeadAngle),
	}
	right := models.Point{
		X: a.X2 - size*math.Cos(angle+arrowHeadAngle),
		Y: a.Y2 - size*math.Sin(angle+arrowHeadAngle),
	}
	return left, right, true
}

// drawSelection outlines el's bounds with a 1px accent box padded by
// SelectionPadding client pixels.
func drawSelection(s *Surface, el models.Element, zoom float64) {
	if zoom <= 0 {
		return
	}
	pad := SelectionPadding / zoom
	b := board.ElementBounds(el).Expand(pad)
	pts := []models.Point{
		{X: b.X, Y: b.Y},
		{X: b.X + b.W, Y: b.Y},
		{X: b.X + b.W, Y: b.Y + b.H},
		{X: b.X, Y: b.Y + b.H},
	}
	s.StrokePolyline(pts, 1/zoom, true, AccentColor)
}
