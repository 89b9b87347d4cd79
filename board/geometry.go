package board

import (
	"math"
	"unicode/utf8"

	"github.com/zlnvch/whiteboard/models"
)

const (
	// DefaultHitBuffer is the slack around path and arrow bounds, in client pixels.
	DefaultHitBuffer = 10.0

	textCharWidth  = 0.6
	textLineHeight = 1.2
)

// Bounds is an axis-aligned box in world space with non-negative size.
type Bounds struct {
	X float64
	Y float64
	W float64
	H float64
}

func (b Bounds) Contains(p models.Point) bool {
	return p.X >= b.X && p.X <= b.X+b.W && p.Y >= b.Y && p.Y <= b.Y+b.H
}

func (b Bounds) Expand(d float64) Bounds {
	return Bounds{X: b.X - d, Y: b.Y - d, W: b.W + 2*d, H: b.H + 2*d}
}

func (b Bounds) Union(o Bounds) Bounds {
	minX := math.Min(b.X, o.X)
	minY := math.Min(b.Y, o.Y)
	maxX := math.Max(b.X+b.W, o.X+o.W)
	maxY := math.Max(b.Y+b.H, o.Y+o.H)
	return Bounds{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

func boundsOf(x, y, w, h float64) Bounds {
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	return Bounds{X: x, Y: y, W: w, H: h}
}

// TextSize approximates the box of a text element from its character count.
func TextSize(t *models.Text) (float64, float64) {
	chars := float64(utf8.RuneCountInString(t.Content))
	return chars * t.FontSize * textCharWidth, t.FontSize * textLineHeight
}

// ElementBounds returns the world-space box of el. Rect and Image boxes are
// normalised so negative sizes still produce a positive box.
func ElementBounds(el models.Element) Bounds {
	switch e := el.(type) {
	case *models.Rect:
		return boundsOf(e.X, e.Y, e.W, e.H)
	case *models.Image:
		return boundsOf(e.X, e.Y, e.W, e.H)
	case *models.Circle:
		return Bounds{X: e.X - e.R, Y: e.Y - e.R, W: 2 * e.R, H: 2 * e.R}
	case *models.Arrow:
		return boundsOf(e.X1, e.Y1, e.X2-e.X1, e.Y2-e.Y1)
	case *models.Text:
		w, h := TextSize(e)
		return Bounds{X: e.X, Y: e.Y, W: w, H: h}
	case *models.Path:
		if len(e.Points) == 0 {
			return Bounds{}
		}
		minX, minY := e.Points[0].X, e.Points[0].Y
		maxX, maxY := minX, minY
		for _, p := range e.Points[1:] {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
		return Bounds{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
	}
	return Bounds{}
}

// Hits reports whether the world point p hits el. buffer is the path/arrow
// slack already converted to world units.
func Hits(el models.Element, p models.Point, buffer float64) bool {
	switch e := el.(type) {
	case *models.Rect, *models.Image, *models.Text:
		return ElementBounds(e).Contains(p)
	case *models.Circle:
		return math.Hypot(p.X-e.X, p.Y-e.Y) <= e.R
	case *models.Path, *models.Arrow:
		return ElementBounds(e).Expand(buffer).Contains(p)
	}
	return false
}

// Anchor is the point an element is moved by.
func Anchor(el models.Element) models.Point {
	switch e := el.(type) {
	case *models.Rect:
		return models.Point{X: e.X, Y: e.Y}
	case *models.Image:
		return models.Point{X: e.X, Y: e.Y}
	case *models.Circle:
		return models.Point{X: e.X, Y: e.Y}
	case *models.Text:
		return models.Point{X: e.X, Y: e.Y}
	case *models.Arrow:
		return models.Point{X: e.X1, Y: e.Y1}
	case *models.Path:
		if len(e.Points) > 0 {
			return e.Points[0]
		}
	}
	return models.Point{}
}

// Translate moves every coordinate of el by (dx, dy).
func Translate(el models.Element, dx, dy float64) {
	switch e := el.(type) {
	case *models.Rect:
		e.X += dx
		e.Y += dy
	case *models.Image:
		e.X += dx
		e.Y += dy
	case *models.Circle:
		e.X += dx
		e.Y += dy
	case *models.Text:
		e.X += dx
		e.Y += dy
	case *models.Arrow:
		e.X1 += dx
		e.Y1 += dy
		e.X2 += dx
		e.Y2 += dy
	case *models.Path:
		for i := range e.Points {
			e.Points[i].X += dx
			e.Points[i].Y += dy
		}
	}
}

// MoveAnchorTo translates el so that its anchor lands on target.
func MoveAnchorTo(el models.Element, target models.Point) {
	a := Anchor(el)
	Translate(el, target.X-a.X, target.Y-a.Y)
}
