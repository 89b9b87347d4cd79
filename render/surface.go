package render

import (
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/zlnvch/whiteboard/models"
)

// Surface is an RGBA backing store sized css × dpr. Drawing calls take
// CSS-pixel coordinates; the DPR scale is folded into every transform set on
// the surface.
//
// Paths are rasterized by a software gg.Context. img aliases the context's
// pixmap so text and image blits land in the same pixels; the pixmap holds
// straight alpha, which matches image.RGBA because every frame starts from
// an opaque Clear.
type Surface struct {
	dc   *gg.Context
	img  *image.RGBA
	cssW int
	cssH int
	dpr  float64

	base Matrix
	ctm  Matrix

	text *faceCache
}

func NewSurface(cssW, cssH int, dpr float64) *Surface {
	s := &Surface{text: newFaceCache()}
	s.Resize(cssW, cssH, dpr)
	return s
}

// Resize reallocates the backing store and re-establishes the DPR transform.
func (s *Surface) Resize(cssW, cssH int, dpr float64) {
	if dpr <= 0 || math.IsNaN(dpr) {
		dpr = 1
	}
	cssW = max(cssW, 1)
	cssH = max(cssH, 1)
	w := max(int(math.Round(float64(cssW)*dpr)), 1)
	h := max(int(math.Round(float64(cssH)*dpr)), 1)

	pm := gg.NewPixmap(w, h)
	s.cssW, s.cssH, s.dpr = cssW, cssH, dpr
	s.dc = gg.NewContext(w, h, gg.WithPixmap(pm))
	s.img = &image.RGBA{Pix: pm.Data(), Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
	s.base = Scale(dpr, dpr)
	s.setCTM(s.base)
}

func (s *Surface) Image() *image.RGBA    { return s.img }
func (s *Surface) CSSSize() (int, int)   { return s.cssW, s.cssH }
func (s *Surface) DPR() float64          { return s.dpr }
func (s *Surface) Transform() Matrix     { return s.ctm }
func (s *Surface) ResetTransform()       { s.setCTM(s.base) }
func (s *Surface) SetTransform(m Matrix) { s.setCTM(s.base.Multiply(m)) }

func (s *Surface) setCTM(m Matrix) {
	s.ctm = m
	s.dc.SetTransform(gg.Matrix{A: m.A, B: m.B, C: m.C, D: m.D, E: m.E, F: m.F})
}

func (s *Surface) Clear(c color.Color) {
	s.dc.ClearWithColor(ggColor(c))
}

// ggColor converts to gg's straight-alpha float colour.
func ggColor(c color.Color) gg.RGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return gg.RGBA{R: float64(n.R) / 255, G: float64(n.G) / 255, B: float64(n.B) / 255, A: float64(n.A) / 255}
}

// visible reports whether a device-space box touches the backing store.
func (s *Surface) visible(minX, minY, maxX, maxY float64) bool {
	b := s.img.Bounds()
	return maxX >= 0 && maxY >= 0 && minX <= float64(b.Dx()) && minY <= float64(b.Dy())
}

// lineWidth keeps a stroke at least one device pixel wide.
func (s *Surface) lineWidth(width float64) float64 {
	if scale := s.ctm.ScaleFactor(); scale > 0 {
		return math.Max(width, 1/scale)
	}
	return width
}

func (s *Surface) setColor(c color.Color) {
	g := ggColor(c)
	s.dc.SetRGBA(g.R, g.G, g.B, g.A)
}

func (s *Surface) fill(c color.Color) {
	s.setColor(c)
	if err := s.dc.Fill(); err != nil {
		s.dc.ClearPath()
	}
}

func (s *Surface) stroke(width float64, c color.Color) {
	s.setColor(c)
	s.dc.SetStroke(gg.RoundStroke().WithWidth(s.lineWidth(width)))
	if err := s.dc.Stroke(); err != nil {
		s.dc.ClearPath()
	}
}

// FillRect fills an axis-aligned box given in the current transform's space.
func (s *Surface) FillRect(x, y, w, h float64, c color.Color) {
	s.dc.DrawRectangle(x, y, w, h)
	s.fill(c)
}

// StrokePolyline strokes pts with round joins and caps. width is in the
// current transform's units.
func (s *Surface) StrokePolyline(pts []models.Point, width float64, closed bool, c color.Color) {
	if len(pts) == 0 || width <= 0 {
		return
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	single := true
	for _, p := range pts {
		d := s.ctm.TransformPoint(p)
		minX, minY = math.Min(minX, d.X), math.Min(minY, d.Y)
		maxX, maxY = math.Max(maxX, d.X), math.Max(maxY, d.Y)
		single = single && p == pts[0]
	}
	half := math.Max(width*s.ctm.ScaleFactor(), 1) / 2
	if !s.visible(minX-half, minY-half, maxX+half, maxY+half) {
		return
	}

	// A zero-length stroke has no direction for its caps; draw it as a dot.
	if single {
		s.dc.DrawCircle(pts[0].X, pts[0].Y, s.lineWidth(width)/2)
		s.fill(c)
		return
	}
	for i, p := range pts {
		if i == 0 {
			s.dc.MoveTo(p.X, p.Y)
			continue
		}
		s.dc.LineTo(p.X, p.Y)
	}
	if closed && len(pts) > 2 {
		s.dc.ClosePath()
	}
	s.stroke(width, c)
}

func (s *Surface) StrokeCircle(center models.Point, r, width float64, c color.Color) {
	scale := s.ctm.ScaleFactor()
	dev := s.ctm.TransformPoint(center)
	dr := r * scale
	half := math.Max(width*scale, 1) / 2
	if !s.visible(dev.X-dr-half, dev.Y-dr-half, dev.X+dr+half, dev.Y+dr+half) {
		return
	}
	if r <= 0 {
		s.dc.DrawCircle(center.X, center.Y, s.lineWidth(width)/2)
		s.fill(c)
		return
	}
	s.dc.DrawCircle(center.X, center.Y, r)
	s.stroke(width, c)
}

// DrawImage draws img scaled into the box (x, y, w, h) of the current
// transform's space.
func (s *Surface) DrawImage(img image.Image, x, y, w, h float64) {
	sb := img.Bounds()
	if sb.Empty() || w == 0 || h == 0 {
		return
	}
	place := Translate(x, y).Multiply(Scale(w/float64(sb.Dx()), h/float64(sb.Dy()))).Multiply(Translate(-float64(sb.Min.X), -float64(sb.Min.Y)))
	m := s.ctm.Multiply(place)

	a := m.TransformPoint(models.Point{X: float64(sb.Min.X), Y: float64(sb.Min.Y)})
	b := m.TransformPoint(models.Point{X: float64(sb.Max.X), Y: float64(sb.Max.Y)})
	if !s.visible(math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Max(a.X, b.X), math.Max(a.Y, b.Y)) {
		return
	}
	xdraw.ApproxBiLinear.Transform(s.img, m.aff3(), img, sb, xdraw.Over, nil)
}

// DrawText draws a single line with its top-left corner at (x, y).
func (s *Surface) DrawText(content string, x, y, size float64, c color.Color) {
	scale := s.ctm.ScaleFactor()
	px := size * scale
	if content == "" || px < 1 {
		return
	}
	face := s.text.face(px)
	if face == nil {
		return
	}
	origin := s.ctm.TransformPoint(models.Point{X: x, Y: y})
	drawString(s.img, face, content, origin, c)
}
