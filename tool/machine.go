// Package tool interprets pointer, wheel and keyboard input against the
// active tool and turns it into element store and viewport mutations.
//
// A Machine is driven from a single goroutine. Each handler completes its
// transition before returning.
package tool

import (
	"math"
	"strings"
	"time"

	"github.com/zlnvch/whiteboard/board"
	"github.com/zlnvch/whiteboard/models"
	"github.com/zlnvch/whiteboard/viewport"
)

type Machine struct {
	store  *board.Store
	rect   viewport.Rect
	vp     models.Viewport
	limits viewport.Limits

	tool  Tool
	style Style
	state State

	selectedId string
	dialogOpen bool
	vpVersion  uint64

	hitBuffer float64
	now       func() time.Time
	newId     func() string
}

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func WithIdGenerator(newId func() string) Option {
	return func(m *Machine) { m.newId = newId }
}

func WithLimits(limits viewport.Limits) Option {
	return func(m *Machine) { m.limits = limits }
}

func WithHitBuffer(px float64) Option {
	return func(m *Machine) { m.hitBuffer = px }
}

func NewMachine(store *board.Store, vp models.Viewport, rect viewport.Rect, opts ...Option) *Machine {
	m := &Machine{
		store:     store,
		rect:      rect,
		limits:    viewport.DefaultLimits,
		tool:      ToolPen,
		style:     DefaultStyle,
		hitBuffer: board.DefaultHitBuffer,
		now:       time.Now,
		newId:     models.NewId,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.vp = viewport.Normalize(vp, m.limits)
	return m
}

func (m *Machine) State() State              { return m.state }
func (m *Machine) Tool() Tool                { return m.tool }
func (m *Machine) Style() Style              { return m.style }
func (m *Machine) Viewport() models.Viewport { return m.vp }
func (m *Machine) Rect() viewport.Rect       { return m.rect }
func (m *Machine) SelectedId() string        { return m.selectedId }
func (m *Machine) DialogOpen() bool          { return m.dialogOpen }
func (m *Machine) ViewportVersion() uint64   { return m.vpVersion }
func (m *Machine) Limits() viewport.Limits   { return m.limits }
func (m *Machine) SetStyle(style Style)      { m.style = style }
func (m *Machine) SetDialogOpen(open bool)   { m.dialogOpen = open }
func (m *Machine) SetRect(rect viewport.Rect) {
	m.rect = rect
	m.vpVersion++
}

// SetTool switches the active tool. Selection only survives on the select tool.
func (m *Machine) SetTool(t Tool) bool {
	if !t.Valid() {
		return false
	}
	m.tool = t
	if t != ToolSelect {
		m.selectedId = ""
	}
	return true
}

func (m *Machine) setViewport(vp models.Viewport) {
	if vp != m.vp {
		m.vp = vp
		m.vpVersion++
	}
}

func (m *Machine) world(client models.Point) models.Point {
	return viewport.WorldFromClient(client, m.rect, m.vp)
}

func (m *Machine) capture(ev PointerEvent) {
	m.state.Captured = true
	m.state.PointerId = ev.PointerId
	m.state.StartClient = ev.Client
}

// PointerDown dispatches on the active tool. It is ignored while another
// pointer holds capture or while a text draft is open.
func (m *Machine) PointerDown(ev PointerEvent) {
	if m.state.Captured || m.state.Mode == ModeEditingText {
		return
	}

	if m.tool == ToolPan || ev.Button != ButtonPrimary {
		m.startPanning(ev)
		return
	}

	at := m.world(ev.Client)
	switch m.tool {
	case ToolSelect:
		buffer := m.hitBuffer / m.vp.Zoom
		if el, ok := m.store.HitTest(at, buffer); ok {
			m.selectedId = el.Meta().Id
			m.state = State{
				Mode:          ModeMovingElement,
				ActiveId:      m.selectedId,
				StartWorld:    at,
				InitialAnchor: board.Anchor(el),
			}
			m.capture(ev)
			return
		}
		m.selectedId = ""
		m.startPanning(ev)

	case ToolPen, ToolLaser, ToolRect, ToolCircle, ToolArrow:
		el := m.seed(at)
		if err := m.store.Append(el); err != nil {
			return
		}
		m.state = State{Mode: ModeDrawing, ActiveId: el.Meta().Id, StartWorld: at}
		m.capture(ev)

	case ToolText:
		m.state = State{Mode: ModeEditingText, TextAnchor: at}
	}
}

func (m *Machine) startPanning(ev PointerEvent) {
	m.state = State{Mode: ModePanning, StartPan: m.vp}
	m.capture(ev)
}

// seed creates a zero-size element of the active drawing tool at p.
func (m *Machine) seed(p models.Point) models.Element {
	meta := models.ElementMeta{Id: m.newId(), CreatedAt: m.now().UnixMilli()}
	switch m.tool {
	case ToolLaser:
		return &models.Path{ElementMeta: meta, Points: []models.Point{p}, Color: LaserColor, Width: LaserWidth, Ephemeral: true}
	case ToolRect:
		return &models.Rect{ElementMeta: meta, X: p.X, Y: p.Y, Color: m.style.Color, Width: m.style.Width}
	case ToolCircle:
		return &models.Circle{ElementMeta: meta, X: p.X, Y: p.Y, Color: m.style.Color, Width: m.style.Width}
	case ToolArrow:
		return &models.Arrow{ElementMeta: meta, X1: p.X, Y1: p.Y, X2: p.X, Y2: p.Y, Color: m.style.Color, Width: m.style.Width}
	default:
		return &models.Path{ElementMeta: meta, Points: []models.Point{p}, Color: m.style.Color, Width: m.style.Width}
	}
}

func (m *Machine) owns(ev PointerEvent) bool {
	return m.state.Captured && ev.PointerId == m.state.PointerId
}

func (m *Machine) PointerMove(ev PointerEvent) {
	if !m.owns(ev) {
		return
	}

	switch m.state.Mode {
	case ModePanning:
		m.setViewport(viewport.Pan(m.state.StartPan, m.state.StartClient, ev.Client))

	case ModeDrawing:
		at := m.world(ev.Client)
		start := m.state.StartWorld
		m.store.Mutate(m.state.ActiveId, func(el models.Element) {
			switch e := el.(type) {
			case *models.Path:
				e.Points = append(e.Points, at)
			case *models.Rect:
				e.W = at.X - start.X
				e.H = at.Y - start.Y
			case *models.Circle:
				e.R = math.Hypot(at.X-start.X, at.Y-start.Y)
			case *models.Arrow:
				e.X2 = at.X
				e.Y2 = at.Y
			}
		})

	case ModeMovingElement:
		target := models.Point{
			X: m.state.InitialAnchor.X + (ev.Client.X-m.state.StartClient.X)/m.vp.Zoom,
			Y: m.state.InitialAnchor.Y + (ev.Client.Y-m.state.StartClient.Y)/m.vp.Zoom,
		}
		m.store.Mutate(m.state.ActiveId, func(el models.Element) {
			board.MoveAnchorTo(el, target)
		})
	}
}

// PointerUp releases capture and returns to Idle.
func (m *Machine) PointerUp(ev PointerEvent) {
	if !m.owns(ev) {
		return
	}
	m.state = State{}
}

// Cancel drops pointer capture, e.g. on pointercancel or lost capture.
func (m *Machine) Cancel() {
	if m.state.Captured {
		m.state = State{}
	}
}

func (m *Machine) Wheel(ev WheelEvent) {
	m.setViewport(viewport.ZoomAt(m.vp, m.rect, ev.Client, ev.DeltaY, m.limits))
}

// Key handles keyboard shortcuts. Escape toggles the exit dialog and leaves
// any in-progress interaction alone.
func (m *Machine) Key(ev KeyEvent) {
	if ev.Key == "Escape" {
		m.dialogOpen = !m.dialogOpen
	}
}

func (m *Machine) UpdateText(draft string) {
	if m.state.Mode == ModeEditingText {
		m.state.DraftText = draft
	}
}

// CommitText closes the text draft. Non-blank text becomes a Text element.
func (m *Machine) CommitText(content string) (models.Element, bool) {
	if m.state.Mode != ModeEditingText {
		return nil, false
	}
	anchor := m.state.TextAnchor
	m.state = State{}

	if strings.TrimSpace(content) == "" {
		return nil, false
	}
	el := &models.Text{
		ElementMeta: models.ElementMeta{Id: m.newId(), CreatedAt: m.now().UnixMilli()},
		X:           anchor.X,
		Y:           anchor.Y,
		Content:     content,
		FontSize:    m.style.FontSize,
		Color:       m.style.Color,
	}
	if err := m.store.Append(el); err != nil {
		return nil, false
	}
	return el, true
}

func (m *Machine) CancelText() {
	if m.state.Mode == ModeEditingText {
		m.state = State{}
	}
}

// DropSticker inserts a text payload at the drop point with fixed styling.
func (m *Machine) DropSticker(client models.Point, content string) (models.Element, bool) {
	if strings.TrimSpace(content) == "" {
		return nil, false
	}
	at := m.world(client)
	el := &models.Text{
		ElementMeta: models.ElementMeta{Id: m.newId(), CreatedAt: m.now().UnixMilli()},
		X:           at.X,
		Y:           at.Y,
		Content:     content,
		FontSize:    StickerFontSize,
		Color:       StickerColor,
	}
	if err := m.store.Append(el); err != nil {
		return nil, false
	}
	return el, true
}

// PlaceImage inserts an image of the given world size centred in the
// visible area.
func (m *Machine) PlaceImage(url string, w, h float64) (models.Element, bool) {
	visible := viewport.VisibleWorld(m.rect, m.vp)
	el := &models.Image{
		ElementMeta: models.ElementMeta{Id: m.newId(), CreatedAt: m.now().UnixMilli()},
		X:           visible.X + (visible.W-w)/2,
		Y:           visible.Y + (visible.H-h)/2,
		W:           w,
		H:           h,
		URL:         url,
	}
	if err := m.store.Append(el); err != nil {
		return nil, false
	}
	return el, true
}
