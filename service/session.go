package service

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zlnvch/whiteboard/apperr"
	"github.com/zlnvch/whiteboard/assets"
	"github.com/zlnvch/whiteboard/board"
	"github.com/zlnvch/whiteboard/models"
	"github.com/zlnvch/whiteboard/render"
	"github.com/zlnvch/whiteboard/tool"
	"github.com/zlnvch/whiteboard/viewport"
)

const (
	DefaultCanvasWidth  = 800
	DefaultCanvasHeight = 600
	maxCanvasSide       = 4096
	maxNameLength       = 100
)

var ErrExitInProgress = errors.New("exit already in progress")

// Dialog is the exit dialog. Busy is set while an exit pipeline runs and
// Error holds the message of the last failed attempt.
type Dialog struct {
	Open  bool   `json:"open"`
	Busy  bool   `json:"busy"`
	Error string `json:"error,omitempty"`
}

// SessionState is what the client needs besides the frame to draw its
// chrome: tool, dialog and the inline text editor.
type SessionState struct {
	BoardId    string          `json:"boardId"`
	Name       string          `json:"name"`
	Tool       tool.Tool       `json:"tool"`
	Mode       string          `json:"mode"`
	Viewport   models.Viewport `json:"viewport"`
	SelectedId string          `json:"selectedId,omitempty"`
	Elements   int             `json:"elements"`
	Dialog     Dialog          `json:"dialog"`
	Editing    bool            `json:"editing"`
	TextAnchor models.Point    `json:"textAnchor"`
}

type frameKey struct {
	store    uint64
	vp       uint64
	selected string
	width    int
	height   int
	dpr      float64
}

type draftKey struct {
	store uint64
	vp    uint64
	name  string
}

// Session is one open board. It is owned by a single goroutine (see Runner)
// and none of its methods are safe for concurrent use.
type Session struct {
	ownerId string
	roomId  string
	boardId string
	name    string

	store    *board.Store
	machine  *tool.Machine
	renderer *render.Renderer
	surface  *render.Surface
	grid     bool
	now      func() time.Time

	dialog    Dialog
	saved     SavedState
	closed    bool
	transient map[string]struct{}

	invalidated bool
	rendered    frameKey
	hasRendered bool
	drafted     draftKey
}

func NewSession(loaded LoadedBoard, renderer *render.Renderer, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	b := loaded.Board
	store := board.NewStore(b.Elements)
	rect := viewport.Rect{W: DefaultCanvasWidth, H: DefaultCanvasHeight}

	s := &Session{
		ownerId:   b.OwnerId,
		roomId:    b.RoomId,
		boardId:   b.Id,
		name:      b.Name,
		store:     store,
		renderer:  renderer,
		surface:   render.NewSurface(DefaultCanvasWidth, DefaultCanvasHeight, 1),
		grid:      opts.Grid,
		now:       opts.Now,
		saved:     loaded.Saved,
		transient: make(map[string]struct{}),
		machine: tool.NewMachine(store, b.Viewport, rect,
			tool.WithClock(opts.Now),
			tool.WithLimits(opts.ZoomLimits),
		),
	}
	for _, el := range b.Elements {
		if img, ok := el.(*models.Image); ok && assets.IsBlobURL(img.URL) {
			s.transient[img.URL] = struct{}{}
		}
	}
	s.drafted = s.draftKey()
	return s
}

func (s *Session) BoardId() string { return s.boardId }
func (s *Session) OwnerId() string { return s.ownerId }
func (s *Session) Closed() bool    { return s.closed }

func (s *Session) Store() *board.Store      { return s.store }
func (s *Session) Machine() *tool.Machine   { return s.machine }
func (s *Session) Surface() *render.Surface { return s.surface }

// Apply runs one input through the tool machine. Exit inputs go through
// BeginExit instead.
func (s *Session) Apply(in Input) error {
	if s.closed {
		return errors.New("session is closed")
	}

	switch in.Type {
	case InputPointerDown:
		s.machine.PointerDown(in.Pointer)
	case InputPointerMove:
		s.machine.PointerMove(in.Pointer)
	case InputPointerUp:
		s.machine.PointerUp(in.Pointer)
	case InputPointerCancel:
		s.machine.Cancel()
	case InputWheel:
		s.machine.Wheel(in.Wheel)
	case InputKey:
		if in.Key.Key == "Escape" && s.dialog.Busy {
			return nil
		}
		s.machine.Key(in.Key)
	case InputSetTool:
		if !s.machine.SetTool(in.Tool) {
			return apperr.NewValidation(fmt.Sprintf("unknown tool %q", in.Tool))
		}
	case InputSetStyle:
		s.setStyle(in.Style)
	case InputResize:
		return s.resize(in.Resize)
	case InputUpdateText:
		s.machine.UpdateText(in.Text)
	case InputCommitText:
		s.machine.CommitText(in.Text)
	case InputCancelText:
		s.machine.CancelText()
	case InputDropSticker:
		s.machine.DropSticker(in.Sticker.Client, in.Sticker.Content)
	case InputInsertImage:
		return s.insertImage(in.Image)
	case InputRename:
		return s.rename(in.Text)
	case InputDialog:
		if !in.Dialog && s.dialog.Busy {
			return nil
		}
		s.machine.SetDialogOpen(in.Dialog)
		if !in.Dialog {
			s.dialog.Error = ""
		}
	default:
		return apperr.NewValidation(fmt.Sprintf("unknown input %q", in.Type))
	}
	return nil
}

func (s *Session) setStyle(style tool.Style) {
	current := s.machine.Style()
	if style.Color != "" {
		current.Color = style.Color
	}
	if style.Width > 0 {
		current.Width = style.Width
	}
	if style.FontSize > 0 {
		current.FontSize = style.FontSize
	}
	s.machine.SetStyle(current)
}

func (s *Session) resize(r Resize) error {
	if r.Width <= 0 || r.Height <= 0 || r.Width > maxCanvasSide || r.Height > maxCanvasSide {
		return apperr.NewValidation(fmt.Sprintf("invalid canvas size %dx%d", r.Width, r.Height))
	}
	dpr := r.DPR
	if dpr <= 0 {
		dpr = 1
	}
	dpr = min(max(dpr, 0.5), 4)
	s.machine.SetRect(viewport.Rect{X: r.X, Y: r.Y, W: float64(r.Width), H: float64(r.Height)})
	s.surface.Resize(r.Width, r.Height, dpr)
	return nil
}

func (s *Session) insertImage(img ImageInsert) error {
	if img.URL == "" || img.W <= 0 || img.H <= 0 {
		return apperr.NewValidation("image needs a url and a size")
	}
	if _, ok := s.machine.PlaceImage(img.URL, img.W, img.H); !ok {
		return errors.New("image could not be placed")
	}
	if assets.IsBlobURL(img.URL) {
		s.transient[img.URL] = struct{}{}
	}
	return nil
}

func (s *Session) rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return apperr.NewValidation(fmt.Sprintf("name must be 1 to %d characters", maxNameLength))
	}
	s.name = name
	return nil
}

// Sweep drops laser strokes that have outlived their TTL.
func (s *Session) Sweep() []string {
	return s.store.SweepEphemeral(s.now(), board.EphemeralTTL)
}

// Board returns a persistable copy of the current board.
func (s *Session) Board() models.Board {
	return models.Board{
		Id:       s.boardId,
		Name:     s.name,
		OwnerId:  s.ownerId,
		RoomId:   s.roomId,
		Elements: s.store.Snapshot().Persistable(),
		Viewport: s.machine.Viewport(),
	}
}

func (s *Session) draftKey() draftKey {
	return draftKey{store: s.store.Version(), vp: s.machine.ViewportVersion(), name: s.name}
}

// DraftPending reports whether anything a draft holds changed since the
// last TakeDraft.
func (s *Session) DraftPending() bool {
	return s.draftKey() != s.drafted
}

func (s *Session) TakeDraft() models.Draft {
	s.drafted = s.draftKey()
	return models.DraftFromBoard(s.Board(), s.now().UnixMilli())
}

// Invalidate forces the next RenderIfDirty to draw, e.g. after an image
// finished decoding.
func (s *Session) Invalidate() {
	s.invalidated = true
}

func (s *Session) frameKey() frameKey {
	w, h := s.surface.CSSSize()
	return frameKey{
		store:    s.store.Version(),
		vp:       s.machine.ViewportVersion(),
		selected: s.machine.SelectedId(),
		width:    w,
		height:   h,
		dpr:      s.surface.DPR(),
	}
}

// RenderIfDirty redraws the surface when the store, viewport, selection or
// canvas size changed since the last frame.
func (s *Session) RenderIfDirty() (*image.RGBA, bool) {
	key := s.frameKey()
	if s.hasRendered && !s.invalidated && key == s.rendered {
		return nil, false
	}
	s.renderer.Render(s.surface, render.Scene{
		Elements:   s.store.Snapshot(),
		Viewport:   s.machine.Viewport(),
		SelectedId: s.machine.SelectedId(),
		Grid:       s.grid,
	})
	s.rendered = key
	s.hasRendered = true
	s.invalidated = false
	return s.surface.Image(), true
}

func (s *Session) Dialog() Dialog {
	d := s.dialog
	d.Open = s.machine.DialogOpen()
	return d
}

func (s *Session) State() SessionState {
	st := s.machine.State()
	d := s.Dialog()
	state := SessionState{
		BoardId:    s.boardId,
		Name:       s.name,
		Tool:       s.machine.Tool(),
		Mode:       st.Mode.String(),
		Viewport:   s.machine.Viewport(),
		SelectedId: s.machine.SelectedId(),
		Elements:   s.store.Len(),
		Dialog:     d,
	}
	if st.Mode == tool.ModeEditingText {
		state.Editing = true
		state.TextAnchor = viewport.ClientFromWorld(st.TextAnchor, s.machine.Rect(), s.machine.Viewport())
	}
	return state
}

// BeginExit marks the dialog busy and returns the job for the pipeline.
func (s *Session) BeginExit(req ExitRequest) (ExitJob, error) {
	if s.closed {
		return ExitJob{}, errors.New("session is closed")
	}
	if s.dialog.Busy {
		return ExitJob{}, ErrExitInProgress
	}
	if !req.Mode.Valid() {
		return ExitJob{}, apperr.NewValidation(fmt.Sprintf("unknown exit mode %q", req.Mode))
	}
	if req.Name != "" {
		if err := s.rename(req.Name); err != nil {
			return ExitJob{}, err
		}
	}

	s.machine.SetDialogOpen(true)
	s.dialog.Busy = true
	s.dialog.Error = ""
	return ExitJob{
		Mode:     req.Mode,
		Board:    s.Board(),
		Saved:    s.saved,
		Renderer: s.renderer,
	}, nil
}

// FinishExit applies the pipeline outcome. A failure keeps the session
// open with the error shown in the dialog; success closes it.
func (s *Session) FinishExit(out ExitOutcome) {
	s.dialog.Busy = false
	if out.Written {
		s.saved = out.Saved
		s.ApplyRewrites(out.Rewrites)
	}
	if out.Err != nil {
		s.dialog.Error = apperr.UserMessage(out.Err)
		return
	}
	s.closed = true
	s.machine.SetDialogOpen(false)
}

// ApplyRewrites points images at their uploaded copies. The decoded image
// is carried over so the durable URL is not fetched again.
func (s *Session) ApplyRewrites(rewrites map[string]string) {
	if len(rewrites) == 0 {
		return
	}
	for _, el := range s.store.Snapshot() {
		img, ok := el.(*models.Image)
		if !ok {
			continue
		}
		durable, ok := rewrites[img.URL]
		if !ok {
			continue
		}
		from := img.URL
		s.renderer.Images().Alias(durable, from)
		s.store.Mutate(img.Id, func(el models.Element) {
			el.(*models.Image).URL = durable
		})
	}
}

// TransientURLs lists the blob references this session has used.
func (s *Session) TransientURLs() []string {
	urls := make([]string, 0, len(s.transient))
	for url := range s.transient {
		urls = append(urls, url)
	}
	return urls
}
