package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/zlnvch/whiteboard/apperr"
	"github.com/zlnvch/whiteboard/board"
	"github.com/zlnvch/whiteboard/models"
	"github.com/zlnvch/whiteboard/render"
)

const (
	NoticeState        = "state"
	NoticeExitResponse = "exit_response"
	NoticeError        = "error"
)

// Frame is one rendered PNG of the session's surface.
type Frame struct {
	Seq uint64
	PNG []byte
}

// Notice is a JSON message for the client.
type Notice struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type ExitResponse struct {
	Success   bool              `json:"success"`
	Result    models.ExitResult `json:"result"`
	Error     string            `json:"error,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

type ErrorNotice struct {
	Input   InputType `json:"input"`
	Message string    `json:"message"`
}

// Runner owns a Session and is the only goroutine that touches it. Inputs,
// the laser sweep, frame ticks, decode completions, autosave and exit
// completions are all handled in one select loop, so each transition
// finishes before the next begins.
type Runner struct {
	svc     *Service
	session *Session
	images  *render.ImageCache
	cancel  context.CancelFunc
	tracked bool

	inputs   chan Input
	frames   chan Frame
	notices  chan Notice
	exitDone chan ExitOutcome
	done     chan struct{}

	ctx       context.Context
	seq       uint64
	lastState SessionState
	seen      draftKey
}

// StartSession opens the board and returns a runner for it. The caller must
// start it with Run; WaitSessions counts it until Run returns.
func (s *Service) StartSession(ctx context.Context, p OpenParams) (*Runner, error) {
	sessionCtx, cancel := context.WithCancel(ctx)
	loaded, err := s.OpenBoard(sessionCtx, p)
	if err != nil {
		cancel()
		return nil, err
	}

	images := s.newImageCache(sessionCtx)
	session := NewSession(loaded, render.NewRenderer(images), s.Options)
	r := NewRunner(s, session, images)
	r.cancel = cancel
	r.tracked = true
	s.sessions.Add(1)
	log.Printf("Opened board %s for %s (draft: %v, elements: %d)", loaded.Board.Id, p.OwnerId, loaded.FromDraft, len(loaded.Board.Elements))
	return r, nil
}

func NewRunner(svc *Service, session *Session, images *render.ImageCache) *Runner {
	return &Runner{
		svc:      svc,
		session:  session,
		images:   images,
		inputs:   make(chan Input, 256),
		frames:   make(chan Frame, 1),
		notices:  make(chan Notice, 64),
		exitDone: make(chan ExitOutcome, 1),
		done:     make(chan struct{}),
	}
}

func (r *Runner) BoardId() string { return r.session.BoardId() }

func (r *Runner) Frames() <-chan Frame   { return r.frames }
func (r *Runner) Notices() <-chan Notice { return r.notices }
func (r *Runner) Done() <-chan struct{}  { return r.done }

// Post queues an input. It returns false once the runner has stopped.
func (r *Runner) Post(in Input) bool {
	select {
	case r.inputs <- in:
		return true
	case <-r.done:
		return false
	}
}

// Run processes the session until ctx is cancelled or an exit succeeds.
// Frames and Notices are closed when it returns.
func (r *Runner) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.ctx = ctx
	defer func() {
		cancel()
		if r.cancel != nil {
			r.cancel()
		}
		close(r.frames)
		close(r.notices)
		close(r.done)
		if r.tracked {
			r.svc.sessions.Done()
		}
	}()

	sweep := time.NewTicker(board.SweepInterval)
	defer sweep.Stop()
	frame := time.NewTicker(r.svc.Options.FrameInterval)
	defer frame.Stop()
	debounce := time.NewTimer(r.svc.Options.AutosaveDebounce)
	debounce.Stop()
	defer debounce.Stop()

	r.seen = r.session.draftKey()
	r.renderFrame()
	r.publishState()

	for {
		select {
		case in := <-r.inputs:
			r.handle(in)

		case <-sweep.C:
			r.session.Sweep()

		case <-frame.C:
			r.renderFrame()

		case <-r.images.Done():
			r.session.Invalidate()

		case out := <-r.exitDone:
			r.finishExit(out)
			if r.session.Closed() {
				return
			}

		case <-debounce.C:
			if !r.session.DraftPending() {
				break
			}
			// Hold autosave while an exit runs; a discard or save would
			// otherwise race the draft it is about to delete.
			if r.session.Dialog().Busy {
				debounce.Reset(r.svc.Options.AutosaveDebounce)
				break
			}
			r.svc.DraftWriter.Submit(r.session.OwnerId(), r.session.TakeDraft())

		case <-ctx.Done():
			r.teardown()
			return
		}

		// A new mutation restarts the autosave window.
		if key := r.session.draftKey(); key != r.seen {
			r.seen = key
			debounce.Reset(r.svc.Options.AutosaveDebounce)
		}
		r.publishState()
	}
}

func (r *Runner) handle(in Input) {
	if in.Type == InputExit {
		r.beginExit(in.Exit)
		return
	}
	if err := r.session.Apply(in); err != nil {
		log.Printf("Rejected %s input on board %s: %v", in.Type, r.session.BoardId(), err)
		r.notify(Notice{Type: NoticeError, Data: ErrorNotice{Input: in.Type, Message: apperr.UserMessage(err)}})
	}
}

func (r *Runner) beginExit(req ExitRequest) {
	job, err := r.session.BeginExit(req)
	if err != nil {
		if errors.Is(err, ErrExitInProgress) {
			return
		}
		r.notify(Notice{Type: NoticeExitResponse, Data: ExitResponse{
			Success: false,
			Result:  models.ExitResult{Mode: req.Mode},
			Error:   apperr.UserMessage(err),
		}})
		return
	}

	ctx := r.ctx
	go func() {
		r.exitDone <- r.svc.Exit(ctx, job)
	}()
}

func (r *Runner) finishExit(out ExitOutcome) {
	r.session.FinishExit(out)
	if out.Err != nil {
		log.Printf("Exit failed for board %s: %v", r.session.BoardId(), out.Err)
		r.notify(Notice{Type: NoticeExitResponse, Data: ExitResponse{
			Success:   false,
			Result:    out.Result,
			Error:     r.session.Dialog().Error,
			Retryable: apperr.Retryable(out.Err),
		}})
		return
	}

	if r.svc.Blobs != nil {
		for _, url := range r.session.TransientURLs() {
			r.svc.Blobs.Release(url)
		}
	}
	r.publishState()
	r.notify(Notice{Type: NoticeExitResponse, Data: ExitResponse{Success: true, Result: out.Result}})
}

// teardown force-flushes a pending draft so nothing typed in the last
// debounce window is lost.
func (r *Runner) teardown() {
	if r.session.Closed() || !r.session.DraftPending() {
		return
	}
	draft := r.session.TakeDraft()
	r.svc.DraftWriter.Submit(r.session.OwnerId(), draft)

	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := r.svc.DraftWriter.Flush(ctx, draft.Id); err != nil {
		log.Printf("Failed to flush draft %s on close: %v", draft.Id, err)
	}
}

func (r *Runner) renderFrame() {
	img, ok := r.session.RenderIfDirty()
	if !ok {
		return
	}
	pngBytes, err := render.EncodePNG(img, true)
	if err != nil {
		log.Printf("Failed to encode frame for board %s: %v", r.session.BoardId(), err)
		return
	}
	r.seq++
	f := Frame{Seq: r.seq, PNG: pngBytes}

	// Only the newest frame matters; replace one the client hasn't taken.
	select {
	case r.frames <- f:
	default:
		select {
		case <-r.frames:
		default:
		}
		r.frames <- f
	}
}

func (r *Runner) publishState() {
	state := r.session.State()
	if state == r.lastState {
		return
	}
	r.lastState = state
	r.notify(Notice{Type: NoticeState, Data: state})
}

func (r *Runner) notify(n Notice) {
	select {
	case r.notices <- n:
	case <-r.ctx.Done():
	}
}
