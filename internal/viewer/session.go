// Package viewer implements the document viewer session: a lazily rendered,
// continuously scrollable multi-page surface with zoom and location-jump
// support over a decoded document handle.
package viewer

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"
	"time"

	"contract-lens/internal/domain"
	"contract-lens/internal/render"
)

type pageEntry struct {
	number  int
	state   domain.PageState
	visible bool
	width   float64 // resolved at the current scale, 0 while unknown
	height  float64
	pixels  image.Image
	task    *render.Task
	handle  domain.PageHandle
}

// Session owns one decoded document at a time together with the viewer
// state machine: Idle -> Loading -> {Ready, Error}. Ready is re-enterable;
// loading a new document discards all prior page state. Error is terminal
// until the next Load.
type Session struct {
	engine   domain.DecodeEngine
	renderer *render.Renderer
	bus      *Bus
	logger   domain.Logger

	// loadMu serializes whole Load calls; mu guards everything below.
	loadMu sync.Mutex
	mu     sync.Mutex

	// epoch increments whenever the document handle is replaced. Render
	// completions carry the epoch they were started under; a stale epoch
	// means the output belongs to a discarded document and is dropped.
	epoch   int
	handle  domain.DocumentHandle
	state   domain.ViewerState
	pages   []*pageEntry
	viewTop float64
	viewH   float64
}

// NewSession creates an idle viewer session.
func NewSession(engine domain.DecodeEngine, logger domain.Logger, renderTimeout time.Duration) *Session {
	return &Session{
		engine:   engine,
		renderer: render.NewRenderer(logger, renderTimeout),
		bus:      NewBus(),
		logger:   logger,
		state: domain.ViewerState{
			Scale:     domain.FitScale,
			LoadState: domain.LoadIdle,
			ErrorKind: domain.DecodeErrorNone,
		},
	}
}

// Events returns the session's event bus.
func (s *Session) Events() *Bus {
	return s.bus
}

// Load decodes a new document, replacing any previous one. All in-flight
// renders for the old document are cancelled first and can never commit
// afterwards. Plain images become a single static page with no pagination.
func (s *Session) Load(data []byte, mimeType string) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	s.renderer.CancelAll()
	old := s.handle
	s.handle = nil
	s.pages = nil
	s.epoch++
	epoch := s.epoch
	s.state = domain.ViewerState{
		Scale:     domain.FitScale,
		LoadState: domain.LoadLoading,
		ErrorKind: domain.DecodeErrorNone,
	}
	s.publishLocked(Event{Type: EventStateChanged, State: s.state})
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	// Decode outside the lock; it may take arbitrary time.
	var handle domain.DocumentHandle
	var err error
	if isPDF(mimeType) {
		handle, err = s.engine.Load(data)
	} else {
		handle, err = s.engine.LoadImage(data, mimeType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		// The session was closed while decoding.
		if handle != nil {
			_ = handle.Close()
		}
		return domain.ErrSessionNotFound
	}

	if err != nil {
		s.state.LoadState = domain.LoadError
		s.state.ErrorKind = domain.DecodeKindOf(err)
		s.publishLocked(Event{Type: EventStateChanged, State: s.state, Error: err.Error()})
		return err
	}

	n := handle.PageCount()
	s.handle = handle
	s.state = domain.ViewerState{
		Scale:     domain.FitScale,
		NumPages:  n,
		LoadState: domain.LoadReady,
		ErrorKind: domain.DecodeErrorNone,
	}
	s.pages = make([]*pageEntry, n)
	for i := range s.pages {
		s.pages[i] = &pageEntry{number: i + 1, state: domain.PagePending}
	}
	s.publishLocked(Event{Type: EventStateChanged, State: s.state})
	return nil
}

// Zoom adjusts the scale by delta, clamped to [MinScale, MaxScale]. A scale
// change invalidates all resolved page pixels; visible pages re-render at
// the new scale. Returns the resulting scale.
func (s *Session) Zoom(delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.LoadState != domain.LoadReady {
		return s.state.Scale, domain.ErrNoDocumentLoaded
	}

	old := s.state.Scale
	next := clampScale(old + delta)
	if next == old {
		return next, nil
	}

	ratio := next / old
	s.state.Scale = next
	s.renderer.CancelAll()
	for _, e := range s.pages {
		// Resolved dimensions scale linearly; rescaling them keeps the
		// layout stable until the re-render lands.
		if e.height > 0 {
			e.height *= ratio
			e.width *= ratio
		}
		e.pixels = nil
		e.task = nil
		if e.state != domain.PagePending {
			e.state = domain.PagePending
		}
	}
	// EstimatedPageHeight is set once per document handle and stays as
	// recorded.

	s.publishLocked(Event{Type: EventStateChanged, State: s.state})
	s.scheduleVisibleLocked()
	return next, nil
}

// UpdateViewport reports the client's scroll position. Pages whose regions
// come within ProximityMargin of the viewport are revealed and start
// rendering; revealed pages never revert to hidden.
func (s *Session) UpdateViewport(offsetY, height float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.LoadState != domain.LoadReady {
		return domain.ErrNoDocumentLoaded
	}

	s.viewTop = offsetY
	s.viewH = height

	heights := s.heightsLocked()
	offsets := layoutOffsets(heights)
	for i, e := range s.pages {
		if !e.visible && withinMargin(offsets[i], heights[i], offsetY, height, domain.ProximityMargin) {
			e.visible = true
			s.publishLocked(Event{Type: EventPageVisible, State: s.state, Page: e.number})
		}
	}
	s.scheduleVisibleLocked()
	return nil
}

// Jump resolves a citation reference to a scroll target. Page references
// outside [1, NumPages] and anchors that match nothing are silently ignored
// (citations are model-generated and may not resolve). Jump is idempotent:
// the same reference always resolves to the same target page.
func (s *Session) Jump(ref string) *domain.ScrollTarget {
	loc := ParseLocation(ref)

	s.mu.Lock()
	defer s.mu.Unlock()

	if loc.Page > 0 {
		if s.state.LoadState != domain.LoadReady || loc.Page > s.state.NumPages {
			return nil
		}
		e := s.pages[loc.Page-1]
		if !e.visible {
			e.visible = true
			s.publishLocked(Event{Type: EventPageVisible, State: s.state, Page: e.number})
		}
		s.scheduleVisibleLocked()

		offsets := layoutOffsets(s.heightsLocked())
		target := &domain.ScrollTarget{Page: loc.Page, OffsetY: offsets[loc.Page-1]}
		s.publishLocked(Event{Type: EventJumpResolved, State: s.state, Page: loc.Page, Target: target})
		return target
	}

	// Anchor keys belong to non-paginated content rendered outside the
	// paged viewer; nothing registers them here, so they fall through to
	// the no-op path.
	return nil
}

// State returns the current viewer state and one placeholder per page,
// labeled with its 1-based number and sized so the total scroll height stays
// stable while pages load.
func (s *Session) State() (domain.ViewerState, []domain.PagePlaceholder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := make([]domain.PagePlaceholder, len(s.pages))
	for i, e := range s.pages {
		placeholders[i] = domain.PagePlaceholder{
			Number:  e.number,
			State:   e.state,
			Height:  placeholderHeight(e.height, s.state.EstimatedPageHeight, domain.FallbackPageHeight),
			Width:   e.width,
			Visible: e.visible,
		}
	}
	return s.state, placeholders
}

// PageImage returns the rendered pixels for a page, rendering on demand if
// needed. Requesting a page implies demand for it, so it is revealed like a
// scrolled-to page would be.
func (s *Session) PageImage(ctx context.Context, pageNum int) (image.Image, error) {
	s.mu.Lock()
	if s.state.LoadState != domain.LoadReady {
		s.mu.Unlock()
		return nil, domain.ErrNoDocumentLoaded
	}
	if pageNum < 1 || pageNum > len(s.pages) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: page %d of %d", domain.ErrPageOutOfRange, pageNum, len(s.pages))
	}

	e := s.pages[pageNum-1]
	if e.state == domain.PageRendered && e.pixels != nil {
		img := e.pixels
		s.mu.Unlock()
		return img, nil
	}

	if !e.visible {
		e.visible = true
		s.publishLocked(Event{Type: EventPageVisible, State: s.state, Page: e.number})
	}
	if e.state == domain.PageFailed {
		e.state = domain.PagePending
	}
	if e.task == nil {
		s.startRenderLocked(e)
	}
	task := e.task
	s.mu.Unlock()

	if task == nil {
		return nil, fmt.Errorf("page %d failed to render", pageNum)
	}

	select {
	case <-task.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.state == domain.PageRendered && e.pixels != nil {
		return e.pixels, nil
	}
	return nil, fmt.Errorf("page %d failed to render", pageNum)
}

// RetryPage puts a failed page back into the render queue.
func (s *Session) RetryPage(pageNum int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.LoadState != domain.LoadReady {
		return domain.ErrNoDocumentLoaded
	}
	if pageNum < 1 || pageNum > len(s.pages) {
		return fmt.Errorf("%w: page %d of %d", domain.ErrPageOutOfRange, pageNum, len(s.pages))
	}

	e := s.pages[pageNum-1]
	if e.state != domain.PageFailed {
		return nil
	}
	e.state = domain.PagePending
	e.visible = true
	s.startRenderLocked(e)
	return nil
}

// Close releases the document handle and cancels all in-flight work. The
// session cannot be reused afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	s.renderer.CancelAll()
	handle := s.handle
	s.handle = nil
	s.pages = nil
	s.epoch++
	s.state = domain.ViewerState{
		Scale:     domain.FitScale,
		LoadState: domain.LoadIdle,
		ErrorKind: domain.DecodeErrorNone,
	}
	s.mu.Unlock()

	_ = s.bus.Close()
	if handle != nil {
		return handle.Close()
	}
	return nil
}

// heightsLocked returns the placeholder height for every page. Caller holds mu.
func (s *Session) heightsLocked() []float64 {
	heights := make([]float64, len(s.pages))
	for i, e := range s.pages {
		heights[i] = placeholderHeight(e.height, s.state.EstimatedPageHeight, domain.FallbackPageHeight)
	}
	return heights
}

// scheduleVisibleLocked starts renders for revealed pages that have no
// pixels and no task in flight. Caller holds mu.
func (s *Session) scheduleVisibleLocked() {
	for _, e := range s.pages {
		if e.visible && e.state == domain.PagePending && e.task == nil {
			s.startRenderLocked(e)
		}
	}
}

// startRenderLocked kicks off a render task for one page. Caller holds mu.
func (s *Session) startRenderLocked(e *pageEntry) {
	if s.handle == nil {
		return
	}
	if e.handle == nil {
		ph, err := s.handle.Page(e.number)
		if err != nil {
			s.logger.Error("Failed to open page", err, "page", e.number)
			e.state = domain.PageFailed
			s.publishLocked(Event{Type: EventPageFailed, State: s.state, Page: e.number, Error: err.Error()})
			return
		}
		e.handle = ph
	}

	epoch := s.epoch
	scale := s.state.Scale
	e.task = s.renderer.Start(e.handle, scale,
		func(res render.Result) { s.commitRender(epoch, res) },
		func(page int, err error) { s.failRender(epoch, scale, page, err) },
	)
}

// commitRender records a completed paint. Results from a discarded document
// epoch or a stale scale are dropped: only the currently live task's output
// may commit pixels.
func (s *Session) commitRender(epoch int, res render.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || res.Scale != s.state.Scale || res.Page > len(s.pages) {
		return
	}

	e := s.pages[res.Page-1]
	e.state = domain.PageRendered
	e.pixels = res.Pixels
	e.width = res.Width
	e.height = res.Height
	e.task = nil

	// First resolved height becomes the document-wide placeholder
	// estimate; it is never overwritten afterwards.
	if s.state.EstimatedPageHeight == 0 {
		s.state.EstimatedPageHeight = res.Height
	}

	s.publishLocked(Event{Type: EventPageRendered, State: s.state, Page: res.Page})
}

func (s *Session) failRender(epoch int, scale float64, page int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || scale != s.state.Scale || page > len(s.pages) {
		return
	}

	e := s.pages[page-1]
	e.state = domain.PageFailed
	e.task = nil
	s.publishLocked(Event{Type: EventPageFailed, State: s.state, Page: page, Error: err.Error()})
}

func (s *Session) publishLocked(ev Event) {
	// Publish never blocks, so holding mu here cannot stall the session.
	s.bus.Publish(ev)
}

func clampScale(scale float64) float64 {
	return math.Max(domain.MinScale, math.Min(domain.MaxScale, scale))
}

func isPDF(mimeType string) bool {
	return strings.Contains(strings.ToLower(mimeType), "pdf")
}
