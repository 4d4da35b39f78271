// Package render runs cancellable per-page paint tasks. Each page has at
// most one live task; starting a new render for a page cancels its
// predecessor, and only the live task may commit pixels.
package render

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"contract-lens/internal/domain"
)

// DefaultTimeout bounds a single page paint. A render that never resolves is
// reported as a failure instead of a permanent spinner.
const DefaultTimeout = 90 * time.Second

// Result is a completed paint for one (page, scale) pair.
type Result struct {
	Page   int
	Scale  float64
	Pixels image.Image
	Width  float64
	Height float64
}

// Task is a handle to one in-flight render.
type Task struct {
	page   int
	scale  float64
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel requests cooperative cancellation. Safe to call on an already
// completed task; cancellation never surfaces as an error.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed when the task finishes, whatever the outcome.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Page returns the task's 1-based page number.
func (t *Task) Page() int {
	return t.page
}

// Renderer schedules page paints and enforces the one-live-task-per-page
// rule.
type Renderer struct {
	logger  domain.Logger
	timeout time.Duration

	mu      sync.Mutex
	current map[int]*Task
}

// NewRenderer creates a renderer. A non-positive timeout falls back to
// DefaultTimeout.
func NewRenderer(logger domain.Logger, timeout time.Duration) *Renderer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Renderer{
		logger:  logger,
		timeout: timeout,
		current: make(map[int]*Task),
	}
}

// Start begins rendering page at scale, cancelling any prior task for the
// same page first. commit receives the pixels only if the task is still live
// when the paint finishes; fail receives genuine failures (timeouts
// included, cancellations never).
//
// commit and fail run on the render goroutine with no renderer lock held, so
// they may take their own locks freely.
func (r *Renderer) Start(page domain.PageHandle, scale float64, commit func(Result), fail func(page int, err error)) *Task {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	t := &Task{
		page:   page.Number(),
		scale:  scale,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	if prev := r.current[t.page]; prev != nil {
		prev.cancel()
	}
	r.current[t.page] = t
	r.mu.Unlock()

	go func() {
		defer close(t.done)
		defer cancel()

		vp := page.Viewport(scale)
		img, err := page.Render(ctx, vp)

		r.mu.Lock()
		live := r.current[t.page] == t
		if live {
			delete(r.current, t.page)
		}
		r.mu.Unlock()

		if !live {
			// Superseded by a newer task; this output is dead.
			r.logger.Debug("Render superseded", "page", t.page, "scale", t.scale)
			return
		}

		switch {
		case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
			// Explicit cancellation is not an error.
			r.logger.Debug("Render cancelled", "page", t.page)
		case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
			r.logger.Warn("Render timed out", "page", t.page, "timeout", r.timeout)
			fail(t.page, errors.New("render timed out"))
		case err != nil:
			r.logger.Error("Render failed", err, "page", t.page, "scale", t.scale)
			fail(t.page, err)
		default:
			commit(Result{
				Page:   t.page,
				Scale:  scale,
				Pixels: img,
				Width:  vp.Width,
				Height: vp.Height,
			})
		}
	}()

	return t
}

// Cancel cancels the live task for a page, if any.
func (r *Renderer) Cancel(pageNum int) {
	r.mu.Lock()
	t := r.current[pageNum]
	delete(r.current, pageNum)
	r.mu.Unlock()
	if t != nil {
		t.cancel()
	}
}

// CancelAll cancels every in-flight task. Used when the document is replaced
// or the session closes: no residual rendering from the old document may
// commit afterwards.
func (r *Renderer) CancelAll() {
	r.mu.Lock()
	tasks := make([]*Task, 0, len(r.current))
	for _, t := range r.current {
		tasks = append(tasks, t)
	}
	r.current = make(map[int]*Task)
	r.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
}

// InFlight reports how many tasks are currently live.
func (r *Renderer) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.current)
}
