package domain

import (
	"context"
	"image"
)

// Scale limits for the viewer. Zoom requests outside this range are clamped,
// never rejected.
const (
	MinScale = 0.5
	MaxScale = 2.5
	ZoomStep = 0.1
	FitScale = 1.0
)

// ProximityMargin is how close (in device pixels) a page's region must come
// to the visible viewport before it starts rendering.
const ProximityMargin = 500.0

// FallbackPageHeight sizes placeholders before any page has resolved real
// dimensions. A4 portrait at 72 dpi.
const FallbackPageHeight = 842.0

// LoadState is the document-level state of a viewer session.
type LoadState string

const (
	LoadIdle    LoadState = "idle"
	LoadLoading LoadState = "loading"
	LoadReady   LoadState = "ready"
	LoadError   LoadState = "error"
)

// PageState is the per-page render state. A page that failed can be retried;
// a rendered page goes back to pending when the scale changes.
type PageState string

const (
	PagePending  PageState = "pending"
	PageRendered PageState = "rendered"
	PageFailed   PageState = "failed"
)

// Viewport is the pixel size of a page at a given scale.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ViewerState is a snapshot of the session-level viewer state machine.
type ViewerState struct {
	Scale               float64         `json:"scale"`
	NumPages            int             `json:"num_pages"`
	EstimatedPageHeight float64         `json:"estimated_page_height,omitempty"`
	LoadState           LoadState       `json:"load_state"`
	ErrorKind           DecodeErrorKind `json:"error_kind"`
}

// PagePlaceholder describes one page slot as the client should lay it out:
// its 1-based number, current state, the height to reserve for it, and
// whether it has been revealed yet.
type PagePlaceholder struct {
	Number  int       `json:"number"`
	State   PageState `json:"state"`
	Height  float64   `json:"height"`
	Width   float64   `json:"width,omitempty"`
	Visible bool      `json:"visible"`
}

// ScrollTarget is the resolved destination of a location jump.
type ScrollTarget struct {
	Page    int     `json:"page,omitempty"`
	Anchor  string  `json:"anchor,omitempty"`
	OffsetY float64 `json:"offset_y"`
}

// Location is a parsed citation reference. Exactly one of Page (>= 1) or
// Anchor is meaningful; a zero Location matches nothing.
type Location struct {
	Page   int
	Anchor string
}

// PageHandle is one page of a decoded document. Implementations are owned by
// their DocumentHandle and become invalid once it is closed.
type PageHandle interface {
	// Number returns the 1-based page index.
	Number() int
	// Viewport computes the page's pixel dimensions at the given scale.
	Viewport(scale float64) Viewport
	// Render paints the page at the viewport's size. It honors ctx
	// cancellation and must not be assumed safe to call concurrently with
	// other pages of the same document.
	Render(ctx context.Context, vp Viewport) (image.Image, error)
}

// DocumentHandle is an opaque reference to a decoded document. It is owned
// exclusively by one viewer session and replaced wholesale when a new
// document is loaded.
type DocumentHandle interface {
	PageCount() int
	// Page returns the handle for a 1-based page index.
	Page(num int) (PageHandle, error)
	Close() error
}

// DecodeEngine turns raw bytes into document handles. Implementations are
// shared process-wide and must be safe for concurrent use; setup is lazy and
// idempotent, surfaced through Ready.
type DecodeEngine interface {
	// Ready reports whether the engine initialized successfully. The first
	// call performs initialization; later calls return the cached result.
	Ready() error
	// Load decodes PDF bytes. Failures are *DecodeError values.
	Load(data []byte) (DocumentHandle, error)
	// LoadImage wraps a plain raster image as a single static page with no
	// pagination.
	LoadImage(data []byte, mimeType string) (DocumentHandle, error)
}
