// Package pdfengine adapts the MuPDF decoding capability (via go-fitz) to the
// viewer's DocumentHandle/PageHandle contracts. It does not parse PDFs itself.
package pdfengine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"contract-lens/internal/domain"

	"github.com/gen2brain/go-fitz"
)

// renderBaseDPI is the DPI at which scale 1.0 renders. Page bounds from
// MuPDF are expressed in points (1/72 inch), so at 72 dpi one point maps to
// one device pixel.
const renderBaseDPI = 72.0

// probePDF is the smallest well-formed document we can ask MuPDF to open.
// Used once, at initialization, to verify the native library loads.
const probePDF = "%PDF-1.4\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>endobj\n" +
	"xref\n0 4\n0000000000 65535 f \n0000000009 00000 n \n0000000052 00000 n \n0000000101 00000 n \n" +
	"trailer<</Size 4/Root 1 0 R>>\nstartxref\n164\n%%EOF\n"

// Engine is the shared decode service. Initialization is lazy and idempotent:
// the first Ready (or Load) call probes MuPDF and the result is cached for
// the life of the process.
type Engine struct {
	logger domain.Logger

	initOnce sync.Once
	initErr  error
}

// New creates the decode engine. No native resources are touched until the
// first use.
func New(logger domain.Logger) *Engine {
	return &Engine{logger: logger}
}

// Ready initializes the engine on first call and reports the cached result
// afterwards.
func (e *Engine) Ready() error {
	e.initOnce.Do(func() {
		doc, err := fitz.NewFromMemory([]byte(probePDF))
		if err != nil {
			e.initErr = fmt.Errorf("decode engine unavailable: %w", err)
			e.logger.Error("PDF engine initialization failed", e.initErr)
			return
		}
		doc.Close()
		e.logger.Info("PDF engine initialized")
	})
	return e.initErr
}

// Load decodes PDF bytes into a document handle. Failures come back as
// *domain.DecodeError with the kind classified for the viewer state machine.
func (e *Engine) Load(data []byte) (domain.DocumentHandle, error) {
	if err := e.Ready(); err != nil {
		return nil, &domain.DecodeError{Kind: domain.DecodeErrorGeneric, Err: err}
	}
	if len(data) == 0 {
		return nil, &domain.DecodeError{Kind: domain.DecodeErrorCorrupt, Err: errors.New("empty document")}
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &domain.DecodeError{Kind: classify(err), Err: err}
	}

	count := doc.NumPage()
	if count <= 0 {
		doc.Close()
		return nil, &domain.DecodeError{Kind: domain.DecodeErrorCorrupt, Err: errors.New("document has no pages")}
	}

	return &fitzDocument{doc: doc, pageCount: count}, nil
}

// classify maps a go-fitz open failure onto the decode taxonomy.
func classify(err error) domain.DecodeErrorKind {
	switch {
	case errors.Is(err, fitz.ErrNeedsPassword):
		return domain.DecodeErrorPassword
	case errors.Is(err, fitz.ErrOpenMemory), errors.Is(err, fitz.ErrOpenDocument):
		return domain.DecodeErrorCorrupt
	}
	// go-fitz does not always wrap its sentinels; fall back on the message.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "password"):
		return domain.DecodeErrorPassword
	case strings.Contains(msg, "open"), strings.Contains(msg, "format"):
		return domain.DecodeErrorCorrupt
	}
	return domain.DecodeErrorGeneric
}

// fitzDocument owns one *fitz.Document. MuPDF contexts are not safe for
// concurrent use, so all page operations serialize on mu.
type fitzDocument struct {
	mu        sync.Mutex
	doc       *fitz.Document
	pageCount int
	closed    bool
}

func (d *fitzDocument) PageCount() int {
	return d.pageCount
}

func (d *fitzDocument) Page(num int) (domain.PageHandle, error) {
	if num < 1 || num > d.pageCount {
		return nil, fmt.Errorf("%w: page %d of %d", domain.ErrPageOutOfRange, num, d.pageCount)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, domain.ErrNoDocumentLoaded
	}
	bound, err := d.doc.Bound(num - 1)
	if err != nil {
		return nil, fmt.Errorf("failed to measure page %d: %w", num, err)
	}

	return &fitzPage{
		parent: d,
		number: num,
		width:  float64(bound.Dx()),
		height: float64(bound.Dy()),
	}, nil
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.doc.Close()
}

// Text extracts the text of a 1-based page. Not part of the viewer contract;
// the analysis pipeline uses it.
func (d *fitzDocument) Text(num int) (string, error) {
	if num < 1 || num > d.pageCount {
		return "", fmt.Errorf("%w: page %d of %d", domain.ErrPageOutOfRange, num, d.pageCount)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", domain.ErrNoDocumentLoaded
	}
	return d.doc.Text(num - 1)
}

// Metadata returns the document's title/author map when MuPDF exposes one.
func (d *fitzDocument) Metadata() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	return d.doc.Metadata()
}

type fitzPage struct {
	parent *fitzDocument
	number int
	width  float64 // points, == pixels at scale 1.0
	height float64
}

func (p *fitzPage) Number() int {
	return p.number
}

func (p *fitzPage) Viewport(scale float64) domain.Viewport {
	return domain.Viewport{
		Width:  p.width * scale,
		Height: p.height * scale,
	}
}

// Render paints the page at the viewport's resolution. The paint itself is
// one native call and cannot be interrupted midway; cancellation is checked
// before and after so a cancelled render never reports success.
func (p *fitzPage) Render(ctx context.Context, vp domain.Viewport) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dpi := renderBaseDPI
	if p.width > 0 {
		dpi = renderBaseDPI * (vp.Width / p.width)
	}

	p.parent.mu.Lock()
	if p.parent.closed {
		p.parent.mu.Unlock()
		return nil, domain.ErrNoDocumentLoaded
	}
	img, err := p.parent.doc.ImageDPI(p.number-1, dpi)
	p.parent.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", p.number, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return img, nil
}
