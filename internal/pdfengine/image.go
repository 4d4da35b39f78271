package pdfengine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"

	"contract-lens/internal/domain"

	"golang.org/x/image/draw"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// LoadImage wraps a plain raster image as a single static page. Images bypass
// the paginated state machine entirely: one page, no lazy loading.
func (e *Engine) LoadImage(data []byte, mimeType string) (domain.DocumentHandle, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.DecodeError{
			Kind: domain.DecodeErrorCorrupt,
			Err:  fmt.Errorf("failed to decode %s image: %w", mimeType, err),
		}
	}
	e.logger.Debug("Image document loaded", "format", format, "mime", mimeType)

	b := img.Bounds()
	return &imageDocument{
		img:    img,
		width:  float64(b.Dx()),
		height: float64(b.Dy()),
	}, nil
}

// imageDocument is the single-surface handle for non-PDF input.
type imageDocument struct {
	mu     sync.Mutex
	img    image.Image
	width  float64
	height float64
	closed bool
}

func (d *imageDocument) PageCount() int {
	return 1
}

func (d *imageDocument) Page(num int) (domain.PageHandle, error) {
	if num != 1 {
		return nil, fmt.Errorf("%w: page %d of 1", domain.ErrPageOutOfRange, num)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, domain.ErrNoDocumentLoaded
	}
	return &imagePage{doc: d}, nil
}

func (d *imageDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.img = nil
	return nil
}

type imagePage struct {
	doc *imageDocument
}

func (p *imagePage) Number() int {
	return 1
}

func (p *imagePage) Viewport(scale float64) domain.Viewport {
	return domain.Viewport{
		Width:  p.doc.width * scale,
		Height: p.doc.height * scale,
	}
}

func (p *imagePage) Render(ctx context.Context, vp domain.Viewport) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.doc.mu.Lock()
	src := p.doc.img
	p.doc.mu.Unlock()
	if src == nil {
		return nil, domain.ErrNoDocumentLoaded
	}

	w, h := int(vp.Width), int(vp.Height)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("invalid viewport %dx%d", w, h)
	}
	if b := src.Bounds(); w == b.Dx() && h == b.Dy() {
		return src, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return dst, nil
}
