package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"testing"
	"time"

	"contract-lens/internal/domain"
)

type stubPage struct {
	num    int
	width  float64
	height float64
}

func (p *stubPage) Number() int { return p.num }

func (p *stubPage) Viewport(scale float64) domain.Viewport {
	return domain.Viewport{Width: p.width * scale, Height: p.height * scale}
}

func (p *stubPage) Render(ctx context.Context, vp domain.Viewport) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, int(vp.Width), int(vp.Height))), nil
}

type stubDoc struct {
	pages []*stubPage
}

func newStubDoc(n int) *stubDoc {
	d := &stubDoc{}
	for i := 0; i < n; i++ {
		d.pages = append(d.pages, &stubPage{num: i + 1, width: 595, height: 842})
	}
	return d
}

func (d *stubDoc) PageCount() int { return len(d.pages) }

func (d *stubDoc) Page(num int) (domain.PageHandle, error) {
	if num < 1 || num > len(d.pages) {
		return nil, fmt.Errorf("page %d out of range", num)
	}
	return d.pages[num-1], nil
}

func (d *stubDoc) Close() error { return nil }

type stubEngine struct {
	pageCount int
	loadErr   error
}

func (e *stubEngine) Ready() error { return nil }

func (e *stubEngine) Load(data []byte) (domain.DocumentHandle, error) {
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	return newStubDoc(e.pageCount), nil
}

func (e *stubEngine) LoadImage(data []byte, mimeType string) (domain.DocumentHandle, error) {
	return e.Load(data)
}

func newViewerServiceForTest(engine domain.DecodeEngine, repo domain.AnalysisRepository) *ViewerServiceImpl {
	return NewViewerService(engine, repo, nopLogger{}, time.Second)
}

func TestOpenLoadsStoredDocument(t *testing.T) {
	repo := newMockAnalysisRepo()
	repo.documents["doc-1"] = &domain.Document{
		ID:   "doc-1",
		Data: []byte("%PDF-1.7"),
		Metadata: domain.DocumentMetadata{
			MimeType: "application/pdf",
		},
	}

	svc := newViewerServiceForTest(&stubEngine{pageCount: 3}, repo)

	sessionID, err := svc.Open(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer svc.Close(sessionID)

	state, pages, err := svc.State(sessionID)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.LoadState != domain.LoadReady {
		t.Errorf("load state = %s, want ready", state.LoadState)
	}
	if state.NumPages != 3 || len(pages) != 3 {
		t.Errorf("page count = %d/%d, want 3", state.NumPages, len(pages))
	}
}

func TestOpenUnknownDocument(t *testing.T) {
	svc := newViewerServiceForTest(&stubEngine{pageCount: 1}, newMockAnalysisRepo())

	if _, err := svc.Open(context.Background(), "missing"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestOpenKeepsSessionOnDecodeFailure(t *testing.T) {
	engine := &stubEngine{
		loadErr: &domain.DecodeError{Kind: domain.DecodeErrorPassword, Err: errors.New("needs password")},
	}
	svc := newViewerServiceForTest(engine, newMockAnalysisRepo())

	sessionID, err := svc.OpenBytes(context.Background(), "application/pdf", []byte("encrypted"))
	if err != nil {
		t.Fatalf("OpenBytes should not fail on decode errors: %v", err)
	}
	defer svc.Close(sessionID)

	state, _, err := svc.State(sessionID)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.LoadState != domain.LoadError {
		t.Errorf("load state = %s, want error", state.LoadState)
	}
	if state.ErrorKind != domain.DecodeErrorPassword {
		t.Errorf("error kind = %s, want password_required", state.ErrorKind)
	}
}

func TestOpenBytesRejectsEmptyUpload(t *testing.T) {
	svc := newViewerServiceForTest(&stubEngine{pageCount: 1}, newMockAnalysisRepo())

	if _, err := svc.OpenBytes(context.Background(), "application/pdf", nil); !errors.Is(err, domain.ErrInvalidFile) {
		t.Errorf("expected ErrInvalidFile, got %v", err)
	}
}

func TestPageImageReturnsPNG(t *testing.T) {
	svc := newViewerServiceForTest(&stubEngine{pageCount: 2}, newMockAnalysisRepo())

	sessionID, err := svc.OpenBytes(context.Background(), "application/pdf", []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	defer svc.Close(sessionID)

	data, err := svc.PageImage(context.Background(), sessionID, 1)
	if err != nil {
		t.Fatalf("PageImage failed: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("response is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 595 || img.Bounds().Dy() != 842 {
		t.Errorf("unexpected image size: %v", img.Bounds())
	}
}

func TestUnknownSessionErrors(t *testing.T) {
	svc := newViewerServiceForTest(&stubEngine{pageCount: 1}, newMockAnalysisRepo())

	if _, _, err := svc.State("nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("State: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Zoom("nope", 0.1); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Zoom: expected ErrSessionNotFound, got %v", err)
	}
	if err := svc.Close("nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Close: expected ErrSessionNotFound, got %v", err)
	}
}

func TestCloseRemovesSession(t *testing.T) {
	svc := newViewerServiceForTest(&stubEngine{pageCount: 1}, newMockAnalysisRepo())

	sessionID, err := svc.OpenBytes(context.Background(), "application/pdf", []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}

	if err := svc.Close(sessionID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, _, err := svc.State(sessionID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after close, got %v", err)
	}
}

var _ domain.ViewerService = (*ViewerServiceImpl)(nil)
