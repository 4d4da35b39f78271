package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"contract-lens/internal/domain"

	"github.com/gorilla/mux"
)

// Mock implementations for viewer handler testing

type MockViewerService struct {
	sessions map[string]*domain.ViewerState
	pngBytes []byte
}

func NewMockViewerService() *MockViewerService {
	return &MockViewerService{
		sessions: make(map[string]*domain.ViewerState),
		pngBytes: []byte("\x89PNG fake"),
	}
}

func (m *MockViewerService) Open(ctx context.Context, documentID string) (string, error) {
	if documentID == "missing" {
		return "", domain.ErrDocumentNotFound
	}
	id := "session-" + documentID
	m.sessions[id] = &domain.ViewerState{
		Scale:     domain.FitScale,
		NumPages:  3,
		LoadState: domain.LoadReady,
		ErrorKind: domain.DecodeErrorNone,
	}
	return id, nil
}

func (m *MockViewerService) OpenBytes(ctx context.Context, mimeType string, data []byte) (string, error) {
	return m.Open(ctx, "upload")
}

func (m *MockViewerService) State(sessionID string) (*domain.ViewerState, []domain.PagePlaceholder, error) {
	state, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	pages := make([]domain.PagePlaceholder, state.NumPages)
	for i := range pages {
		pages[i] = domain.PagePlaceholder{Number: i + 1, State: domain.PagePending, Height: domain.FallbackPageHeight}
	}
	return state, pages, nil
}

func (m *MockViewerService) Zoom(sessionID string, delta float64) (float64, error) {
	state, ok := m.sessions[sessionID]
	if !ok {
		return 0, domain.ErrSessionNotFound
	}
	next := state.Scale + delta
	if next > domain.MaxScale {
		next = domain.MaxScale
	}
	if next < domain.MinScale {
		next = domain.MinScale
	}
	state.Scale = next
	return next, nil
}

func (m *MockViewerService) UpdateViewport(sessionID string, offsetY, height float64) error {
	if _, ok := m.sessions[sessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (m *MockViewerService) Jump(sessionID string, ref string) (*domain.ScrollTarget, error) {
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, domain.ErrSessionNotFound
	}
	if ref == "page=2" {
		return &domain.ScrollTarget{Page: 2, OffsetY: 854}, nil
	}
	return nil, nil
}

func (m *MockViewerService) PageImage(ctx context.Context, sessionID string, pageNumber int) ([]byte, error) {
	state, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if pageNumber > state.NumPages {
		return nil, domain.ErrPageOutOfRange
	}
	return m.pngBytes, nil
}

func (m *MockViewerService) RetryPage(sessionID string, pageNumber int) error {
	if _, ok := m.sessions[sessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (m *MockViewerService) Close(sessionID string) error {
	if _, ok := m.sessions[sessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, sessionID)
	return nil
}

func newViewerRouter(svc domain.ViewerService) *mux.Router {
	h := NewViewerHandler(svc, NewMockHandlerLogger())
	r := mux.NewRouter()
	r.HandleFunc("/viewer", h.OpenSession).Methods("POST")
	r.HandleFunc("/viewer/{id}", h.GetState).Methods("GET")
	r.HandleFunc("/viewer/{id}", h.CloseSession).Methods("DELETE")
	r.HandleFunc("/viewer/{id}/zoom", h.Zoom).Methods("POST")
	r.HandleFunc("/viewer/{id}/viewport", h.UpdateViewport).Methods("POST")
	r.HandleFunc("/viewer/{id}/jump", h.Jump).Methods("POST")
	r.HandleFunc("/viewer/{id}/pages/{page}", h.GetPageImage).Methods("GET")
	r.HandleFunc("/viewer/{id}/pages/{page}/retry", h.RetryPage).Methods("POST")
	return r
}

func TestOpenSessionReturnsInitialState(t *testing.T) {
	router := newViewerRouter(NewMockViewerService())

	body := bytes.NewBufferString(`{"document_id": "doc-1"}`)
	req := httptest.NewRequest("POST", "/viewer", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp sessionStateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("missing session id")
	}
	if resp.State == nil || resp.State.LoadState != domain.LoadReady {
		t.Errorf("unexpected state: %+v", resp.State)
	}
	if len(resp.Pages) != 3 {
		t.Errorf("expected 3 placeholders, got %d", len(resp.Pages))
	}
}

func TestOpenSessionValidation(t *testing.T) {
	router := newViewerRouter(NewMockViewerService())

	cases := []struct {
		name string
		body string
		code int
	}{
		{"bad json", "{not json", http.StatusBadRequest},
		{"missing id", `{}`, http.StatusBadRequest},
		{"unknown document", `{"document_id": "missing"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/viewer", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.code {
				t.Errorf("status = %d, want %d", rec.Code, tc.code)
			}
		})
	}
}

func TestZoomEndpoint(t *testing.T) {
	svc := NewMockViewerService()
	sessionID, _ := svc.Open(context.Background(), "doc-1")
	router := newViewerRouter(svc)

	req := httptest.NewRequest("POST", "/viewer/"+sessionID+"/zoom", bytes.NewBufferString(`{"delta": 0.1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp["scale"] < 1.09 || resp["scale"] > 1.11 {
		t.Errorf("scale = %v, want 1.1", resp["scale"])
	}
}

func TestJumpEndpoint(t *testing.T) {
	svc := NewMockViewerService()
	sessionID, _ := svc.Open(context.Background(), "doc-1")
	router := newViewerRouter(svc)

	req := httptest.NewRequest("POST", "/viewer/"+sessionID+"/jump", bytes.NewBufferString(`{"ref": "page=2"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp jumpResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if !resp.Matched || resp.Target == nil || resp.Target.Page != 2 {
		t.Errorf("unexpected jump response: %+v", resp)
	}

	// An unresolvable reference is a 200 no-op, not an error.
	req = httptest.NewRequest("POST", "/viewer/"+sessionID+"/jump", bytes.NewBufferString(`{"ref": "#nowhere"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Matched || resp.Target != nil {
		t.Errorf("unmatched jump should report matched=false: %+v", resp)
	}
}

func TestGetPageImage(t *testing.T) {
	svc := NewMockViewerService()
	sessionID, _ := svc.Open(context.Background(), "doc-1")
	router := newViewerRouter(svc)

	req := httptest.NewRequest("GET", "/viewer/"+sessionID+"/pages/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %s, want image/png", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), svc.pngBytes) {
		t.Error("response body is not the rendered page")
	}

	// Bad page numbers never reach the service.
	for _, page := range []string{"0", "-1", "abc"} {
		req := httptest.NewRequest("GET", "/viewer/"+sessionID+"/pages/"+page, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("page %q: status = %d, want 400", page, rec.Code)
		}
	}

	// Out-of-range pages map to 404.
	req = httptest.NewRequest("GET", "/viewer/"+sessionID+"/pages/99", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestViewportValidation(t *testing.T) {
	svc := NewMockViewerService()
	sessionID, _ := svc.Open(context.Background(), "doc-1")
	router := newViewerRouter(svc)

	req := httptest.NewRequest("POST", "/viewer/"+sessionID+"/viewport", bytes.NewBufferString(`{"offset_y": 100, "height": 0}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for zero height", rec.Code)
	}

	req = httptest.NewRequest("POST", "/viewer/"+sessionID+"/viewport", bytes.NewBufferString(`{"offset_y": 100, "height": 800}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	router := newViewerRouter(NewMockViewerService())

	req := httptest.NewRequest("GET", "/viewer/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCloseSession(t *testing.T) {
	svc := NewMockViewerService()
	sessionID, _ := svc.Open(context.Background(), "doc-1")
	router := newViewerRouter(svc)

	req := httptest.NewRequest("DELETE", "/viewer/"+sessionID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	if _, _, err := svc.State(sessionID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Error("session still present after delete")
	}
}
