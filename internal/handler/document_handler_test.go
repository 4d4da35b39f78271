package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"contract-lens/internal/domain"

	"github.com/gorilla/mux"
)

type MockAnalysisService struct {
	analyses map[string]*domain.Analysis
	lastMime string
}

func NewMockAnalysisService() *MockAnalysisService {
	return &MockAnalysisService{analyses: make(map[string]*domain.Analysis)}
}

func (m *MockAnalysisService) Analyze(ctx context.Context, name, mimeType string, data []byte) (*domain.Analysis, error) {
	if len(data) == 0 {
		return nil, domain.ErrInvalidFile
	}
	m.lastMime = mimeType
	analysis := &domain.Analysis{
		ID:         "analysis-1",
		DocumentID: "doc-1",
		RiskScore:  42,
		Summary:    "Summary of " + name,
	}
	m.analyses[analysis.DocumentID] = analysis
	return analysis, nil
}

func (m *MockAnalysisService) GetAnalysis(ctx context.Context, documentID string) (*domain.Analysis, error) {
	analysis, ok := m.analyses[documentID]
	if !ok {
		return nil, domain.ErrAnalysisNotFound
	}
	return analysis, nil
}

func (m *MockAnalysisService) ListRecent(ctx context.Context) ([]*domain.Analysis, error) {
	var out []*domain.Analysis
	for _, a := range m.analyses {
		out = append(out, a)
	}
	return out, nil
}

func (m *MockAnalysisService) DeleteDocument(ctx context.Context, documentID string) error {
	if _, ok := m.analyses[documentID]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(m.analyses, documentID)
	return nil
}

func newDocumentRouter(svc domain.AnalysisService, maxSize int64) *mux.Router {
	h := NewDocumentHandler(svc, NewMockHandlerLogger(), maxSize)
	r := mux.NewRouter()
	r.HandleFunc("/documents", h.UploadDocument).Methods("POST")
	r.HandleFunc("/documents", h.ListAnalyses).Methods("GET")
	r.HandleFunc("/documents/{id}", h.GetAnalysis).Methods("GET")
	r.HandleFunc("/documents/{id}", h.DeleteDocument).Methods("DELETE")
	return r
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	svc := NewMockAnalysisService()
	router := newDocumentRouter(svc, 1<<20)

	body, contentType := multipartUpload(t, "lease.pdf", []byte("%PDF-1.7 fake"))
	req := httptest.NewRequest("POST", "/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var analysis domain.Analysis
	if err := json.Unmarshal(rec.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if analysis.DocumentID != "doc-1" {
		t.Errorf("document id = %s", analysis.DocumentID)
	}
	if svc.lastMime != "application/pdf" {
		t.Errorf("mime type = %s, want application/pdf", svc.lastMime)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	router := newDocumentRouter(NewMockAnalysisService(), 1<<20)

	for _, name := range []string{"contract.docx", "contract.exe", "contract"} {
		body, contentType := multipartUpload(t, name, []byte("data"))
		req := httptest.NewRequest("POST", "/documents", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	router := newDocumentRouter(NewMockAnalysisService(), 1<<20)

	req := httptest.NewRequest("POST", "/documents", bytes.NewBufferString("not multipart"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	router := newDocumentRouter(NewMockAnalysisService(), 16)

	body, contentType := multipartUpload(t, "big.pdf", bytes.Repeat([]byte("x"), 64))
	req := httptest.NewRequest("POST", "/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestListAnalysesEmptyIsJSONArray(t *testing.T) {
	router := newDocumentRouter(NewMockAnalysisService(), 1<<20)

	req := httptest.NewRequest("GET", "/documents", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	got := bytes.TrimSpace(rec.Body.Bytes())
	if !bytes.Equal(got, []byte("[]")) {
		t.Errorf("empty list = %s, want []", got)
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	router := newDocumentRouter(NewMockAnalysisService(), 1<<20)

	req := httptest.NewRequest("GET", "/documents/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	svc := NewMockAnalysisService()
	if _, err := svc.Analyze(context.Background(), "a.pdf", "application/pdf", []byte("x")); err != nil {
		t.Fatalf("seed analysis: %v", err)
	}
	router := newDocumentRouter(svc, 1<<20)

	req := httptest.NewRequest("DELETE", "/documents/doc-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest("DELETE", "/documents/doc-1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}
