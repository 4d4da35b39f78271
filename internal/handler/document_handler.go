// Package handler provides HTTP handlers for the API.
package handler

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"contract-lens/internal/domain"

	"github.com/gorilla/mux"
)

// DocumentHandler handles document upload and analysis requests
type DocumentHandler struct {
	analysisService domain.AnalysisService
	logger          domain.Logger
	maxFileSize     int64
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(analysisService domain.AnalysisService, logger domain.Logger, maxFileSize int64) *DocumentHandler {
	return &DocumentHandler{
		analysisService: analysisService,
		logger:          logger,
		maxFileSize:     maxFileSize,
	}
}

var mimeByExt = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// UploadDocument accepts a multipart upload and runs the full analysis.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	// Sanitize filename (strip any path components)
	originalName := strings.TrimSpace(filepath.Base(header.Filename))
	if originalName == "" || originalName == "." || originalName == string(filepath.Separator) {
		originalName = "document"
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	mimeType, ok := mimeByExt[ext]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unsupported file type. Allowed: PDF (.pdf), PNG (.png), JPEG (.jpg), WebP (.webp).")
		return
	}

	if header.Size > h.maxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	analysis, err := h.analysisService.Analyze(r.Context(), originalName, mimeType, data)
	if err != nil {
		h.logger.Error("Analysis failed", err, "name", originalName, "size", len(data))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, analysis)
}

// ListAnalyses returns the most recent analyses.
func (h *DocumentHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	analyses, err := h.analysisService.ListRecent(r.Context())
	if err != nil {
		h.logger.Error("Failed to list analyses", err)
		writeServiceError(w, err)
		return
	}

	// Ensure JSON is [] not null when there are no analyses.
	if analyses == nil {
		analyses = make([]*domain.Analysis, 0)
	}
	writeJSON(w, http.StatusOK, analyses)
}

// GetAnalysis returns the analysis for one document.
func (h *DocumentHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	documentID := vars["id"]
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	analysis, err := h.analysisService.GetAnalysis(r.Context(), documentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// DeleteDocument removes a document together with its analysis and chats.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	documentID := vars["id"]
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	if err := h.analysisService.DeleteDocument(r.Context(), documentID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
}
