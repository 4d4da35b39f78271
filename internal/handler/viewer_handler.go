package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"contract-lens/internal/domain"

	"github.com/gorilla/mux"
)

// ViewerHandler exposes the viewer session operations over HTTP.
type ViewerHandler struct {
	viewerService domain.ViewerService
	logger        domain.Logger
}

// NewViewerHandler creates a new viewer handler
func NewViewerHandler(viewerService domain.ViewerService, logger domain.Logger) *ViewerHandler {
	return &ViewerHandler{
		viewerService: viewerService,
		logger:        logger,
	}
}

type openSessionRequest struct {
	DocumentID string `json:"document_id"`
}

type sessionStateResponse struct {
	SessionID string                   `json:"session_id,omitempty"`
	State     *domain.ViewerState      `json:"state"`
	Pages     []domain.PagePlaceholder `json:"pages"`
}

// OpenSession creates a viewer session for a previously uploaded document.
// The response carries the initial state even when decoding failed, so the
// client can show the password or corruption message.
func (h *ViewerHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	sessionID, err := h.viewerService.Open(r.Context(), req.DocumentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	state, pages, err := h.viewerService.State(sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionStateResponse{
		SessionID: sessionID,
		State:     state,
		Pages:     pages,
	})
}

// GetState returns the session state and per-page placeholders.
func (h *ViewerHandler) GetState(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	state, pages, err := h.viewerService.State(sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionStateResponse{State: state, Pages: pages})
}

type zoomRequest struct {
	Delta float64 `json:"delta"`
}

// Zoom adjusts the session scale by delta, clamped to the allowed range.
func (h *ViewerHandler) Zoom(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req zoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	scale, err := h.viewerService.Zoom(sessionID, req.Delta)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"scale": scale})
}

type viewportRequest struct {
	OffsetY float64 `json:"offset_y"`
	Height  float64 `json:"height"`
}

// UpdateViewport reports the scroll position so the session can schedule
// nearby pages.
func (h *ViewerHandler) UpdateViewport(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req viewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Height <= 0 {
		writeError(w, http.StatusBadRequest, "Viewport height must be positive")
		return
	}

	if err := h.viewerService.UpdateViewport(sessionID, req.OffsetY, req.Height); err != nil {
		writeServiceError(w, err)
		return
	}

	state, pages, err := h.viewerService.State(sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionStateResponse{State: state, Pages: pages})
}

type jumpRequest struct {
	Ref string `json:"ref"`
}

type jumpResponse struct {
	Matched bool                 `json:"matched"`
	Target  *domain.ScrollTarget `json:"target,omitempty"`
}

// Jump resolves a location reference to a scroll target. An unmatched
// reference is not an error; the client simply stays put.
func (h *ViewerHandler) Jump(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req jumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	target, err := h.viewerService.Jump(sessionID, req.Ref)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, jumpResponse{Matched: target != nil, Target: target})
}

// GetPageImage renders one page and returns it as PNG.
func (h *ViewerHandler) GetPageImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	pageNumber, err := strconv.Atoi(vars["page"])
	if err != nil || pageNumber < 1 {
		writeError(w, http.StatusBadRequest, "Invalid page number")
		return
	}

	png, err := h.viewerService.PageImage(r.Context(), sessionID, pageNumber)
	if err != nil {
		h.logger.Error("Page render failed", err, "session_id", sessionID, "page", pageNumber)
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// RetryPage puts a failed page back into the render queue.
func (h *ViewerHandler) RetryPage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	pageNumber, err := strconv.Atoi(vars["page"])
	if err != nil || pageNumber < 1 {
		writeError(w, http.StatusBadRequest, "Invalid page number")
		return
	}

	if err := h.viewerService.RetryPage(sessionID, pageNumber); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Page queued for retry"})
}

// CloseSession discards the session and cancels any in-flight renders.
func (h *ViewerHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := h.viewerService.Close(sessionID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Session closed"})
}
