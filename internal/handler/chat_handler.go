package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"contract-lens/internal/domain"

	"github.com/gorilla/mux"
)

// ChatHandler handles follow-up question requests
type ChatHandler struct {
	chatService domain.ChatService
	logger      domain.Logger
}

// NewChatHandler creates a new chat handler. chatService may be nil when
// no AI backend is configured; requests then report 503.
func NewChatHandler(chatService domain.ChatService, logger domain.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// Ask handles a follow-up question about an analyzed document.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if h.chatService == nil {
		writeError(w, http.StatusServiceUnavailable, "AI service not configured")
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "Prompt is required")
		return
	}
	if req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	resp, err := h.chatService.Ask(r.Context(), req)
	if err != nil {
		h.logger.Error("Chat request failed", err, "document_id", req.DocumentID)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetHistory returns a chat session with its messages.
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.chatService == nil {
		writeError(w, http.StatusServiceUnavailable, "AI service not configured")
		return
	}

	vars := mux.Vars(r)
	sessionID := vars["id"]
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	data, err := h.chatService.GetChatHistory(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, data)
}
