package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"contract-lens/internal/domain"

	"github.com/google/uuid"
)

// ChatService answers follow-up questions about an analyzed document. The
// model's page references double as viewer citations: each "page N" in the
// answer becomes a location string the client can pass to the viewer's jump
// operation verbatim.
type ChatService struct {
	analysisRepo domain.AnalysisRepository
	chatRepo     domain.ChatRepository
	llm          LLMClient
	logger       domain.Logger
}

func NewChatService(
	analysisRepo domain.AnalysisRepository,
	chatRepo domain.ChatRepository,
	llm LLMClient,
	logger domain.Logger,
) *ChatService {
	return &ChatService{
		analysisRepo: analysisRepo,
		chatRepo:     chatRepo,
		llm:          llm,
		logger:       logger,
	}
}

var citationPattern = regexp.MustCompile(`(?i)\bpage\s*=?\s*(\d+)`)

func (s *ChatService) Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if s.llm == nil {
		return nil, domain.ErrAINotConfigured
	}

	var sessionID string
	if req.SessionID != "" {
		sess, err := s.chatRepo.GetSession(ctx, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("invalid session: %w", err)
		}
		if req.DocumentID != "" && sess.DocumentID != req.DocumentID {
			return nil, domain.ErrAccessDenied
		}
		sessionID = sess.ID
		req.DocumentID = sess.DocumentID
	} else {
		newSess := &domain.ChatSession{
			ID:         uuid.NewString(),
			DocumentID: req.DocumentID,
			Title:      "Chat about document",
			CreatedAt:  time.Now().UTC(),
			UpdatedAt:  time.Now().UTC(),
		}
		if err := s.chatRepo.CreateSession(ctx, newSess); err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		sessionID = newSess.ID
	}

	userMsg := &domain.ChatMessage{
		ID:            uuid.NewString(),
		ChatSessionID: sessionID,
		Role:          "user",
		Content:       req.Prompt,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.chatRepo.CreateMessage(ctx, userMsg); err != nil {
		s.logger.Warn("Failed to log user message", "error", err)
	}

	prompt := s.buildPrompt(ctx, req)

	history, err := s.chatRepo.GetMessages(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Failed to load chat history", "error", err, "session_id", sessionID)
		history = nil
	}
	// The current message goes in the prompt, not the history.
	trimmed := make([]*domain.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.ID == userMsg.ID {
			continue
		}
		trimmed = append(trimmed, m)
	}

	answer, err := s.llm.Chat(ctx, trimmed, prompt)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	citations := extractCitations(answer)

	modelMsg := &domain.ChatMessage{
		ID:            uuid.NewString(),
		ChatSessionID: sessionID,
		Role:          "model",
		Content:       answer,
		Citations:     citations,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.chatRepo.CreateMessage(ctx, modelMsg); err != nil {
		s.logger.Warn("Failed to save model response", "error", err)
	}

	return &domain.ChatResponse{
		SessionID: sessionID,
		Message:   answer,
		Citations: citations,
	}, nil
}

func (s *ChatService) GetChatHistory(ctx context.Context, sessionID string) (*domain.ChatSessionData, error) {
	sess, err := s.chatRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.chatRepo.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &domain.ChatSessionData{Session: sess, Messages: msgs}, nil
}

// buildPrompt assembles document context: the page the user is viewing
// first, then the stored analysis summary, then the rules.
func (s *ChatService) buildPrompt(ctx context.Context, req domain.ChatRequest) string {
	var sb strings.Builder

	if req.CurrentPage != nil && *req.CurrentPage > 0 && req.DocumentID != "" {
		pageText, err := s.analysisRepo.GetPageText(ctx, req.DocumentID, *req.CurrentPage)
		if err == nil && strings.TrimSpace(pageText) != "" {
			sb.WriteString(fmt.Sprintf("Current page the user is viewing (page %d):\n", *req.CurrentPage))
			sb.WriteString(pageText)
			sb.WriteString("\n\n---------------------\n")
		}
	}

	if req.DocumentID != "" {
		if analysis, err := s.analysisRepo.GetAnalysisByDocument(ctx, req.DocumentID); err == nil && analysis != nil {
			sb.WriteString("Review summary of the document:\n")
			sb.WriteString(analysis.Summary)
			sb.WriteString("\n")
			for _, fc := range analysis.FlaggedClauses {
				sb.WriteString(fmt.Sprintf("- Flagged (%s): %s", fc.Risk, fc.Clause))
				if fc.Location != "" {
					sb.WriteString(" [" + fc.Location + "]")
				}
				sb.WriteString("\n")
			}
			sb.WriteString("---------------------\n")
		}
	}

	sb.WriteString("RULES: Answer the user's question using ONLY the document context above. ")
	sb.WriteString("When you reference a specific part of the document, cite it as \"page N\". ")
	sb.WriteString("If the question cannot be answered from this document, say so. ")
	sb.WriteString("Do not write code, role-play, or use outside knowledge.\n")
	sb.WriteString("\nQuery: ")
	sb.WriteString(req.Prompt)
	return sb.String()
}

// extractCitations collects the page references the model mentioned, as
// location strings ("page=3"), deduplicated in order of first appearance.
func extractCitations(answer string) []string {
	var citations []string
	seen := make(map[int]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(answer, -1) {
		num, err := strconv.Atoi(m[1])
		if err != nil || num < 1 || seen[num] {
			continue
		}
		seen[num] = true
		citations = append(citations, fmt.Sprintf("page=%d", num))
	}
	return citations
}
