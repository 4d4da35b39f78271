package domain

import (
	"context"
	"time"
)

// ChatSession represents a conversation thread about one document.
type ChatSession struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ChatMessage is a single message in a chat session. Citations are location
// reference strings ("page=3") the client can pass verbatim to the viewer's
// jump operation.
type ChatMessage struct {
	ID            string    `json:"id"`
	ChatSessionID string    `json:"chat_session_id"`
	Role          string    `json:"role"` // user, model
	Content       string    `json:"content"`
	Citations     []string  `json:"citations,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ChatRepository defines persistence for chat history.
type ChatRepository interface {
	CreateSession(ctx context.Context, session *ChatSession) error
	GetSession(ctx context.Context, id string) (*ChatSession, error)
	CreateMessage(ctx context.Context, msg *ChatMessage) error
	GetMessages(ctx context.Context, sessionID string) ([]*ChatMessage, error)
}

// ChatRequest is a follow-up question about an analyzed document.
type ChatRequest struct {
	SessionID   string `json:"session_id,omitempty"` // if empty, a new session is created
	DocumentID  string `json:"document_id"`
	Prompt      string `json:"prompt"`
	CurrentPage *int   `json:"current_page,omitempty"` // 1-based page the user is viewing
}

// ChatResponse carries the model's answer and its page citations.
type ChatResponse struct {
	SessionID string   `json:"session_id"`
	Message   string   `json:"message"`
	Citations []string `json:"citations,omitempty"`
}

// ChatSessionData is a session together with its messages.
type ChatSessionData struct {
	Session  *ChatSession   `json:"session"`
	Messages []*ChatMessage `json:"messages"`
}

// ChatService answers follow-up questions grounded in the document's
// extracted pages.
type ChatService interface {
	Ask(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	GetChatHistory(ctx context.Context, sessionID string) (*ChatSessionData, error)
}
