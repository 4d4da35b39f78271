package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"contract-lens/internal/domain"

	"github.com/supabase-community/postgrest-go"
)

// SupabaseStore is the hosted persistence backend, implementing both
// domain.AnalysisRepository and domain.ChatRepository over PostgREST.
// Document bytes are base64-encoded into a text column because PostgREST
// has no native bytea transport.
type SupabaseStore struct {
	client *SupabaseClient
	logger domain.Logger
}

// NewSupabaseStore creates a store backed by an initialized SupabaseClient.
func NewSupabaseStore(client *SupabaseClient, logger domain.Logger) *SupabaseStore {
	return &SupabaseStore{
		client: client,
		logger: logger,
	}
}

type documentRow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Data      string    `json:"data"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

type pageRow struct {
	DocumentID string `json:"document_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

type analysisRow struct {
	ID               string    `json:"id"`
	DocumentID       string    `json:"document_id"`
	RiskScore        int       `json:"risk_score"`
	Summary          string    `json:"summary"`
	FlaggedClauses   string    `json:"flagged_clauses"`
	SectionSummaries string    `json:"section_summaries"`
	MissingClauses   string    `json:"missing_clauses"`
	CreatedAt        time.Time `json:"created_at"`
}

type chatSessionRow struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type chatMessageRow struct {
	ID            string    `json:"id"`
	ChatSessionID string    `json:"chat_session_id"`
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	Citations     string    `json:"citations"`
	CreatedAt     time.Time `json:"created_at"`
}

// SaveDocument stores the uploaded file and metadata.
func (r *SupabaseStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	client := r.client.GetSupabaseClient()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	row := documentRow{
		ID:        doc.ID,
		Name:      doc.Name,
		Data:      base64.StdEncoding.EncodeToString(doc.Data),
		Metadata:  string(metadataJSON),
		CreatedAt: doc.CreatedAt.UTC(),
	}

	_, _, err = client.From("documents").Insert(row, true, "", "", "").Execute()
	if err != nil {
		r.logger.Error("Failed to insert document in Supabase", err, "doc_id", doc.ID)
		return fmt.Errorf("failed to create document: %w", err)
	}

	r.logger.Info("Document created", "id", doc.ID, "size", len(doc.Data))
	return nil
}

func (r *SupabaseStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	client := r.client.GetSupabaseClient()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From("documents").
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var rows []documentRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrDocumentNotFound
	}

	return mapToDocument(rows[0])
}

func (r *SupabaseStore) DeleteDocument(ctx context.Context, id string) error {
	client := r.client.GetSupabaseClient()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From("documents").
		Delete("representation", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	var deleted []json.RawMessage
	if err := json.Unmarshal(data, &deleted); err == nil && len(deleted) == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *SupabaseStore) SavePage(ctx context.Context, page *domain.DocumentPage) error {
	client := r.client.GetSupabaseClient()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	row := pageRow{
		DocumentID: page.DocumentID,
		PageNumber: page.PageNumber,
		Text:       page.Text,
	}

	_, _, err := client.From("pages").Insert(row, true, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to insert page %d: %w", page.PageNumber, err)
	}
	return nil
}

func (r *SupabaseStore) GetPageText(ctx context.Context, documentID string, pageNumber int) (string, error) {
	client := r.client.GetSupabaseClient()
	if client == nil {
		return "", fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From("pages").
		Select("text", "", false).
		Eq("document_id", documentID).
		Eq("page_number", fmt.Sprintf("%d", pageNumber)).
		Execute()
	if err != nil {
		return "", fmt.Errorf("failed to get page: %w", err)
	}

	var rows []pageRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return "", domain.ErrPageOutOfRange
	}
	return rows[0].Text, nil
}

func (r *SupabaseStore) SaveAnalysis(ctx context.Context, analysis *domain.Analysis) error {
	client := r.client.GetSupabaseClient()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	flaggedJSON, err := json.Marshal(analysis.FlaggedClauses)
	if err != nil {
		return fmt.Errorf("failed to marshal flagged clauses: %w", err)
	}
	sectionsJSON, err := json.Marshal(analysis.SectionSummaries)
	if err != nil {
		return fmt.Errorf("failed to marshal section summaries: %w", err)
	}
	missingJSON, err := json.Marshal(analysis.MissingClauses)
	if err != nil {
		return fmt.Errorf("failed to marshal missing clauses: %w", err)
	}

	row := analysisRow{
		ID:               analysis.ID,
		DocumentID:       analysis.DocumentID,
		RiskScore:        analysis.RiskScore,
		Summary:          analysis.Summary,
		FlaggedClauses:   string(flaggedJSON),
		SectionSummaries: string(sectionsJSON),
		MissingClauses:   string(missingJSON),
		CreatedAt:        analysis.CreatedAt.UTC(),
	}

	_, _, err = client.From("analyses").Insert(row, true, "", "", "").Execute()
	if err != nil {
		r.logger.Error("Failed to insert analysis in Supabase", err, "doc_id", analysis.DocumentID)
		return fmt.Errorf("failed to create analysis: %w", err)
	}

	r.logger.Info("Analysis created", "id", analysis.ID, "document_id", analysis.DocumentID)
	return nil
}

func (r *SupabaseStore) GetAnalysisByDocument(ctx context.Context, documentID string) (*domain.Analysis, error) {
	client := r.client.GetSupabaseClient()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From("analyses").
		Select("*", "", false).
		Eq("document_id", documentID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	var rows []analysisRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrAnalysisNotFound
	}

	return mapToAnalysis(rows[0])
}

func (r *SupabaseStore) ListRecent(ctx context.Context, limit int) ([]*domain.Analysis, error) {
	client := r.client.GetSupabaseClient()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	query := client.From("analyses").
		Select("*", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false})
	if limit > 0 {
		query = query.Limit(limit, "")
	}
	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	var rows []analysisRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var analyses []*domain.Analysis
	for _, row := range rows {
		analysis, err := mapToAnalysis(row)
		if err != nil {
			r.logger.Error("Failed to map analysis", err, "analysis_id", row.ID)
			continue
		}
		analyses = append(analyses, analysis)
	}
	return analyses, nil
}

func (r *SupabaseStore) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	client := r.client.GetSupabaseClient()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	row := chatSessionRow{
		ID:         session.ID,
		DocumentID: session.DocumentID,
		Title:      session.Title,
		CreatedAt:  session.CreatedAt.UTC(),
		UpdatedAt:  session.UpdatedAt.UTC(),
	}

	_, _, err := client.From("chat_sessions").Insert(row, false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to create chat session: %w", err)
	}
	return nil
}

func (r *SupabaseStore) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	client := r.client.GetSupabaseClient()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From("chat_sessions").
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}

	var rows []chatSessionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrChatNotFound
	}

	row := rows[0]
	return &domain.ChatSession{
		ID:         row.ID,
		DocumentID: row.DocumentID,
		Title:      row.Title,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

func (r *SupabaseStore) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	client := r.client.GetSupabaseClient()
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	citationsJSON, err := json.Marshal(msg.Citations)
	if err != nil {
		return fmt.Errorf("failed to marshal citations: %w", err)
	}

	row := chatMessageRow{
		ID:            msg.ID,
		ChatSessionID: msg.ChatSessionID,
		Role:          msg.Role,
		Content:       msg.Content,
		Citations:     string(citationsJSON),
		CreatedAt:     msg.CreatedAt.UTC(),
	}

	_, _, err = client.From("chat_messages").Insert(row, false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to create chat message: %w", err)
	}

	touch := map[string]interface{}{"updated_at": time.Now().UTC()}
	_, _, err = client.From("chat_sessions").
		Update(touch, "", "").
		Eq("id", msg.ChatSessionID).
		Execute()
	if err != nil {
		r.logger.Warn("Failed to touch chat session", "session_id", msg.ChatSessionID, "error", err)
	}
	return nil
}

func (r *SupabaseStore) GetMessages(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	client := r.client.GetSupabaseClient()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From("chat_messages").
		Select("*", "", false).
		Eq("chat_session_id", sessionID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get chat messages: %w", err)
	}

	var rows []chatMessageRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var messages []*domain.ChatMessage
	for _, row := range rows {
		msg := &domain.ChatMessage{
			ID:            row.ID,
			ChatSessionID: row.ChatSessionID,
			Role:          row.Role,
			Content:       row.Content,
			CreatedAt:     row.CreatedAt,
		}
		if row.Citations != "" {
			if err := json.Unmarshal([]byte(row.Citations), &msg.Citations); err != nil {
				r.logger.Warn("Failed to unmarshal citations", "message_id", row.ID, "error", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func mapToDocument(row documentRow) (*domain.Document, error) {
	raw, err := base64.StdEncoding.DecodeString(row.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document data: %w", err)
	}

	doc := &domain.Document{
		ID:        row.ID,
		Name:      row.Name,
		Data:      raw,
		CreatedAt: row.CreatedAt,
	}
	if row.Metadata != "" {
		if err := json.Unmarshal([]byte(row.Metadata), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return doc, nil
}

func mapToAnalysis(row analysisRow) (*domain.Analysis, error) {
	analysis := &domain.Analysis{
		ID:         row.ID,
		DocumentID: row.DocumentID,
		RiskScore:  row.RiskScore,
		Summary:    row.Summary,
		CreatedAt:  row.CreatedAt,
	}

	if row.FlaggedClauses != "" {
		if err := json.Unmarshal([]byte(row.FlaggedClauses), &analysis.FlaggedClauses); err != nil {
			return nil, fmt.Errorf("failed to unmarshal flagged clauses: %w", err)
		}
	}
	if row.SectionSummaries != "" {
		if err := json.Unmarshal([]byte(row.SectionSummaries), &analysis.SectionSummaries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal section summaries: %w", err)
		}
	}
	if row.MissingClauses != "" {
		if err := json.Unmarshal([]byte(row.MissingClauses), &analysis.MissingClauses); err != nil {
			return nil, fmt.Errorf("failed to unmarshal missing clauses: %w", err)
		}
	}
	return analysis, nil
}

var (
	_ domain.AnalysisRepository = (*SupabaseStore)(nil)
	_ domain.ChatRepository     = (*SupabaseStore)(nil)
)
