package domain

import (
	"context"
	"time"
)

// DocumentMetadata holds facts extracted from the uploaded file itself.
type DocumentMetadata struct {
	OriginalTitle  string `json:"original_title,omitempty"`
	OriginalAuthor string `json:"original_author,omitempty"`
	PageCount      int    `json:"page_count,omitempty"`
	FileSize       int64  `json:"file_size,omitempty"`
	MimeType       string `json:"mime_type,omitempty"`
}

// Document represents one uploaded contract file together with the raw bytes
// the viewer renders from.
type Document struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Data     []byte           `json:"-"`
	Metadata DocumentMetadata `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
}

// DocumentPage is the extracted text of one page, kept so chat answers can
// cite and quote specific pages.
type DocumentPage struct {
	DocumentID string `json:"document_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// FlaggedClause is one clause the analysis marked as risky, with the
// location reference the client can jump to.
type FlaggedClause struct {
	Clause      string `json:"clause"`
	Risk        string `json:"risk"`
	Explanation string `json:"explanation"`
	Location    string `json:"location,omitempty"`
}

// SectionSummary summarizes one section of the contract.
type SectionSummary struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Page    int    `json:"page,omitempty"`
}

// Analysis is the structured result produced by the AI layer for one
// document. The server treats it as data to persist and present; the
// reasoning behind it is the model's.
type Analysis struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`

	RiskScore        int              `json:"risk_score"`
	Summary          string           `json:"summary"`
	FlaggedClauses   []FlaggedClause  `json:"flagged_clauses"`
	SectionSummaries []SectionSummary `json:"section_summaries"`
	MissingClauses   []string         `json:"missing_clauses"`

	CreatedAt time.Time `json:"created_at"`
}

// AnalysisRepository persists documents, their per-page text, and analysis
// results. The recent list is capped: saving beyond the cap evicts the
// oldest entries.
type AnalysisRepository interface {
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	DeleteDocument(ctx context.Context, id string) error

	SavePage(ctx context.Context, page *DocumentPage) error
	GetPageText(ctx context.Context, documentID string, pageNumber int) (string, error)

	SaveAnalysis(ctx context.Context, analysis *Analysis) error
	GetAnalysisByDocument(ctx context.Context, documentID string) (*Analysis, error)
	// ListRecent returns analyses newest first. A limit <= 0 means up to
	// the backend's retention cap, or everything when no cap is set.
	ListRecent(ctx context.Context, limit int) ([]*Analysis, error)
}

// AnalysisService is the upload-and-analyze use case.
type AnalysisService interface {
	// Analyze validates the upload, extracts page text, requests the
	// structured review from the AI layer, and persists everything.
	Analyze(ctx context.Context, name, mimeType string, data []byte) (*Analysis, error)
	GetAnalysis(ctx context.Context, documentID string) (*Analysis, error)
	ListRecent(ctx context.Context) ([]*Analysis, error)
	DeleteDocument(ctx context.Context, documentID string) error
}
