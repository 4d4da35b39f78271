package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"contract-lens/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// savePageWorkers caps concurrent SavePage calls against the repository.
const savePageWorkers = 8

// maxPromptChars bounds how much document text goes into one analysis
// prompt. Contracts beyond this are truncated page by page.
const maxPromptChars = 120000

// AnalysisService implements the upload-and-analyze use case: validate,
// extract, delegate the review to the model, persist.
type AnalysisService struct {
	repo        domain.AnalysisRepository
	engine      domain.DecodeEngine
	llm         LLMClient
	logger      domain.Logger
	maxFileSize int64
	maxRecent   int
}

// NewAnalysisService creates the analysis service. llm may be nil; analysis
// then reports domain.ErrAINotConfigured. maxRecent bounds how many entries
// ListRecent returns, matching the repository's retention cap.
func NewAnalysisService(
	repo domain.AnalysisRepository,
	engine domain.DecodeEngine,
	llm LLMClient,
	logger domain.Logger,
	maxFileSize int64,
	maxRecent int,
) *AnalysisService {
	return &AnalysisService{
		repo:        repo,
		engine:      engine,
		llm:         llm,
		logger:      logger,
		maxFileSize: maxFileSize,
		maxRecent:   maxRecent,
	}
}

func (s *AnalysisService) Analyze(ctx context.Context, name, mimeType string, data []byte) (*domain.Analysis, error) {
	if s.llm == nil {
		return nil, domain.ErrAINotConfigured
	}
	if len(data) == 0 {
		return nil, domain.ErrInvalidFile
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", domain.ErrFileTooLarge, len(data), s.maxFileSize)
	}

	isPDF := strings.Contains(strings.ToLower(mimeType), "pdf")
	isImage := strings.HasPrefix(strings.ToLower(mimeType), "image/")
	if !isPDF && !isImage {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, mimeType)
	}

	var handle domain.DocumentHandle
	var err error
	if isPDF {
		handle, err = s.engine.Load(data)
	} else {
		handle, err = s.engine.LoadImage(data, mimeType)
	}
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	doc := &domain.Document{
		ID:   uuid.NewString(),
		Name: name,
		Data: data,
		Metadata: domain.DocumentMetadata{
			PageCount: handle.PageCount(),
			FileSize:  int64(len(data)),
			MimeType:  mimeType,
		},
		CreatedAt: time.Now().UTC(),
	}
	if meta, ok := handle.(MetadataSource); ok {
		m := meta.Metadata()
		doc.Metadata.OriginalTitle = m["title"]
		doc.Metadata.OriginalAuthor = m["author"]
	}

	pages := extractPageTexts(handle, s.logger)

	answer, err := s.llm.GenerateReview(ctx, buildReviewPrompt(doc.Name, pages))
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}

	analysis := parseReview(answer, s.logger)
	analysis.ID = uuid.NewString()
	analysis.DocumentID = doc.ID
	analysis.CreatedAt = time.Now().UTC()

	if err := s.repo.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	s.savePages(ctx, doc.ID, pages)
	if err := s.repo.SaveAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	s.logger.Info("Document analyzed", "doc_id", doc.ID, "pages", doc.Metadata.PageCount, "risk_score", analysis.RiskScore)
	return analysis, nil
}

func (s *AnalysisService) GetAnalysis(ctx context.Context, documentID string) (*domain.Analysis, error) {
	return s.repo.GetAnalysisByDocument(ctx, documentID)
}

func (s *AnalysisService) ListRecent(ctx context.Context) ([]*domain.Analysis, error) {
	return s.repo.ListRecent(ctx, s.maxRecent)
}

func (s *AnalysisService) DeleteDocument(ctx context.Context, documentID string) error {
	return s.repo.DeleteDocument(ctx, documentID)
}

// savePages stores page texts with bounded parallelism. A failed page is
// logged and skipped; the analysis is still useful without it.
func (s *AnalysisService) savePages(ctx context.Context, documentID string, pages []string) {
	sem := make(chan struct{}, savePageWorkers)
	g, gctx := errgroup.WithContext(ctx)
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pageNum, pageText := i+1, text
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}
			page := &domain.DocumentPage{
				DocumentID: documentID,
				PageNumber: pageNum,
				Text:       pageText,
			}
			if err := s.repo.SavePage(gctx, page); err != nil {
				s.logger.Error("Failed to save page text", err, "doc_id", documentID, "page", pageNum)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func buildReviewPrompt(name string, pages []string) string {
	var sb strings.Builder
	sb.WriteString("You are a contract review assistant. Analyze the document below and respond with ONLY a JSON object, no markdown, with this shape:\n")
	sb.WriteString(`{"risk_score": <0-100 integer>, "summary": "<overall summary>", "flagged_clauses": [{"clause": "...", "risk": "low|medium|high", "explanation": "...", "location": "page=N"}], "section_summaries": [{"title": "...", "summary": "...", "page": N}], "missing_clauses": ["..."]}`)
	sb.WriteString("\n\nDocument: ")
	sb.WriteString(name)
	sb.WriteString("\n")

	hasText := false
	for _, text := range pages {
		if strings.TrimSpace(text) != "" {
			hasText = true
			break
		}
	}
	if !hasText {
		sb.WriteString("\nThe document has no machine-readable text layer (likely a scanned image). ")
		sb.WriteString("Report that in the summary and keep the other fields conservative.\n")
		return sb.String()
	}

	budget := maxPromptChars
	for i, text := range pages {
		if budget <= 0 {
			sb.WriteString(fmt.Sprintf("\n[remaining pages truncated after page %d]\n", i))
			break
		}
		if len(text) > budget {
			text = text[:budget]
		}
		budget -= len(text)
		sb.WriteString(fmt.Sprintf("\n--- Page %d ---\n%s\n", i+1, text))
	}
	return sb.String()
}

// parseReview turns the model's output into an Analysis. The payload is
// untrusted: fields may be missing, mistyped, or wrapped in markdown fences.
// Anything unusable degrades to a zero value rather than an error.
func parseReview(raw string, logger domain.Logger) *domain.Analysis {
	analysis := &domain.Analysis{
		FlaggedClauses:   []domain.FlaggedClause{},
		SectionSummaries: []domain.SectionSummary{},
		MissingClauses:   []string{},
	}

	payload := extractJSONObject(raw)
	if payload == "" {
		logger.Warn("Model response contained no JSON object; keeping raw text as summary")
		analysis.Summary = strings.TrimSpace(raw)
		return analysis
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		logger.Warn("Failed to parse model JSON; keeping raw text as summary", "error", err)
		analysis.Summary = strings.TrimSpace(raw)
		return analysis
	}

	analysis.RiskScore = clampInt(asInt(fields["risk_score"]), 0, 100)
	analysis.Summary = asString(fields["summary"])

	if items, ok := fields["flagged_clauses"].([]interface{}); ok {
		for _, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			clause := domain.FlaggedClause{
				Clause:      asString(m["clause"]),
				Risk:        asString(m["risk"]),
				Explanation: asString(m["explanation"]),
				Location:    asString(m["location"]),
			}
			if clause.Clause != "" {
				analysis.FlaggedClauses = append(analysis.FlaggedClauses, clause)
			}
		}
	}

	if items, ok := fields["section_summaries"].([]interface{}); ok {
		for _, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			section := domain.SectionSummary{
				Title:   asString(m["title"]),
				Summary: asString(m["summary"]),
				Page:    asInt(m["page"]),
			}
			if section.Title != "" || section.Summary != "" {
				analysis.SectionSummaries = append(analysis.SectionSummaries, section)
			}
		}
	}

	if items, ok := fields["missing_clauses"].([]interface{}); ok {
		for _, item := range items {
			if s := asString(item); s != "" {
				analysis.MissingClauses = append(analysis.MissingClauses, s)
			}
		}
	}

	return analysis
}

// extractJSONObject strips markdown fences and returns the outermost
// {...} span, or "" if none exists.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		var out int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &out); err == nil {
			return out
		}
	}
	return 0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
