package service

import (
	"context"
	"strings"
	"testing"

	"contract-lens/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, fields ...interface{})             {}
func (nopLogger) Error(msg string, err error, fields ...interface{}) {}
func (nopLogger) Debug(msg string, fields ...interface{})            {}
func (nopLogger) Warn(msg string, fields ...interface{})             {}

func TestParseReviewWellFormed(t *testing.T) {
	raw := `{
		"risk_score": 72,
		"summary": "High-risk services agreement.",
		"flagged_clauses": [
			{"clause": "Unlimited liability", "risk": "high", "explanation": "No cap.", "location": "page=4"}
		],
		"section_summaries": [
			{"title": "Termination", "summary": "30 day notice.", "page": 6}
		],
		"missing_clauses": ["Indemnification"]
	}`

	analysis := parseReview(raw, nopLogger{})

	if analysis.RiskScore != 72 {
		t.Errorf("risk score = %d, want 72", analysis.RiskScore)
	}
	if analysis.Summary != "High-risk services agreement." {
		t.Errorf("unexpected summary: %q", analysis.Summary)
	}
	if len(analysis.FlaggedClauses) != 1 {
		t.Fatalf("expected 1 flagged clause, got %d", len(analysis.FlaggedClauses))
	}
	fc := analysis.FlaggedClauses[0]
	if fc.Clause != "Unlimited liability" || fc.Location != "page=4" {
		t.Errorf("unexpected flagged clause: %+v", fc)
	}
	if len(analysis.SectionSummaries) != 1 || analysis.SectionSummaries[0].Page != 6 {
		t.Errorf("unexpected section summaries: %+v", analysis.SectionSummaries)
	}
	if len(analysis.MissingClauses) != 1 || analysis.MissingClauses[0] != "Indemnification" {
		t.Errorf("unexpected missing clauses: %+v", analysis.MissingClauses)
	}
}

func TestParseReviewStripsMarkdownFences(t *testing.T) {
	raw := "```json\n{\"risk_score\": 10, \"summary\": \"Low risk.\"}\n```"

	analysis := parseReview(raw, nopLogger{})
	if analysis.RiskScore != 10 {
		t.Errorf("risk score = %d, want 10", analysis.RiskScore)
	}
	if analysis.Summary != "Low risk." {
		t.Errorf("summary = %q", analysis.Summary)
	}
}

func TestParseReviewDefensiveCoercion(t *testing.T) {
	// risk_score as a string, clauses with wrong element types, score above
	// the cap. Nothing here may panic or error out.
	raw := `{
		"risk_score": "250",
		"summary": 42,
		"flagged_clauses": ["not an object", {"clause": "Auto-renewal"}],
		"section_summaries": "nope",
		"missing_clauses": ["ok", 7, ""]
	}`

	analysis := parseReview(raw, nopLogger{})

	if analysis.RiskScore != 100 {
		t.Errorf("risk score = %d, want clamp to 100", analysis.RiskScore)
	}
	if analysis.Summary != "" {
		t.Errorf("non-string summary should degrade to empty, got %q", analysis.Summary)
	}
	if len(analysis.FlaggedClauses) != 1 || analysis.FlaggedClauses[0].Clause != "Auto-renewal" {
		t.Errorf("unexpected flagged clauses: %+v", analysis.FlaggedClauses)
	}
	if len(analysis.SectionSummaries) != 0 {
		t.Errorf("unexpected section summaries: %+v", analysis.SectionSummaries)
	}
	if len(analysis.MissingClauses) != 1 || analysis.MissingClauses[0] != "ok" {
		t.Errorf("unexpected missing clauses: %+v", analysis.MissingClauses)
	}
}

func TestParseReviewNonJSONKeepsRawText(t *testing.T) {
	raw := "I could not produce structured output, sorry."

	analysis := parseReview(raw, nopLogger{})
	if analysis.Summary != raw {
		t.Errorf("summary = %q, want raw text", analysis.Summary)
	}
	if analysis.RiskScore != 0 {
		t.Errorf("risk score = %d, want 0", analysis.RiskScore)
	}
	if analysis.FlaggedClauses == nil || analysis.MissingClauses == nil {
		t.Error("slices must be non-nil even for unparseable output")
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"prefix {\"a\":1} suffix", `{"a":1}`},
		{"no json here", ""},
		{"}{", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := extractJSONObject(tc.raw); got != tc.want {
			t.Errorf("extractJSONObject(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestBuildReviewPromptBudget(t *testing.T) {
	pages := []string{
		strings.Repeat("a", maxPromptChars),
		"this page must be dropped",
	}
	prompt := buildReviewPrompt("big.pdf", pages)

	if len(prompt) > maxPromptChars+4096 {
		t.Errorf("prompt blew the budget: %d chars", len(prompt))
	}
	if strings.Contains(prompt, "this page must be dropped") {
		t.Error("pages past the budget should not appear in the prompt")
	}
}

func TestBuildReviewPromptScannedDocument(t *testing.T) {
	prompt := buildReviewPrompt("scan.png", []string{""})
	if !strings.Contains(strings.ToLower(prompt), "no machine-readable text") {
		t.Errorf("prompt should note the missing text layer:\n%s", prompt)
	}
}

func TestSanitizeText(t *testing.T) {
	in := "Hello\x00 world\t\n café � bad:\xed\xa0\x80 end"
	out := sanitizeText(in)

	if strings.ContainsRune(out, 0x00) {
		t.Error("NULL byte survived sanitization")
	}
	if !strings.Contains(out, "Hello world") {
		t.Errorf("printable text mangled: %q", out)
	}
	if !strings.Contains(out, "café") {
		t.Errorf("valid non-ASCII dropped: %q", out)
	}
	if !strings.Contains(out, "\t\n") {
		t.Errorf("whitespace dropped: %q", out)
	}
}

func TestClampInt(t *testing.T) {
	if got := clampInt(-5, 0, 100); got != 0 {
		t.Errorf("clampInt(-5) = %d", got)
	}
	if got := clampInt(150, 0, 100); got != 100 {
		t.Errorf("clampInt(150) = %d", got)
	}
	if got := clampInt(42, 0, 100); got != 42 {
		t.Errorf("clampInt(42) = %d", got)
	}
}

func TestListRecentUsesConfiguredCap(t *testing.T) {
	repo := newMockAnalysisRepo()
	repo.analyses["doc-1"] = &domain.Analysis{ID: "analysis-1", DocumentID: "doc-1"}

	svc := NewAnalysisService(repo, nil, nil, nopLogger{}, 10<<20, 20)

	analyses, err := svc.ListRecent(context.Background())
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(analyses) != 1 {
		t.Fatalf("expected the stored analysis, got %d results", len(analyses))
	}
	if repo.lastListLimit != 20 {
		t.Errorf("limit forwarded to repository = %d, want 20", repo.lastListLimit)
	}
}

var _ domain.AnalysisService = (*AnalysisService)(nil)
