package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"contract-lens/internal/domain"
)

// SQLiteStore is the local persistence backend. It implements both
// domain.AnalysisRepository and domain.ChatRepository against a single
// database file, which keeps the zero-config deployment to one binary
// plus one file.
type SQLiteStore struct {
	db        *sql.DB
	maxRecent int
	logger    domain.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists. maxRecent caps how many analyses are retained; older ones
// are evicted together with their documents.
func NewSQLiteStore(dbPath string, maxRecent int, logger domain.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, maxRecent: maxRecent, logger: logger}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite store ready", "path", dbPath, "max_recent", maxRecent)
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		data BLOB NOT NULL,
		metadata TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pages (
		document_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		text TEXT,
		PRIMARY KEY (document_id, page_number),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		risk_score INTEGER NOT NULL,
		summary TEXT,
		flagged_clauses TEXT,
		section_summaries TEXT,
		missing_clauses TEXT,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		title TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		chat_session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT,
		citations TEXT,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (chat_session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_document ON analyses(document_id);
	CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(chat_session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveDocument stores the uploaded file bytes and metadata.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (id, name, data, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, doc.ID, doc.Name, doc.Data, string(metadataJSON), doc.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	doc := &domain.Document{ID: id}
	var metadataJSON sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT name, data, metadata, created_at FROM documents WHERE id = ?
	`, id).Scan(&doc.Name, &doc.Data, &metadataJSON, &doc.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return doc, nil
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (s *SQLiteStore) SavePage(ctx context.Context, page *domain.DocumentPage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pages (document_id, page_number, text)
		VALUES (?, ?, ?)
	`, page.DocumentID, page.PageNumber, page.Text)
	if err != nil {
		return fmt.Errorf("failed to insert page %d: %w", page.PageNumber, err)
	}
	return nil
}

func (s *SQLiteStore) GetPageText(ctx context.Context, documentID string, pageNumber int) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `
		SELECT text FROM pages WHERE document_id = ? AND page_number = ?
	`, documentID, pageNumber).Scan(&text)

	if err == sql.ErrNoRows {
		return "", domain.ErrPageOutOfRange
	}
	if err != nil {
		return "", fmt.Errorf("failed to query page: %w", err)
	}
	return text, nil
}

// SaveAnalysis stores the result and evicts the oldest analyses (and their
// documents) beyond the retention cap.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, analysis *domain.Analysis) error {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO analyses
			(id, document_id, risk_score, summary, flagged_clauses, section_summaries, missing_clauses, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, analysis.ID, analysis.DocumentID, analysis.RiskScore, analysis.Summary,
		string(flaggedJSON), string(sectionsJSON), string(missingJSON), analysis.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	if s.maxRecent > 0 {
		// Deleting the parent document cascades to analyses, pages and chats.
		_, err = tx.ExecContext(ctx, `
			DELETE FROM documents WHERE id IN (
				SELECT document_id FROM analyses
				ORDER BY created_at DESC
				LIMIT -1 OFFSET ?
			)
		`, s.maxRecent)
		if err != nil {
			return fmt.Errorf("failed to evict old analyses: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAnalysisByDocument(ctx context.Context, documentID string) (*domain.Analysis, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, risk_score, summary, flagged_clauses, section_summaries, missing_clauses, created_at
		FROM analyses
		WHERE document_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, documentID)

	analysis, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAnalysisNotFound
	}
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

// ListRecent returns analyses newest first. limit <= 0 means up to the
// retention cap; with no cap either, all rows.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*domain.Analysis, error) {
	if limit <= 0 {
		limit = s.maxRecent
	}
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, risk_score, summary, flagged_clauses, section_summaries, missing_clauses, created_at
		FROM analyses
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*domain.Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyses: %w", err)
	}
	return analyses, nil
}

// CreateSession stores a new chat session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, document_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, session.ID, session.DocumentID, session.Title, session.CreatedAt.UTC(), session.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert chat session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	session := &domain.ChatSession{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, title, created_at, updated_at FROM chat_sessions WHERE id = ?
	`, id).Scan(&session.ID, &session.DocumentID, &session.Title, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, domain.ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chat session: %w", err)
	}
	return session, nil
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	citationsJSON, err := json.Marshal(msg.Citations)
	if err != nil {
		return fmt.Errorf("failed to marshal citations: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_messages (id, chat_session_id, role, content, citations, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ChatSessionID, msg.Role, msg.Content, string(citationsJSON), msg.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE chat_sessions SET updated_at = ? WHERE id = ?
	`, time.Now().UTC(), msg.ChatSessionID)
	if err != nil {
		return fmt.Errorf("failed to touch chat session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMessages(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_session_id, role, content, citations, created_at
		FROM chat_messages
		WHERE chat_session_id = ?
		ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.ChatMessage
	for rows.Next() {
		msg := &domain.ChatMessage{}
		var citationsJSON sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ChatSessionID, &msg.Role, &msg.Content, &citationsJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		if citationsJSON.Valid && citationsJSON.String != "" {
			if err := json.Unmarshal([]byte(citationsJSON.String), &msg.Citations); err != nil {
				return nil, fmt.Errorf("failed to unmarshal citations: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}
	return messages, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	analysis := &domain.Analysis{}
	var flaggedJSON, sectionsJSON, missingJSON sql.NullString

	err := row.Scan(&analysis.ID, &analysis.DocumentID, &analysis.RiskScore, &analysis.Summary,
		&flaggedJSON, &sectionsJSON, &missingJSON, &analysis.CreatedAt)
	if err != nil {
		return nil, err
	}

	if flaggedJSON.Valid && flaggedJSON.String != "" {
		if err := json.Unmarshal([]byte(flaggedJSON.String), &analysis.FlaggedClauses); err != nil {
			return nil, fmt.Errorf("failed to unmarshal flagged clauses: %w", err)
		}
	}
	if sectionsJSON.Valid && sectionsJSON.String != "" {
		if err := json.Unmarshal([]byte(sectionsJSON.String), &analysis.SectionSummaries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal section summaries: %w", err)
		}
	}
	if missingJSON.Valid && missingJSON.String != "" {
		if err := json.Unmarshal([]byte(missingJSON.String), &analysis.MissingClauses); err != nil {
			return nil, fmt.Errorf("failed to unmarshal missing clauses: %w", err)
		}
	}
	return analysis, nil
}

var (
	_ domain.AnalysisRepository = (*SQLiteStore)(nil)
	_ domain.ChatRepository     = (*SQLiteStore)(nil)
)
