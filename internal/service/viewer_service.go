package service

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"sync"
	"time"

	"contract-lens/internal/domain"
	"contract-lens/internal/viewer"

	"github.com/google/uuid"
)

// ViewerServiceImpl manages live viewer sessions keyed by id. One session
// owns one decoded document at a time.
type ViewerServiceImpl struct {
	engine        domain.DecodeEngine
	repo          domain.AnalysisRepository
	logger        domain.Logger
	renderTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*viewer.Session
}

func NewViewerService(
	engine domain.DecodeEngine,
	repo domain.AnalysisRepository,
	logger domain.Logger,
	renderTimeout time.Duration,
) *ViewerServiceImpl {
	return &ViewerServiceImpl{
		engine:        engine,
		repo:          repo,
		logger:        logger,
		renderTimeout: renderTimeout,
		sessions:      make(map[string]*viewer.Session),
	}
}

// Open creates a session over a stored document. A decode failure still
// yields a session: its state carries the error classification for the
// client to present.
func (s *ViewerServiceImpl) Open(ctx context.Context, documentID string) (string, error) {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	return s.open(doc.Data, doc.Metadata.MimeType)
}

// OpenBytes creates a session directly from uploaded bytes.
func (s *ViewerServiceImpl) OpenBytes(ctx context.Context, mimeType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", domain.ErrInvalidFile
	}
	return s.open(data, mimeType)
}

func (s *ViewerServiceImpl) open(data []byte, mimeType string) (string, error) {
	sess := viewer.NewSession(s.engine, s.logger, s.renderTimeout)
	id := uuid.NewString()

	if err := sess.Load(data, mimeType); err != nil {
		// Terminal for this document, but the session stays addressable so
		// the client can read the error kind.
		s.logger.Warn("Viewer document failed to load", "session_id", id, "kind", domain.DecodeKindOf(err))
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Info("Viewer session opened", "session_id", id, "mime", mimeType)
	return id, nil
}

func (s *ViewerServiceImpl) State(sessionID string) (*domain.ViewerState, []domain.PagePlaceholder, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, nil, err
	}
	state, placeholders := sess.State()
	return &state, placeholders, nil
}

func (s *ViewerServiceImpl) Zoom(sessionID string, delta float64) (float64, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return 0, err
	}
	return sess.Zoom(delta)
}

func (s *ViewerServiceImpl) UpdateViewport(sessionID string, offsetY, height float64) error {
	sess, err := s.get(sessionID)
	if err != nil {
		return err
	}
	return sess.UpdateViewport(offsetY, height)
}

func (s *ViewerServiceImpl) Jump(sessionID string, ref string) (*domain.ScrollTarget, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Jump(ref), nil
}

func (s *ViewerServiceImpl) PageImage(ctx context.Context, sessionID string, pageNumber int) ([]byte, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	img, err := sess.PageImage(ctx, pageNumber)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page %d: %w", pageNumber, err)
	}
	return buf.Bytes(), nil
}

func (s *ViewerServiceImpl) RetryPage(sessionID string, pageNumber int) error {
	sess, err := s.get(sessionID)
	if err != nil {
		return err
	}
	return sess.RetryPage(pageNumber)
}

func (s *ViewerServiceImpl) Close(sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	s.logger.Info("Viewer session closed", "session_id", sessionID)
	return sess.Close()
}

func (s *ViewerServiceImpl) get(sessionID string) (*viewer.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}
