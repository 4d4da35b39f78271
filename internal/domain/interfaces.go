package domain

import "context"

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetMaxFileSize() int64
	GetLogLevel() string
	GetDatabasePath() string
	GetMaxRecentAnalyses() int
	GetRenderTimeoutSec() int
	GetAPIKey() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetGCPProjectID() string
	GetGCPLocation() string
}

// ViewerService manages live viewer sessions over decoded documents.
type ViewerService interface {
	// Open creates a viewer session for a stored document and starts decoding.
	Open(ctx context.Context, documentID string) (string, error)
	// OpenBytes creates a session directly from uploaded bytes.
	OpenBytes(ctx context.Context, mimeType string, data []byte) (string, error)

	State(sessionID string) (*ViewerState, []PagePlaceholder, error)
	Zoom(sessionID string, delta float64) (float64, error)
	UpdateViewport(sessionID string, offsetY, height float64) error
	Jump(sessionID string, ref string) (*ScrollTarget, error)
	PageImage(ctx context.Context, sessionID string, pageNumber int) ([]byte, error)
	RetryPage(sessionID string, pageNumber int) error
	Close(sessionID string) error
}
