package domain

import "errors"

// Domain errors
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrSessionNotFound  = errors.New("viewer session not found")
	ErrChatNotFound     = errors.New("chat session not found")
	ErrInvalidFile      = errors.New("invalid file")
	ErrFileTooLarge     = errors.New("file exceeds maximum size")
	ErrUnsupportedType  = errors.New("unsupported document type")
	ErrPageOutOfRange   = errors.New("page number out of range")
	ErrNoDocumentLoaded = errors.New("no document loaded")
	ErrRenderCancelled  = errors.New("render cancelled")
	ErrAINotConfigured  = errors.New("ai service not configured")
	ErrAccessDenied     = errors.New("access denied")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// DecodeErrorKind classifies why a document could not be opened.
type DecodeErrorKind string

const (
	DecodeErrorNone     DecodeErrorKind = "none"
	DecodeErrorPassword DecodeErrorKind = "password_required"
	DecodeErrorCorrupt  DecodeErrorKind = "invalid_structure"
	DecodeErrorGeneric  DecodeErrorKind = "generic"
)

// DecodeError wraps a decode failure with its classification.
// Decode errors are terminal for the load attempt; the only recovery is
// loading another document.
type DecodeError struct {
	Kind DecodeErrorKind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeKindOf returns the classification of err, or DecodeErrorNone if err
// is nil. Non-DecodeError values classify as generic.
func DecodeKindOf(err error) DecodeErrorKind {
	if err == nil {
		return DecodeErrorNone
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return DecodeErrorGeneric
}
