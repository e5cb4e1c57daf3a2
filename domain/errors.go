package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedReply is returned when the language model output is neither
	// a JSON array of messages nor an object wrapping one under "messages".
	ErrMalformedReply = errors.New("malformed reply from language model")

	// ErrNotConfigured is returned when a provider credential is missing
	ErrNotConfigured = errors.New("provider is not configured")

	// ErrEmptyText is returned when synthesis is requested for blank text
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrUnsupportedMedia is returned when an upload is not audio
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// ProcessError reports a failed external tool invocation
type ProcessError struct {
	Tool   string
	Reason string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Tool, e.Reason)
}

// UpstreamError reports a failed call to an external provider
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Error codes reported to clients
const (
	CodeInvalidRequest   = "invalid_request"
	CodeUnsupportedMedia = "unsupported_media"
	CodeNotConfigured    = "not_configured"
	CodeUpstream         = "upstream_error"
	CodeMalformedReply   = "malformed_reply"
	CodeProcess          = "process_error"
	CodeInternal         = "internal_error"
)

// ErrorCode classifies err for clients
func ErrorCode(err error) string {
	var processErr *ProcessError
	var upstreamErr *UpstreamError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyText):
		return CodeInvalidRequest
	case errors.Is(err, ErrUnsupportedMedia):
		return CodeUnsupportedMedia
	case errors.Is(err, ErrNotConfigured):
		return CodeNotConfigured
	case errors.Is(err, ErrMalformedReply):
		return CodeMalformedReply
	case errors.As(err, &processErr):
		return CodeProcess
	case errors.As(err, &upstreamErr):
		return CodeUpstream
	default:
		return CodeInternal
	}
}
