package repositories

import (
	"context"

	"github.com/satriahrh/talking-avatar/domain"
)

// ProcessResult is the outcome of an external tool run. On success OutputPath
// names the file the tool produced; otherwise Reason says why it failed.
type ProcessResult struct {
	Success    bool
	OutputPath string
	Reason     string
}

// Err converts a failed result into a *domain.ProcessError, or nil on success
func (r ProcessResult) Err(tool string) error {
	if r.Success {
		return nil
	}
	return &domain.ProcessError{Tool: tool, Reason: r.Reason}
}

// Transcoder re-encodes an audio file into the encoding implied by dst
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) ProcessResult
}

// Analyzer derives mouth-shape timing from a wav file into a JSON document
type Analyzer interface {
	Analyze(ctx context.Context, wavPath, outPath string) ProcessResult
}
