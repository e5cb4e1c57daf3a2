package process

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain/repositories"
)

const (
	defaultRhubarbBinary = "bin/rhubarb"
	// phonetic is faster but less accurate than pocketSphinx
	defaultRecognizer = "phonetic"
)

// Rhubarb derives mouth cues with Rhubarb Lip Sync
type Rhubarb struct {
	binary     string
	recognizer string
	runner     *Runner
	logger     *zap.Logger
}

var _ repositories.Analyzer = (*Rhubarb)(nil)

// NewRhubarb creates an analyzer using the given binary and recognizer
func NewRhubarb(binary, recognizer string, runner *Runner, logger *zap.Logger) *Rhubarb {
	if binary == "" {
		binary = defaultRhubarbBinary
	}
	if recognizer == "" {
		recognizer = defaultRecognizer
	}
	return &Rhubarb{binary: binary, recognizer: recognizer, runner: runner, logger: logger}
}

// Analyze implements repositories.Analyzer
func (r *Rhubarb) Analyze(ctx context.Context, wavPath, outPath string) repositories.ProcessResult {
	r.logger.Info("Starting lip sync", zap.String("wav", wavPath), zap.String("recognizer", r.recognizer))

	err := r.runner.Run(ctx, r.binary, "-f", "json", "-o", outPath, wavPath, "-r", r.recognizer)
	if err != nil {
		return repositories.ProcessResult{Reason: err.Error()}
	}

	// rhubarb can exit cleanly without writing anything when interrupted
	if _, err := os.Stat(outPath); err != nil {
		return repositories.ProcessResult{Reason: fmt.Sprintf("no timing file produced: %v", err)}
	}

	return repositories.ProcessResult{Success: true, OutputPath: outPath}
}
