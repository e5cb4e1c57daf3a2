package process

import (
	"context"

	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain/repositories"
)

const defaultFFmpegBinary = "ffmpeg"

// FFmpeg transcodes audio by shelling out to ffmpeg; the target encoding is
// picked by ffmpeg from the destination extension.
type FFmpeg struct {
	binary string
	runner *Runner
	logger *zap.Logger
}

var _ repositories.Transcoder = (*FFmpeg)(nil)

// NewFFmpeg creates a transcoder using the given binary (default "ffmpeg")
func NewFFmpeg(binary string, runner *Runner, logger *zap.Logger) *FFmpeg {
	if binary == "" {
		binary = defaultFFmpegBinary
	}
	return &FFmpeg{binary: binary, runner: runner, logger: logger}
}

// Transcode implements repositories.Transcoder
func (f *FFmpeg) Transcode(ctx context.Context, src, dst string) repositories.ProcessResult {
	f.logger.Info("Starting conversion", zap.String("src", src), zap.String("dst", dst))

	// -y overwrites dst
	if err := f.runner.Run(ctx, f.binary, "-y", "-i", src, dst); err != nil {
		return repositories.ProcessResult{Reason: err.Error()}
	}

	return repositories.ProcessResult{Success: true, OutputPath: dst}
}
