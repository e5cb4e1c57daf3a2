package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxReasonLength = 512
	// how long to wait for output pipes after the process was killed
	waitDelay = 2 * time.Second
)

// Runner executes an external command and waits for it to exit
type Runner struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner creates a runner; a zero timeout lets commands run until they exit
func NewRunner(timeout time.Duration, logger *zap.Logger) *Runner {
	return &Runner{timeout: timeout, logger: logger}
}

// Run executes name with args. A non-zero exit is returned as an error
// carrying the tail of the command's stderr.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Debug("Running external command",
		zap.String("command", name),
		zap.Strings("args", args))

	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s did not finish within %s: %w", name, r.timeout, ctx.Err())
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with code %d: %s", name, exitErr.ExitCode(), tail(stderr.String()))
		}
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	r.logger.Info("External command finished",
		zap.String("command", name),
		zap.Duration("elapsed", elapsed))

	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxReasonLength {
		return "..." + s[len(s)-maxReasonLength:]
	}
	return s
}
