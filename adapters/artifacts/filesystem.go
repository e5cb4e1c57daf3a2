package artifacts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain/entities"
	"github.com/satriahrh/talking-avatar/domain/repositories"
)

// FileStore keeps artifacts under a base directory. Every request gets its own
// sub-directory named by a random UUID; canned artifacts sit in the base directory.
type FileStore struct {
	baseDir string
	logger  *zap.Logger
}

var (
	_ repositories.ArtifactStore   = (*FileStore)(nil)
	_ repositories.ArtifactSweeper = (*FileStore)(nil)
)

// NewFileStore creates the base directory if needed
func NewFileStore(baseDir string, logger *zap.Logger) (*FileStore, error) {
	if baseDir == "" {
		return nil, errors.New("artifact directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &FileStore{baseDir: baseDir, logger: logger}, nil
}

// Allocate implements repositories.ArtifactStore
func (s *FileStore) Allocate() (repositories.Namespace, error) {
	ns := repositories.Namespace(uuid.NewString())
	if err := os.MkdirAll(filepath.Join(s.baseDir, string(ns)), 0o755); err != nil {
		return "", fmt.Errorf("failed to create namespace directory: %w", err)
	}
	s.logger.Debug("Allocated artifact namespace", zap.String("namespace", string(ns)))
	return ns, nil
}

// Path implements repositories.ArtifactStore
func (s *FileStore) Path(ns repositories.Namespace, name, ext string) string {
	file := name + "." + ext
	if ns == "" {
		return filepath.Join(s.baseDir, file)
	}
	return filepath.Join(s.baseDir, string(ns), file)
}

// Save implements repositories.ArtifactStore
func (s *FileStore) Save(path string, r io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(file, r)
	if err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	s.logger.Debug("Saved artifact", zap.String("path", path), zap.Int64("bytes", n))
	return file.Close()
}

// ReadAudio implements repositories.ArtifactStore
func (s *FileStore) ReadAudio(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read audio artifact: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ReadLipSync implements repositories.ArtifactStore
func (s *FileStore) ReadLipSync(path string) (entities.LipSync, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lip-sync artifact: %w", err)
	}
	if _, err := entities.ParseLipSync(data); err != nil {
		return nil, fmt.Errorf("lip-sync artifact %s: %w", path, err)
	}
	return entities.LipSync(data), nil
}

// Remove implements repositories.ArtifactStore
func (s *FileStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	return nil
}

// Release implements repositories.ArtifactStore
func (s *FileStore) Release(ns repositories.Namespace) error {
	// never wipe the canned artifacts
	if ns == "" {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(s.baseDir, string(ns))); err != nil {
		return fmt.Errorf("failed to release namespace %s: %w", ns, err)
	}
	s.logger.Debug("Released artifact namespace", zap.String("namespace", string(ns)))
	return nil
}

// Sweep implements repositories.ArtifactSweeper. Only namespace directories are
// considered, so the canned artifacts in the base directory survive.
func (s *FileStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("failed to list artifact directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.IsDir() {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// released concurrently
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := s.Release(repositories.Namespace(entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
