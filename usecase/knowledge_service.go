package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/domain/entities"
	"github.com/satriahrh/talking-avatar/domain/repositories"
)

const defaultTopK = 3

// KnowledgeService answers retrieval lookups against the document index
type KnowledgeService struct {
	embedder repositories.Embedder
	index    repositories.VectorIndex
	topK     int
	logger   *zap.Logger
}

// NewKnowledgeService creates a new knowledge service. embedder and index may
// be nil; Query then fails with domain.ErrNotConfigured.
func NewKnowledgeService(embedder repositories.Embedder, index repositories.VectorIndex, topK int, logger *zap.Logger) *KnowledgeService {
	if topK <= 0 {
		topK = defaultTopK
		logger.Info("Using default topK", zap.Int("topK", topK))
	}
	return &KnowledgeService{embedder: embedder, index: index, topK: topK, logger: logger}
}

// Query embeds text and returns the nearest chunks as the index reported them
func (s *KnowledgeService) Query(ctx context.Context, text string) (*entities.KnowledgeResult, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("embedding model: %w", domain.ErrNotConfigured)
	}
	if s.index == nil {
		return nil, fmt.Errorf("vector index: %w", domain.ErrNotConfigured)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyText
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	result, err := s.index.Query(ctx, vector, s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	s.logger.Info("Knowledge query completed",
		zap.String("namespace", result.Namespace),
		zap.Int("matches", len(result.Matches)))
	return result, nil
}
