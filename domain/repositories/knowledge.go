package repositories

import (
	"context"

	"github.com/satriahrh/talking-avatar/domain/entities"
)

// VectorIndex queries a single partition of a vector index
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int) (*entities.KnowledgeResult, error)
}
