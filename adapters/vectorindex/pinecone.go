package vectorindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/domain/entities"
	"github.com/satriahrh/talking-avatar/domain/repositories"
	"github.com/satriahrh/talking-avatar/internal/retry"
)

// PineconeConfig holds configuration for the Pinecone index adapter
type PineconeConfig struct {
	APIKey    string // Required
	Index     string // Required
	Namespace string
	Retry     retry.Policy
}

// ValidatePineconeConfig validates the PineconeConfig
func ValidatePineconeConfig(config PineconeConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("pinecone API key is required: %w", domain.ErrNotConfigured)
	}
	if config.Index == "" {
		return fmt.Errorf("pinecone index name is required")
	}
	return nil
}

type vectorQuerier interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
}

// PineconeIndex implements VectorIndex over one namespace of a Pinecone index.
// The index host is resolved on first use.
type PineconeIndex struct {
	client    *pinecone.Client
	index     string
	namespace string
	policy    retry.Policy
	logger    *zap.Logger

	mu   sync.Mutex
	conn vectorQuerier
}

var _ repositories.VectorIndex = (*PineconeIndex)(nil)

// NewPineconeIndex creates a new Pinecone index adapter
func NewPineconeIndex(config PineconeConfig, logger *zap.Logger) (*PineconeIndex, error) {
	if err := ValidatePineconeConfig(config); err != nil {
		return nil, err
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: config.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	policy := config.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}

	return &PineconeIndex{
		client:    client,
		index:     config.Index,
		namespace: config.Namespace,
		policy:    policy,
		logger:    logger,
	}, nil
}

func (p *PineconeIndex) connection(ctx context.Context) (vectorQuerier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		return p.conn, nil
	}

	idx, err := p.client.DescribeIndex(ctx, p.index)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index %s: %w", p.index, err)
	}

	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: idx.Host, Namespace: p.namespace})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index %s: %w", p.index, err)
	}

	p.logger.Info("Connected to Pinecone index",
		zap.String("index", p.index),
		zap.String("host", idx.Host),
		zap.String("namespace", p.namespace))

	p.conn = conn
	return conn, nil
}

// Query implements repositories.VectorIndex
func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int) (*entities.KnowledgeResult, error) {
	var resp *pinecone.QueryVectorsResponse
	err := retry.Do(ctx, p.policy, p.logger, "pinecone.query", func(ctx context.Context) error {
		conn, err := p.connection(ctx)
		if err != nil {
			return err
		}
		resp, err = conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
			Vector:          vector,
			TopK:            uint32(topK),
			IncludeMetadata: true,
		})
		return err
	})
	if err != nil {
		return nil, &domain.UpstreamError{Provider: "pinecone", Err: err}
	}

	return toKnowledgeResult(p.namespace, resp), nil
}

func toKnowledgeResult(namespace string, resp *pinecone.QueryVectorsResponse) *entities.KnowledgeResult {
	result := &entities.KnowledgeResult{Namespace: namespace, Matches: []entities.KnowledgeChunk{}}
	if resp == nil {
		return result
	}
	if resp.Namespace != "" {
		result.Namespace = resp.Namespace
	}

	matches := lo.Filter(resp.Matches, func(m *pinecone.ScoredVector, _ int) bool {
		return m != nil && m.Vector != nil
	})
	result.Matches = lo.Map(matches, func(m *pinecone.ScoredVector, _ int) entities.KnowledgeChunk {
		chunk := entities.KnowledgeChunk{ID: m.Vector.Id, Score: float64(m.Score)}
		if m.Vector.Metadata != nil {
			chunk.Metadata = m.Vector.Metadata.AsMap()
		}
		return chunk
	})
	return result
}
