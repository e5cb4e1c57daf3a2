package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/domain/repositories"
	"github.com/satriahrh/talking-avatar/internal/retry"
)

const (
	defaultEmbeddingModel = "text-embedding-004"
	retrievalQueryTask    = "RETRIEVAL_QUERY"
)

// GeminiEmbedder implements Embedder with the Gemini embedding models
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	policy retry.Policy
	logger *zap.Logger
}

var _ repositories.Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder creates an embedder on top of client
func NewGeminiEmbedder(client *genai.Client, config GeminiConfig, logger *zap.Logger) *GeminiEmbedder {
	model := config.EmbeddingModel
	if model == "" {
		model = defaultEmbeddingModel
		logger.Info("Using default embedding model", zap.String("model", model))
	}

	policy := config.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}

	return &GeminiEmbedder{client: client, model: model, policy: policy, logger: logger}
}

// Embed implements repositories.Embedder
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyText
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	config := &genai.EmbedContentConfig{TaskType: retrievalQueryTask}

	var response *genai.EmbedContentResponse
	err := retry.Do(ctx, g.policy, g.logger, "gemini.embed", func(ctx context.Context) error {
		var err error
		response, err = g.client.Models.EmbedContent(ctx, g.model, contents, config)
		return classify(err)
	})
	if err != nil {
		return nil, &domain.UpstreamError{Provider: "gemini", Err: err}
	}

	if response == nil || len(response.Embeddings) == 0 || len(response.Embeddings[0].Values) == 0 {
		return nil, &domain.UpstreamError{Provider: "gemini", Err: fmt.Errorf("no embedding returned")}
	}

	values := response.Embeddings[0].Values
	g.logger.Debug("Query embedded", zap.Int("dimensions", len(values)))
	return values, nil
}
