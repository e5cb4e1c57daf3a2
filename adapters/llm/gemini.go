package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/domain/repositories"
	"github.com/satriahrh/talking-avatar/internal/retry"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultTemperature = 0.6
	defaultMaxTokens   = 1000
	defaultMaxReplies  = 3
	responseMIMEType   = "application/json"
)

// GeminiConfig holds configuration for the Gemini adapters
type GeminiConfig struct {
	APIKey          string // Required
	BaseURL         string // Optional: overrides the API endpoint
	Model           string
	EmbeddingModel  string
	Temperature     float32
	MaxOutputTokens int
	MaxReplies      int // upper bound on reply messages requested in the prompt
	Retry           retry.Policy
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required: %w", domain.ErrNotConfigured)
	}

	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}

	if config.MaxReplies < 0 {
		return fmt.Errorf("maxReplies must be positive, got %d", config.MaxReplies)
	}

	return nil
}

// NewGeminiClient creates the shared genai client for dialogue and embeddings
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*genai.Client, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// GeminiDialogue implements DialogueGenerator using Google's Gemini API
type GeminiDialogue struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int
	systemPrompt    string
	policy          retry.Policy
	logger          *zap.Logger
}

var _ repositories.DialogueGenerator = (*GeminiDialogue)(nil)

// NewGeminiDialogue creates a dialogue generator on top of client
func NewGeminiDialogue(client *genai.Client, config GeminiConfig, logger *zap.Logger) (*GeminiDialogue, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
		logger.Info("Using default temperature", zap.Float32("temperature", temperature))
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", maxOutputTokens))
	}

	maxReplies := config.MaxReplies
	if maxReplies == 0 {
		maxReplies = defaultMaxReplies
	}

	policy := config.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}

	return &GeminiDialogue{
		client:          client,
		model:           model,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
		systemPrompt:    SystemPrompt(maxReplies),
		policy:          policy,
		logger:          logger,
	}, nil
}

// GenerateReply implements repositories.DialogueGenerator
func (g *GeminiDialogue) GenerateReply(ctx context.Context, utterance string) (string, error) {
	if strings.TrimSpace(utterance) == "" {
		utterance = "Hello"
	}

	contents := []*genai.Content{genai.NewContentFromText(utterance, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   int32(g.maxOutputTokens),
		ResponseMIMEType:  responseMIMEType,
	}

	var response *genai.GenerateContentResponse
	err := retry.Do(ctx, g.policy, g.logger, "gemini.generate", func(ctx context.Context) error {
		var err error
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		return classify(err)
	})
	if err != nil {
		g.logger.Error("Failed to generate reply", zap.Error(err))
		return "", &domain.UpstreamError{Provider: "gemini", Err: err}
	}

	text := responseText(response)
	if text == "" {
		return "", fmt.Errorf("empty response from model: %w", domain.ErrMalformedReply)
	}

	g.logger.Info("Reply generated",
		zap.String("utterancePreview", preview(utterance)),
		zap.String("responsePreview", preview(text)))

	return text, nil
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return text.String()
}

// classify turns genai API errors into status errors the retry policy understands
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &retry.StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &retry.StatusError{StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return err
}

func preview(s string) string {
	return lo.Substring(s, 0, 50)
}
