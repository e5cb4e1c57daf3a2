package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/internal/retry"
)

func testConfig(baseURL string) GeminiConfig {
	return GeminiConfig{
		APIKey:  "test-api-key",
		BaseURL: baseURL,
		Retry:   retry.Policy{Attempts: 2, Backoff: time.Millisecond, Timeout: 5 * time.Second},
	}
}

func newTestDialogue(t *testing.T, baseURL string) *GeminiDialogue {
	t.Helper()
	config := testConfig(baseURL)
	client, err := NewGeminiClient(context.Background(), config)
	require.NoError(t, err)
	dialogue, err := NewGeminiDialogue(client, config, zaptest.NewLogger(t))
	require.NoError(t, err)
	return dialogue
}

func candidateBody(text string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	})
	return string(body)
}

func TestValidateGeminiConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GeminiConfig
		wantErr bool
	}{
		{"valid", GeminiConfig{APIKey: "k"}, false},
		{"temperature too high", GeminiConfig{APIKey: "k", Temperature: 2.5}, true},
		{"negative tokens", GeminiConfig{APIKey: "k", MaxOutputTokens: -1}, true},
		{"negative replies", GeminiConfig{APIKey: "k", MaxReplies: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeminiConfig(tt.config)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}

	assert.ErrorIs(t, ValidateGeminiConfig(GeminiConfig{}), domain.ErrNotConfigured)
}

func TestPreview_KeepsRunesWhole(t *testing.T) {
	short := "¿Qué es la flotación?"
	assert.Equal(t, short, preview(short))

	long := strings.Repeat("ñá", 40)
	got := preview(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 50, utf8.RuneCountInString(got))
	assert.True(t, strings.HasPrefix(long, got))
}

func TestNewGeminiDialogue_Defaults(t *testing.T) {
	dialogue := newTestDialogue(t, "http://127.0.0.1:1")

	assert.Equal(t, defaultModel, dialogue.model)
	assert.InDelta(t, defaultTemperature, dialogue.temperature, 0.0001)
	assert.Equal(t, defaultMaxTokens, dialogue.maxOutputTokens)
	assert.Contains(t, dialogue.systemPrompt, "maximum of 3 messages")
}

func TestGeminiDialogue_GenerateReply(t *testing.T) {
	var request map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, defaultModel+":generateContent"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &request))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, candidateBody(`[{"text":"Hola","facialExpression":"smile","animation":"Talking_1"}]`))
	}))
	defer server.Close()

	dialogue := newTestDialogue(t, server.URL)
	reply, err := dialogue.GenerateReply(context.Background(), "Como funciona la chancadora?")
	require.NoError(t, err)
	assert.Equal(t, `[{"text":"Hola","facialExpression":"smile","animation":"Talking_1"}]`, reply)

	raw, _ := json.Marshal(request)
	assert.Contains(t, string(raw), "Como funciona la chancadora?")
	assert.Contains(t, string(raw), "virtual mining assistant")
	assert.Contains(t, string(raw), "application/json")
}

func TestGeminiDialogue_RetriesOverloadedModelOnce(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)
			return
		}
		io.WriteString(w, candidateBody(`[]`))
	}))
	defer server.Close()

	dialogue := newTestDialogue(t, server.URL)
	reply, err := dialogue.GenerateReply(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "[]", reply)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGeminiDialogue_BadRequestIsUpstreamError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer server.Close()

	dialogue := newTestDialogue(t, server.URL)
	_, err := dialogue.GenerateReply(context.Background(), "hi")

	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "gemini", upstream.Provider)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGeminiDialogue_EmptyCandidateIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	dialogue := newTestDialogue(t, server.URL)
	_, err := dialogue.GenerateReply(context.Background(), "hi")
	assert.ErrorIs(t, err, domain.ErrMalformedReply)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	err := classify(genai.APIError{Code: 429, Message: "quota"})
	assert.True(t, retry.IsTransient(err))

	err = classify(genai.APIError{Code: 403, Message: "denied"})
	assert.False(t, retry.IsTransient(err))

	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))
}

func TestGeminiEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, defaultEmbeddingModel)
		w.Header().Set("Content-Type", "application/json")
		// both the batch and single shapes, whichever the client asks for
		io.WriteString(w, `{"embeddings":[{"values":[0.1,0.2,0.3]}],"embedding":{"values":[0.1,0.2,0.3]}}`)
	}))
	defer server.Close()

	config := testConfig(server.URL)
	client, err := NewGeminiClient(context.Background(), config)
	require.NoError(t, err)
	embedder := NewGeminiEmbedder(client, config, zaptest.NewLogger(t))

	vector, err := embedder.Embed(context.Background(), "chancado primario")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)

	_, err = embedder.Embed(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrEmptyText)
}

func TestSystemPrompt(t *testing.T) {
	prompt := SystemPrompt(3)

	assert.Contains(t, prompt, "maximum of 3 messages")
	assert.Contains(t, prompt, "smile, sad, angry, surprised, funnyFace, default")
	assert.Contains(t, prompt, "Talking_1, Talking_2, Talking_3, Yelling, Idle, Waving")
}

// Integration test - only runs if GEMINI_API_KEY is set
func TestGeminiDialogue_Integration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping integration test - set GEMINI_API_KEY environment variable")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	config := GeminiConfig{APIKey: apiKey}
	client, err := NewGeminiClient(ctx, config)
	require.NoError(t, err)
	dialogue, err := NewGeminiDialogue(client, config, zaptest.NewLogger(t))
	require.NoError(t, err)

	reply, err := dialogue.GenerateReply(ctx, "Hello")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(reply)))
}
