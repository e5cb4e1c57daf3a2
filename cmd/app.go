package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/adapters/artifacts"
	"github.com/satriahrh/talking-avatar/adapters/llm"
	"github.com/satriahrh/talking-avatar/adapters/process"
	"github.com/satriahrh/talking-avatar/adapters/stt"
	"github.com/satriahrh/talking-avatar/adapters/tts"
	"github.com/satriahrh/talking-avatar/adapters/vectorindex"
	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/domain/repositories"
	"github.com/satriahrh/talking-avatar/internal/config"
	"github.com/satriahrh/talking-avatar/internal/retry"
	"github.com/satriahrh/talking-avatar/internal/saga"
	"github.com/satriahrh/talking-avatar/internal/saga/lipsync"
	"github.com/satriahrh/talking-avatar/usecase"
)

// app holds every wired component. Providers without credentials are left
// nil and the services fall back accordingly.
type app struct {
	store        *artifacts.FileStore
	pipeline     *lipsync.Pipeline
	conversation *usecase.ConversationService
	knowledge    *usecase.KnowledgeService
	voices       repositories.VoiceCatalog

	closers []func() error
	logger  *zap.Logger
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger}
	policy := cfg.RetryPolicy()

	var (
		dialogue    repositories.DialogueGenerator
		embedder    repositories.Embedder
		speech      repositories.TextToSpeech
		index       repositories.VectorIndex
		transcriber repositories.SpeechToText
	)

	if cfg.Gemini.APIKey != "" {
		geminiConfig := llm.GeminiConfig{
			APIKey:          cfg.Gemini.APIKey,
			Model:           cfg.Gemini.Model,
			EmbeddingModel:  cfg.Gemini.EmbeddingModel,
			Temperature:     cfg.Gemini.Temperature,
			MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
			MaxReplies:      cfg.Gemini.MaxReplies,
			Retry:           policy,
		}
		client, err := llm.NewGeminiClient(ctx, geminiConfig)
		if err != nil {
			return nil, err
		}
		d, err := llm.NewGeminiDialogue(client, geminiConfig, logger)
		if err != nil {
			return nil, err
		}
		dialogue = d
		embedder = llm.NewGeminiEmbedder(client, geminiConfig, logger)
	} else {
		logger.Warn("GEMINI_API_KEY is not set, chat answers with the configuration reminder")
	}

	if cfg.ElevenLabs.APIKey != "" {
		e, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
			APIKey:       cfg.ElevenLabs.APIKey,
			APIBaseURL:   cfg.ElevenLabs.APIBaseURL,
			VoiceID:      cfg.ElevenLabs.VoiceID,
			ModelID:      cfg.ElevenLabs.ModelID,
			OutputFormat: cfg.ElevenLabs.OutputFormat,
			Stability:    cfg.ElevenLabs.Stability,
			Clarity:      cfg.ElevenLabs.Clarity,
			Retry:        policy,
		}, logger)
		if err != nil {
			return nil, err
		}
		speech = e
		a.voices = e
	} else {
		logger.Warn("ELEVEN_LABS_API_KEY is not set, speech synthesis is disabled")
	}

	idx, err := a.buildIndex(cfg, policy)
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		logger.Warn("Knowledge index is not configured", zap.String("backend", cfg.Knowledge.Backend), zap.Error(err))
	case err != nil:
		return nil, err
	default:
		index = idx
	}

	if cfg.STT.Enabled {
		g, err := stt.NewGoogleSpeechToText(ctx, stt.GoogleSpeechConfig{Language: cfg.STT.Language, Retry: policy}, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		transcriber = g
	}

	a.store, err = artifacts.NewFileStore(cfg.ArtifactDir, logger)
	if err != nil {
		return nil, err
	}

	runner := process.NewRunner(cfg.CallTimeout, logger)
	a.pipeline, err = lipsync.NewPipeline(saga.NewManager(logger), lipsync.Config{
		TTS:        speech,
		Transcoder: process.NewFFmpeg(cfg.FFmpegPath, runner, logger),
		Analyzer:   process.NewRhubarb(cfg.RhubarbPath, cfg.RhubarbRecognizer, runner, logger),
		Store:      a.store,
	}, logger)
	if err != nil {
		return nil, err
	}

	a.conversation, err = usecase.NewConversationService(usecase.ConversationConfig{
		Dialogue:    dialogue,
		Pipeline:    a.pipeline,
		Store:       a.store,
		STT:         transcriber,
		STTLanguage: cfg.STT.Language,
		MaxReplies:  cfg.Gemini.MaxReplies,
	}, logger)
	if err != nil {
		return nil, err
	}

	a.knowledge = usecase.NewKnowledgeService(embedder, index, cfg.Knowledge.TopK, logger)
	return a, nil
}

func (a *app) buildIndex(cfg config.Config, policy retry.Policy) (repositories.VectorIndex, error) {
	switch cfg.Knowledge.Backend {
	case config.BackendRedis:
		r, err := vectorindex.NewRedisIndex(vectorindex.RedisConfig{
			Addr:        cfg.Knowledge.RedisAddr,
			Password:    cfg.Knowledge.RedisPassword,
			Index:       cfg.Knowledge.RedisIndex,
			VectorField: cfg.Knowledge.RedisVectorField,
			Retry:       policy,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r.Close)
		return r, nil
	default:
		p, err := vectorindex.NewPineconeIndex(vectorindex.PineconeConfig{
			APIKey:    cfg.Knowledge.PineconeAPIKey,
			Index:     cfg.Knowledge.PineconeIndex,
			Namespace: cfg.Knowledge.PineconeNamespace,
			Retry:     policy,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close providers: %w", errors.Join(errs...))
	}
	return nil
}
