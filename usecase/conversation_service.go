package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/domain/entities"
	"github.com/satriahrh/talking-avatar/domain/repositories"
	"github.com/satriahrh/talking-avatar/internal/saga/lipsync"
)

const (
	defaultMaxReplies = 3
	recordingReply    = "Here is your response..."
)

// recognizable maps sniffed upload types onto speech recognition encodings
var recognizable = map[string]string{
	"audio/wav":  "LINEAR16",
	"audio/flac": "FLAC",
	"audio/ogg":  "OGG_OPUS",
	"video/webm": "WEBM_OPUS",
	"audio/webm": "WEBM_OPUS",
}

// ConversationConfig holds the collaborators of a ConversationService.
// Dialogue may be nil when the language model is not configured.
type ConversationConfig struct {
	Dialogue    repositories.DialogueGenerator
	Pipeline    *lipsync.Pipeline
	Store       repositories.ArtifactStore
	STT         repositories.SpeechToText // optional
	STTLanguage string
	MaxReplies  int
}

// ConversationService orchestrates the conversation flow
type ConversationService struct {
	dialogue    repositories.DialogueGenerator
	pipeline    *lipsync.Pipeline
	store       repositories.ArtifactStore
	stt         repositories.SpeechToText
	sttLanguage string
	maxReplies  int
	logger      *zap.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(config ConversationConfig, logger *zap.Logger) (*ConversationService, error) {
	if config.Pipeline == nil || config.Store == nil {
		return nil, fmt.Errorf("lip-sync pipeline and artifact store are required")
	}

	maxReplies := config.MaxReplies
	if maxReplies == 0 {
		maxReplies = defaultMaxReplies
	}

	return &ConversationService{
		dialogue:    config.Dialogue,
		pipeline:    config.Pipeline,
		store:       config.Store,
		stt:         config.STT,
		sttLanguage: config.STTLanguage,
		maxReplies:  maxReplies,
		logger:      logger,
	}, nil
}

// Configured reports whether both the language model and speech synthesis are available
func (s *ConversationService) Configured() bool {
	return s.dialogue != nil && s.pipeline.CanSynthesize()
}

// Chat answers a user message with fully voiced reply messages. An empty
// message gets the canned greeting; missing provider keys get the canned
// configuration reminder.
func (s *ConversationService) Chat(ctx context.Context, message string) ([]entities.ReplyMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if message == "" {
		s.logger.Info("Empty message, sending greeting")
		return loadCanned(s.store, greeting)
	}

	if !s.Configured() {
		s.logger.Warn("Language model or speech synthesis key missing, sending configuration reminder")
		return loadCanned(s.store, configurationNeeded)
	}

	raw, err := s.dialogue.GenerateReply(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("dialogue generation failed: %w", err)
	}

	messages, err := DecodeReply(raw, s.logger)
	if err != nil {
		s.logger.Error("Failed to decode reply", zap.String("rawPreview", lo.Substring(raw, 0, 200)), zap.Error(err))
		return nil, err
	}
	if len(messages) > s.maxReplies {
		s.logger.Warn("Model returned more messages than requested",
			zap.Int("count", len(messages)),
			zap.Int("maxReplies", s.maxReplies))
	}

	ns, err := s.store.Allocate()
	if err != nil {
		return nil, err
	}
	defer s.release(ns)

	for i := range messages {
		out, err := s.pipeline.Fragment(ctx, ns, i, messages[i].Text)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		messages[i].Audio = out.Audio
		messages[i].LipSync = out.LipSync
	}

	s.logger.Info("Chat reply ready", zap.Int("messages", len(messages)), zap.String("namespace", string(ns)))
	return messages, nil
}

// ProcessAudio lip-syncs a recorded utterance and returns it as a single
// message. The transcript is attached when speech recognition is enabled and
// succeeds.
func (s *ConversationService) ProcessAudio(ctx context.Context, upload []byte) (*entities.ReplyMessage, error) {
	if len(upload) == 0 {
		return nil, fmt.Errorf("empty upload: %w", domain.ErrUnsupportedMedia)
	}

	mime := mimetype.Detect(upload)
	if !isAudio(mime) {
		return nil, fmt.Errorf("%s: %w", mime.String(), domain.ErrUnsupportedMedia)
	}

	ns, err := s.store.Allocate()
	if err != nil {
		return nil, err
	}
	defer s.release(ns)

	out, err := s.pipeline.Recording(ctx, ns, upload)
	if err != nil {
		return nil, err
	}

	message := &entities.ReplyMessage{
		Text:             recordingReply,
		Audio:            out.Audio,
		LipSync:          out.LipSync,
		FacialExpression: entities.ExpressionSmile,
		Animation:        entities.AnimationTalking1,
		Transcript:       s.transcribe(ctx, upload, mime),
	}

	s.logger.Info("Recording processed",
		zap.String("mime", mime.String()),
		zap.Int("bytes", len(upload)),
		zap.Bool("transcribed", message.Transcript != ""))
	return message, nil
}

func (s *ConversationService) transcribe(ctx context.Context, upload []byte, mime *mimetype.MIME) string {
	if s.stt == nil {
		return ""
	}

	encoding, ok := recognizable[mime.String()]
	if !ok {
		s.logger.Debug("Upload format not supported by speech recognition", zap.String("mime", mime.String()))
		return ""
	}

	transcript, err := s.stt.TranscribeAudio(ctx, upload, repositories.AudioConfig{
		Encoding: encoding,
		Language: s.sttLanguage,
	})
	if err != nil {
		s.logger.Warn("Transcription failed", zap.Error(err))
		return ""
	}
	return transcript
}

func (s *ConversationService) release(ns repositories.Namespace) {
	if err := s.store.Release(ns); err != nil {
		s.logger.Warn("Failed to release artifacts", zap.String("namespace", string(ns)), zap.Error(err))
	}
}

func isAudio(mime *mimetype.MIME) bool {
	for m := mime; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			return true
		}
	}
	return mime.Is("video/webm")
}
