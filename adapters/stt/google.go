package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/domain/repositories"
	"github.com/satriahrh/talking-avatar/internal/retry"
)

const defaultLanguage = "es-ES"

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client    *speech.Client
	recognize recognizeFunc
	language  string
	policy    retry.Policy
	logger    *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// GoogleSpeechConfig holds configuration for the Google speech adapter.
// Credentials come from Application Default Credentials.
type GoogleSpeechConfig struct {
	Language string
	Retry    retry.Policy
}

// NewGoogleSpeechToText dials the Cloud Speech API
func NewGoogleSpeechToText(ctx context.Context, config GoogleSpeechConfig, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	g := newGoogleSpeechToText(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	}, config, logger)
	g.client = client
	return g, nil
}

func newGoogleSpeechToText(recognize recognizeFunc, config GoogleSpeechConfig, logger *zap.Logger) *GoogleSpeechToText {
	language := config.Language
	if language == "" {
		language = defaultLanguage
		logger.Info("Using default recognition language", zap.String("language", language))
	}

	policy := config.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}

	return &GoogleSpeechToText{
		recognize: recognize,
		language:  language,
		policy:    policy,
		logger:    logger,
	}
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// TranscribeAudio converts audio data to text using Google Cloud Speech-to-Text (non-streaming)
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return "", err
	}

	language := config.Language
	if language == "" {
		language = g.language
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
	}
	// WAV headers carry the rate; the API rejects a mismatched explicit value
	if config.SampleRate > 0 {
		recognitionConfig.SampleRateHertz = int32(config.SampleRate)
	}

	req := &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	}

	var resp *speechpb.RecognizeResponse
	err = retry.Do(ctx, g.policy, g.logger, "google.recognize", func(ctx context.Context) error {
		var err error
		resp, err = g.recognize(ctx, req)
		return classify(err)
	})
	if err != nil {
		return "", &domain.UpstreamError{Provider: "google-speech", Err: err}
	}

	var transcript []string
	for _, result := range resp.GetResults() {
		if alternatives := result.GetAlternatives(); len(alternatives) > 0 {
			// Take the best alternative
			transcript = append(transcript, strings.TrimSpace(alternatives[0].GetTranscript()))
		}
	}

	if len(transcript) == 0 {
		return "", fmt.Errorf("no speech detected in audio")
	}

	text := strings.Join(transcript, " ")
	g.logger.Info("Audio transcribed",
		zap.Int("audioSize", len(audioData)),
		zap.String("language", language),
		zap.Int("transcriptLength", len(text)))
	return text, nil
}

type grpcError struct {
	err  error
	code codes.Code
}

func (e *grpcError) Error() string { return e.err.Error() }
func (e *grpcError) Unwrap() error { return e.err }

func (e *grpcError) Transient() bool {
	switch e.code {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
		return true
	}
	return false
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if s, ok := status.FromError(err); ok {
		return &grpcError{err: err, code: s.Code()}
	}
	return err
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
