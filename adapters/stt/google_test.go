package stt

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/domain/repositories"
	"github.com/satriahrh/talking-avatar/internal/retry"
)

var _ repositories.SpeechToText = &GoogleSpeechToText{}

func testConfig() GoogleSpeechConfig {
	return GoogleSpeechConfig{Retry: retry.Policy{Attempts: 2, Backoff: time.Millisecond, Timeout: time.Second}}
}

func response(transcripts ...string) *speechpb.RecognizeResponse {
	resp := &speechpb.RecognizeResponse{}
	for _, t := range transcripts {
		resp.Results = append(resp.Results, &speechpb.SpeechRecognitionResult{
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: t}},
		})
	}
	return resp
}

func TestGoogleSpeechToText_TranscribeAudio(t *testing.T) {
	var got *speechpb.RecognizeRequest
	g := newGoogleSpeechToText(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		got = req
		return response("hola", " que tal "), nil
	}, testConfig(), zaptest.NewLogger(t))

	text, err := g.TranscribeAudio(context.Background(), []byte("RIFF"), repositories.AudioConfig{Encoding: "WAV"})
	require.NoError(t, err)
	assert.Equal(t, "hola que tal", text)

	require.NotNil(t, got)
	assert.Equal(t, speechpb.RecognitionConfig_LINEAR16, got.GetConfig().GetEncoding())
	assert.Equal(t, defaultLanguage, got.GetConfig().GetLanguageCode())
	assert.Zero(t, got.GetConfig().GetSampleRateHertz())
	assert.Equal(t, []byte("RIFF"), got.GetAudio().GetContent())
}

func TestGoogleSpeechToText_NoSpeech(t *testing.T) {
	g := newGoogleSpeechToText(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return response(), nil
	}, testConfig(), zaptest.NewLogger(t))

	_, err := g.TranscribeAudio(context.Background(), []byte("RIFF"), repositories.AudioConfig{Encoding: "WAV"})
	assert.Error(t, err)
}

func TestGoogleSpeechToText_RejectsInput(t *testing.T) {
	g := newGoogleSpeechToText(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		t.Fatal("recognize must not be called")
		return nil, nil
	}, testConfig(), zaptest.NewLogger(t))

	_, err := g.TranscribeAudio(context.Background(), nil, repositories.AudioConfig{Encoding: "WAV"})
	assert.Error(t, err)

	_, err = g.TranscribeAudio(context.Background(), []byte("x"), repositories.AudioConfig{Encoding: "AIFF"})
	assert.Error(t, err)
}

func TestGoogleSpeechToText_RetriesUnavailable(t *testing.T) {
	calls := 0
	g := newGoogleSpeechToText(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		calls++
		if calls == 1 {
			return nil, status.Error(codes.Unavailable, "try again")
		}
		return response("listo"), nil
	}, testConfig(), zaptest.NewLogger(t))

	text, err := g.TranscribeAudio(context.Background(), []byte("RIFF"), repositories.AudioConfig{Encoding: "WAV"})
	require.NoError(t, err)
	assert.Equal(t, "listo", text)
	assert.Equal(t, 2, calls)
}

func TestGoogleSpeechToText_PermissionDeniedIsNotRetried(t *testing.T) {
	calls := 0
	g := newGoogleSpeechToText(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		calls++
		return nil, status.Error(codes.PermissionDenied, "no")
	}, testConfig(), zaptest.NewLogger(t))

	_, err := g.TranscribeAudio(context.Background(), []byte("RIFF"), repositories.AudioConfig{Encoding: "WAV"})

	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, 1, calls)
}

func TestGetAudioEncoding(t *testing.T) {
	tests := []struct {
		input   string
		want    speechpb.RecognitionConfig_AudioEncoding
		wantErr bool
	}{
		{"WAV", speechpb.RecognitionConfig_LINEAR16, false},
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16, false},
		{"FLAC", speechpb.RecognitionConfig_FLAC, false},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS, false},
		{"wav", speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := getAudioEncoding(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}
