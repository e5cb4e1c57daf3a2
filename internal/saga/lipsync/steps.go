package lipsync

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain/repositories"
	"github.com/satriahrh/talking-avatar/internal/saga"
)

// Data keys shared by the lip-sync steps
const (
	DataKeyNamespace = "namespace"
	DataKeyName      = "name"
	DataKeyText      = "text"
	DataKeyUpload    = "upload"
	DataKeyMP3Path   = "mp3_path"
	DataKeyWAVPath   = "wav_path"
	DataKeyJSONPath  = "json_path"
	DataKeyAudio     = "audio"
	DataKeyLipSync   = "lipsync"
)

// Step ids
const (
	StepSynthesize saga.StepID = "synthesize"
	StepSaveUpload saga.StepID = "save_upload"
	StepTranscode  saga.StepID = "transcode"
	StepAnalyze    saga.StepID = "analyze"
	StepReadBack   saga.StepID = "read_back"
)

func namespace(data saga.SagaData) repositories.Namespace {
	ns, _ := data[DataKeyNamespace].(repositories.Namespace)
	return ns
}

func artifactPath(store repositories.ArtifactStore, data saga.SagaData, ext string) string {
	return store.Path(namespace(data), data.String(DataKeyName), ext)
}

func removeAt(store repositories.ArtifactStore, data saga.SagaData, key string) error {
	path := data.String(key)
	if path == "" {
		return nil
	}
	return store.Remove(path)
}

// SynthesizeStep renders the fragment text to mp3
type SynthesizeStep struct {
	tts    repositories.TextToSpeech
	store  repositories.ArtifactStore
	logger *zap.Logger
}

func NewSynthesizeStep(tts repositories.TextToSpeech, store repositories.ArtifactStore, logger *zap.Logger) *SynthesizeStep {
	return &SynthesizeStep{tts: tts, store: store, logger: logger}
}

func (s *SynthesizeStep) ID() saga.StepID {
	return StepSynthesize
}

func (s *SynthesizeStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	text := data.String(DataKeyText)
	path := artifactPath(s.store, data, repositories.ExtMP3)

	if err := s.tts.SynthesizeToFile(ctx, text, path); err != nil {
		return saga.Fail(fmt.Errorf("text-to-speech failed: %w", err))
	}

	data[DataKeyMP3Path] = path
	return saga.Ok(path)
}

func (s *SynthesizeStep) Compensate(ctx context.Context, data saga.SagaData) error {
	return removeAt(s.store, data, DataKeyMP3Path)
}

// SaveUploadStep writes an uploaded recording to wav
type SaveUploadStep struct {
	store  repositories.ArtifactStore
	logger *zap.Logger
}

func NewSaveUploadStep(store repositories.ArtifactStore, logger *zap.Logger) *SaveUploadStep {
	return &SaveUploadStep{store: store, logger: logger}
}

func (s *SaveUploadStep) ID() saga.StepID {
	return StepSaveUpload
}

func (s *SaveUploadStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	upload, ok := data[DataKeyUpload].([]byte)
	if !ok || len(upload) == 0 {
		return saga.Fail(fmt.Errorf("missing or empty upload"))
	}

	path := artifactPath(s.store, data, repositories.ExtWAV)
	if err := s.store.Save(path, bytes.NewReader(upload)); err != nil {
		return saga.Fail(err)
	}

	s.logger.Debug("Recording saved", zap.String("path", path), zap.Int("bytes", len(upload)))
	data[DataKeyWAVPath] = path
	return saga.Ok(path)
}

func (s *SaveUploadStep) Compensate(ctx context.Context, data saga.SagaData) error {
	return removeAt(s.store, data, DataKeyWAVPath)
}

// TranscodeStep converts the artifact under one path key into another format
type TranscodeStep struct {
	transcoder repositories.Transcoder
	store      repositories.ArtifactStore
	from       string
	to         string
	ext        string
	logger     *zap.Logger
}

// NewMP3ToWAVStep decodes synthesized speech for the analyzer
func NewMP3ToWAVStep(transcoder repositories.Transcoder, store repositories.ArtifactStore, logger *zap.Logger) *TranscodeStep {
	return &TranscodeStep{transcoder: transcoder, store: store, from: DataKeyMP3Path, to: DataKeyWAVPath, ext: repositories.ExtWAV, logger: logger}
}

// NewWAVToMP3Step encodes a recording to mp3
func NewWAVToMP3Step(transcoder repositories.Transcoder, store repositories.ArtifactStore, logger *zap.Logger) *TranscodeStep {
	return &TranscodeStep{transcoder: transcoder, store: store, from: DataKeyWAVPath, to: DataKeyMP3Path, ext: repositories.ExtMP3, logger: logger}
}

func (s *TranscodeStep) ID() saga.StepID {
	return StepTranscode
}

func (s *TranscodeStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	src := data.String(s.from)
	if src == "" {
		return saga.Fail(fmt.Errorf("missing %s from previous step", s.from))
	}

	dst := artifactPath(s.store, data, s.ext)
	result := s.transcoder.Transcode(ctx, src, dst)
	if err := result.Err("ffmpeg"); err != nil {
		return saga.Fail(err)
	}

	data[s.to] = result.OutputPath
	return saga.Ok(result.OutputPath)
}

func (s *TranscodeStep) Compensate(ctx context.Context, data saga.SagaData) error {
	return removeAt(s.store, data, s.to)
}

// AnalyzeStep derives mouth cues from the wav
type AnalyzeStep struct {
	analyzer repositories.Analyzer
	store    repositories.ArtifactStore
	logger   *zap.Logger
}

func NewAnalyzeStep(analyzer repositories.Analyzer, store repositories.ArtifactStore, logger *zap.Logger) *AnalyzeStep {
	return &AnalyzeStep{analyzer: analyzer, store: store, logger: logger}
}

func (s *AnalyzeStep) ID() saga.StepID {
	return StepAnalyze
}

func (s *AnalyzeStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	wav := data.String(DataKeyWAVPath)
	if wav == "" {
		return saga.Fail(fmt.Errorf("missing %s from previous step", DataKeyWAVPath))
	}

	out := artifactPath(s.store, data, repositories.ExtJSON)
	result := s.analyzer.Analyze(ctx, wav, out)
	if err := result.Err("rhubarb"); err != nil {
		return saga.Fail(err)
	}

	data[DataKeyJSONPath] = result.OutputPath
	return saga.Ok(result.OutputPath)
}

func (s *AnalyzeStep) Compensate(ctx context.Context, data saga.SagaData) error {
	return removeAt(s.store, data, DataKeyJSONPath)
}

// ReadBackStep loads the finished audio and lip-sync document
type ReadBackStep struct {
	store    repositories.ArtifactStore
	audioKey string
	logger   *zap.Logger
}

// NewReadBackStep reads the audio found under audioKey
func NewReadBackStep(store repositories.ArtifactStore, audioKey string, logger *zap.Logger) *ReadBackStep {
	return &ReadBackStep{store: store, audioKey: audioKey, logger: logger}
}

func (s *ReadBackStep) ID() saga.StepID {
	return StepReadBack
}

func (s *ReadBackStep) Execute(ctx context.Context, data saga.SagaData) saga.StepResult {
	audio, err := s.store.ReadAudio(data.String(s.audioKey))
	if err != nil {
		return saga.Fail(err)
	}

	lipSync, err := s.store.ReadLipSync(data.String(DataKeyJSONPath))
	if err != nil {
		return saga.Fail(err)
	}

	data[DataKeyAudio] = audio
	data[DataKeyLipSync] = lipSync
	return saga.Ok(nil)
}

// Compensate is a no-op; nothing is written
func (s *ReadBackStep) Compensate(ctx context.Context, data saga.SagaData) error {
	return nil
}
