package lipsync

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/talking-avatar/adapters/artifacts"
	"github.com/satriahrh/talking-avatar/domain/repositories"
	"github.com/satriahrh/talking-avatar/internal/saga"
)

const cuesJSON = `{"metadata":{"soundFile":"x.wav","duration":0.5},"mouthCues":[{"start":0,"end":0.5,"value":"X"}]}`

type fakeTTS struct {
	err   error
	texts []string
}

func (f *fakeTTS) SynthesizeToFile(ctx context.Context, text, destPath string) error {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(destPath, []byte("mp3:"+text), 0o644)
}

type fakeTranscoder struct {
	fail  bool
	calls [][2]string
}

func (f *fakeTranscoder) Transcode(ctx context.Context, src, dst string) repositories.ProcessResult {
	f.calls = append(f.calls, [2]string{src, dst})
	if f.fail {
		return repositories.ProcessResult{Reason: "exited with code 1"}
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return repositories.ProcessResult{Reason: err.Error()}
	}
	if err := os.WriteFile(dst, append([]byte("converted:"), data...), 0o644); err != nil {
		return repositories.ProcessResult{Reason: err.Error()}
	}
	return repositories.ProcessResult{Success: true, OutputPath: dst}
}

type fakeAnalyzer struct {
	fail bool
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, wavPath, outPath string) repositories.ProcessResult {
	if f.fail {
		return repositories.ProcessResult{Reason: "recognizer crashed"}
	}
	if err := os.WriteFile(outPath, []byte(cuesJSON), 0o644); err != nil {
		return repositories.ProcessResult{Reason: err.Error()}
	}
	return repositories.ProcessResult{Success: true, OutputPath: outPath}
}

type fixture struct {
	tts        *fakeTTS
	transcoder *fakeTranscoder
	analyzer   *fakeAnalyzer
	store      *artifacts.FileStore
	dir        string
	pipeline   *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()
	store, err := artifacts.NewFileStore(dir, logger)
	require.NoError(t, err)

	f := &fixture{
		tts:        &fakeTTS{},
		transcoder: &fakeTranscoder{},
		analyzer:   &fakeAnalyzer{},
		store:      store,
		dir:        dir,
	}
	f.pipeline, err = NewPipeline(saga.NewManager(logger), Config{
		TTS:        f.tts,
		Transcoder: f.transcoder,
		Analyzer:   f.analyzer,
		Store:      store,
	}, logger)
	require.NoError(t, err)
	return f
}

func (f *fixture) namespace(t *testing.T) repositories.Namespace {
	ns, err := f.store.Allocate()
	require.NoError(t, err)
	return ns
}

func TestPipeline_Fragment(t *testing.T) {
	f := newFixture(t)
	ns := f.namespace(t)

	out, err := f.pipeline.Fragment(context.Background(), ns, 1, "Hola")
	require.NoError(t, err)

	assert.Equal(t, FragmentComplete, out.State)
	audio, err := base64.StdEncoding.DecodeString(out.Audio)
	require.NoError(t, err)
	assert.Equal(t, "mp3:Hola", string(audio))
	assert.JSONEq(t, cuesJSON, string(out.LipSync))

	require.Len(t, f.transcoder.calls, 1)
	assert.Equal(t, filepath.Join(f.dir, string(ns), "message_1.mp3"), f.transcoder.calls[0][0])
	assert.Equal(t, filepath.Join(f.dir, string(ns), "message_1.wav"), f.transcoder.calls[0][1])
}

func TestPipeline_FragmentTranscodeFailureRemovesAudio(t *testing.T) {
	f := newFixture(t)
	f.transcoder.fail = true
	ns := f.namespace(t)

	out, err := f.pipeline.Fragment(context.Background(), ns, 0, "Hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg failed: exited with code 1")

	assert.Equal(t, FragmentFailed, out.State)
	assert.Equal(t, StepTranscode, out.FailedStep)
	assert.Empty(t, out.Audio)

	_, statErr := os.Stat(filepath.Join(f.dir, string(ns), "message_0.mp3"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestPipeline_FragmentAnalyzeFailure(t *testing.T) {
	f := newFixture(t)
	f.analyzer.fail = true
	ns := f.namespace(t)

	out, err := f.pipeline.Fragment(context.Background(), ns, 0, "Hola")
	require.Error(t, err)
	assert.Equal(t, StepAnalyze, out.FailedStep)

	entries, readErr := os.ReadDir(filepath.Join(f.dir, string(ns)))
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestPipeline_FragmentSynthesisFailure(t *testing.T) {
	f := newFixture(t)
	f.tts.err = errors.New("quota exceeded")

	out, err := f.pipeline.Fragment(context.Background(), f.namespace(t), 0, "Hola")
	require.Error(t, err)
	assert.Equal(t, StepSynthesize, out.FailedStep)
	assert.Empty(t, f.transcoder.calls)
}

func TestPipeline_Recording(t *testing.T) {
	f := newFixture(t)
	ns := f.namespace(t)

	out, err := f.pipeline.Recording(context.Background(), ns, []byte("RIFF....WAVE"))
	require.NoError(t, err)

	audio, err := base64.StdEncoding.DecodeString(out.Audio)
	require.NoError(t, err)
	assert.Equal(t, "RIFF....WAVE", string(audio))
	assert.JSONEq(t, cuesJSON, string(out.LipSync))

	require.Len(t, f.transcoder.calls, 1)
	assert.Equal(t, filepath.Join(f.dir, string(ns), "recorded_audio.wav"), f.transcoder.calls[0][0])
	assert.Equal(t, filepath.Join(f.dir, string(ns), "recorded_audio.mp3"), f.transcoder.calls[0][1])
	assert.Empty(t, f.tts.texts)
}

func TestPipeline_RecordingEmptyUpload(t *testing.T) {
	f := newFixture(t)

	out, err := f.pipeline.Recording(context.Background(), f.namespace(t), nil)
	require.Error(t, err)
	assert.Equal(t, StepSaveUpload, out.FailedStep)
}

func TestPipeline_WithoutTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store, err := artifacts.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)

	p, err := NewPipeline(saga.NewManager(logger), Config{
		Transcoder: &fakeTranscoder{},
		Analyzer:   &fakeAnalyzer{},
		Store:      store,
	}, logger)
	require.NoError(t, err)

	assert.False(t, p.CanSynthesize())
	_, err = p.Fragment(context.Background(), "", 0, "Hola")
	assert.Error(t, err)

	_, err = NewPipeline(saga.NewManager(logger), Config{Store: store}, logger)
	assert.Error(t, err)
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, FragmentPending, StateOf(nil))
	assert.Equal(t, FragmentComplete, StateOf(&saga.SagaInstance{State: saga.SagaStateCompleted}))
	assert.Equal(t, FragmentFailed, StateOf(&saga.SagaInstance{State: saga.SagaStateCompensated}))

	running := &saga.SagaInstance{
		State: saga.SagaStateRunning,
		Steps: []saga.StepExecution{
			{ID: StepSynthesize, State: saga.StepStateCompleted},
			{ID: StepTranscode, State: saga.StepStateCompleted},
			{ID: StepAnalyze, State: saga.StepStateRunning},
		},
	}
	assert.Equal(t, FragmentTranscoded, StateOf(running))

	running.Steps[2].State = saga.StepStateCompleted
	assert.Equal(t, FragmentAnalyzed, StateOf(running))
}
