// Package lipsync turns text or a recording into base64 audio plus a mouth-cue
// document by running the synthesis, transcode, analysis and read-back steps as
// a saga. A failed step removes whatever the earlier steps wrote.
package lipsync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain/entities"
	"github.com/satriahrh/talking-avatar/domain/repositories"
	"github.com/satriahrh/talking-avatar/internal/saga"
)

const (
	fragmentDefinitionID  = "reply_fragment"
	recordingDefinitionID = "recorded_audio"
	recordingName         = "recorded_audio"
)

// FragmentState is where a reply fragment stands in the pipeline
type FragmentState string

const (
	FragmentPending     FragmentState = "pending"
	FragmentSynthesized FragmentState = "synthesized"
	FragmentTranscoded  FragmentState = "transcoded"
	FragmentAnalyzed    FragmentState = "analyzed"
	FragmentComplete    FragmentState = "complete"
	FragmentFailed      FragmentState = "failed"
)

// StateOf maps a finished saga instance onto the fragment state machine
func StateOf(instance *saga.SagaInstance) FragmentState {
	if instance == nil {
		return FragmentPending
	}
	switch instance.State {
	case saga.SagaStateCompleted:
		return FragmentComplete
	case saga.SagaStateFailed, saga.SagaStateCompensated:
		return FragmentFailed
	}

	switch instance.LastCompleted() {
	case StepSynthesize, StepSaveUpload:
		return FragmentSynthesized
	case StepTranscode:
		return FragmentTranscoded
	case StepAnalyze:
		return FragmentAnalyzed
	case StepReadBack:
		return FragmentComplete
	}
	return FragmentPending
}

// Output is what the pipeline produces for one fragment or recording
type Output struct {
	Audio   string
	LipSync entities.LipSync
	State   FragmentState
	// FailedStep names the step that failed, if any
	FailedStep saga.StepID
}

type definition struct {
	id      string
	steps   []saga.Step
	timeout time.Duration
}

func (d *definition) ID() string             { return d.id }
func (d *definition) Steps() []saga.Step     { return d.steps }
func (d *definition) Timeout() time.Duration { return d.timeout }

// Config holds the collaborators of a Pipeline
type Config struct {
	TTS        repositories.TextToSpeech // optional: required for Fragment only
	Transcoder repositories.Transcoder
	Analyzer   repositories.Analyzer
	Store      repositories.ArtifactStore
	// Timeout bounds one whole fragment; zero means no bound beyond the
	// per-call timeouts
	Timeout time.Duration
}

// Pipeline runs the lip-sync sagas
type Pipeline struct {
	manager   *saga.Manager
	fragment  *definition
	recording *definition
	logger    *zap.Logger
}

// NewPipeline wires the step sagas
func NewPipeline(manager *saga.Manager, config Config, logger *zap.Logger) (*Pipeline, error) {
	if config.Transcoder == nil || config.Analyzer == nil || config.Store == nil {
		return nil, fmt.Errorf("transcoder, analyzer and artifact store are required")
	}

	p := &Pipeline{
		manager: manager,
		logger:  logger,
		recording: &definition{
			id: recordingDefinitionID,
			steps: []saga.Step{
				NewSaveUploadStep(config.Store, logger),
				NewWAVToMP3Step(config.Transcoder, config.Store, logger),
				NewAnalyzeStep(config.Analyzer, config.Store, logger),
				NewReadBackStep(config.Store, DataKeyWAVPath, logger),
			},
			timeout: config.Timeout,
		},
	}

	if config.TTS != nil {
		p.fragment = &definition{
			id: fragmentDefinitionID,
			steps: []saga.Step{
				NewSynthesizeStep(config.TTS, config.Store, logger),
				NewMP3ToWAVStep(config.Transcoder, config.Store, logger),
				NewAnalyzeStep(config.Analyzer, config.Store, logger),
				NewReadBackStep(config.Store, DataKeyMP3Path, logger),
			},
			timeout: config.Timeout,
		}
	}

	return p, nil
}

// CanSynthesize reports whether Fragment is available
func (p *Pipeline) CanSynthesize() bool {
	return p.fragment != nil
}

// Fragment synthesizes text as artifact message_<index> in ns
func (p *Pipeline) Fragment(ctx context.Context, ns repositories.Namespace, index int, text string) (Output, error) {
	if p.fragment == nil {
		return Output{State: FragmentFailed}, fmt.Errorf("text-to-speech is not configured")
	}

	data := saga.SagaData{
		DataKeyNamespace: ns,
		DataKeyName:      fmt.Sprintf("message_%d", index),
		DataKeyText:      text,
	}
	return p.run(ctx, p.fragment, data, zap.Int("fragment", index))
}

// Recording analyzes an uploaded wav in ns
func (p *Pipeline) Recording(ctx context.Context, ns repositories.Namespace, upload []byte) (Output, error) {
	data := saga.SagaData{
		DataKeyNamespace: ns,
		DataKeyName:      recordingName,
		DataKeyUpload:    upload,
	}
	return p.run(ctx, p.recording, data, zap.Int("uploadBytes", len(upload)))
}

func (p *Pipeline) run(ctx context.Context, def *definition, data saga.SagaData, field zap.Field) (Output, error) {
	instance, err := p.manager.Run(ctx, def, data)
	out := Output{State: StateOf(instance)}
	if err != nil {
		for _, step := range instance.Steps {
			if step.State == saga.StepStateFailed {
				out.FailedStep = step.ID
			}
		}
		p.logger.Warn("Lip-sync pipeline failed",
			field,
			zap.String("definition", def.id),
			zap.String("failedStep", string(out.FailedStep)),
			zap.Error(err))
		return out, err
	}

	out.Audio = instance.Data.String(DataKeyAudio)
	out.LipSync, _ = instance.Data[DataKeyLipSync].(entities.LipSync)

	p.logger.Info("Lip-sync pipeline completed", field, zap.String("definition", def.id))
	return out, nil
}
