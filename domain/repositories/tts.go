package repositories

import "context"

// TextToSpeech renders a line of text into an audio file
type TextToSpeech interface {
	SynthesizeToFile(ctx context.Context, text string, destPath string) error
}

// VoiceCatalog lists the voices available to the synthesis account
type VoiceCatalog interface {
	GetAvailableVoices(ctx context.Context) ([]map[string]interface{}, error)
}
