package entities

import (
	"encoding/json"
	"fmt"
)

// LipSync is the analyzer's timing document, kept byte-for-byte so the
// renderer receives exactly what the analyzer produced.
type LipSync = json.RawMessage

// MouthCue is a single time-aligned mouth shape
type MouthCue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Value string  `json:"value"`
}

// LipSyncMetadata describes the analyzed sound file
type LipSyncMetadata struct {
	SoundFile string  `json:"soundFile"`
	Duration  float64 `json:"duration"`
}

// LipSyncData is the typed view of a LipSync document
type LipSyncData struct {
	Metadata  LipSyncMetadata `json:"metadata"`
	MouthCues []MouthCue      `json:"mouthCues"`
}

// ParseLipSync decodes and sanity-checks an analyzer document
func ParseLipSync(raw []byte) (*LipSyncData, error) {
	var data LipSyncData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode lip-sync data: %w", err)
	}

	for i, cue := range data.MouthCues {
		if cue.End < cue.Start {
			return nil, fmt.Errorf("mouth cue %d ends before it starts (%f < %f)", i, cue.End, cue.Start)
		}
	}

	return &data, nil
}
