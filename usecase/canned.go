package usecase

import (
	"fmt"

	"github.com/satriahrh/talking-avatar/domain/entities"
	"github.com/satriahrh/talking-avatar/domain/repositories"
)

// cannedLine is a pre-recorded message whose audio and mouth cues ship with
// the server under the artifact directory as <name>.wav and <name>.json.
type cannedLine struct {
	name             string
	text             string
	facialExpression entities.FacialExpression
	animation        entities.Animation
}

var greeting = []cannedLine{
	{
		name:             "intro_0",
		text:             "Hey dear... How was your day?",
		facialExpression: entities.ExpressionSmile,
		animation:        entities.AnimationTalking1,
	},
	{
		name:             "intro_1",
		text:             "I missed you so much... Please don't go for so long!",
		facialExpression: entities.ExpressionSad,
		animation:        entities.AnimationTalking1,
	},
}

var configurationNeeded = []cannedLine{
	{
		name:             "api_0",
		text:             "Please my dear, don't forget to add your API keys!",
		facialExpression: entities.ExpressionAngry,
		animation:        entities.AnimationAngry,
	},
	{
		name:             "api_1",
		text:             "You don't want to ruin Wawa Sensei with a crazy ChatGPT and ElevenLabs bill, right?",
		facialExpression: entities.ExpressionSmile,
		animation:        entities.AnimationLaughing,
	},
}

func loadCanned(store repositories.ArtifactStore, lines []cannedLine) ([]entities.ReplyMessage, error) {
	messages := make([]entities.ReplyMessage, 0, len(lines))
	for _, line := range lines {
		audio, err := store.ReadAudio(store.Path("", line.name, repositories.ExtWAV))
		if err != nil {
			return nil, fmt.Errorf("canned message %s: %w", line.name, err)
		}
		lipSync, err := store.ReadLipSync(store.Path("", line.name, repositories.ExtJSON))
		if err != nil {
			return nil, fmt.Errorf("canned message %s: %w", line.name, err)
		}

		messages = append(messages, entities.ReplyMessage{
			Text:             line.text,
			Audio:            audio,
			LipSync:          lipSync,
			FacialExpression: line.facialExpression,
			Animation:        line.animation,
		})
	}
	return messages, nil
}
