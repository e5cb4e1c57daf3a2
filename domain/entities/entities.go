package entities

import (
	"errors"
	"strings"
)

// FacialExpression is the face the avatar shows while speaking a reply
type FacialExpression string

const (
	ExpressionSmile     FacialExpression = "smile"
	ExpressionSad       FacialExpression = "sad"
	ExpressionAngry     FacialExpression = "angry"
	ExpressionSurprised FacialExpression = "surprised"
	ExpressionFunnyFace FacialExpression = "funnyFace"
	ExpressionDefault   FacialExpression = "default"
)

// FacialExpressions lists the expressions the language model may choose from
var FacialExpressions = []FacialExpression{
	ExpressionSmile,
	ExpressionSad,
	ExpressionAngry,
	ExpressionSurprised,
	ExpressionFunnyFace,
	ExpressionDefault,
}

// Animation is the body clip the renderer plays while speaking a reply
type Animation string

const (
	AnimationTalking1 Animation = "Talking_1"
	AnimationTalking2 Animation = "Talking_2"
	AnimationTalking3 Animation = "Talking_3"
	AnimationYelling  Animation = "Yelling"
	AnimationIdle     Animation = "Idle"
	AnimationWaving   Animation = "Waving"

	// Only used by the canned configuration-needed sequence
	AnimationAngry    Animation = "Angry"
	AnimationLaughing Animation = "Laughing"
)

// Animations lists the animations the language model may choose from
var Animations = []Animation{
	AnimationTalking1,
	AnimationTalking2,
	AnimationTalking3,
	AnimationYelling,
	AnimationIdle,
	AnimationWaving,
}

// Valid reports whether the expression is one the model is allowed to pick
func (f FacialExpression) Valid() bool {
	for _, e := range FacialExpressions {
		if e == f {
			return true
		}
	}
	return false
}

// Valid reports whether the animation is one the model is allowed to pick
func (a Animation) Valid() bool {
	for _, v := range Animations {
		if v == a {
			return true
		}
	}
	return false
}

// ReplyMessage is one line the avatar speaks. Text, expression and animation
// come from the language model (or canned data); Audio and LipSync are filled
// in by the lip-sync pipeline before the message leaves the server.
type ReplyMessage struct {
	Text             string           `json:"text"`
	Audio            string           `json:"audio"` // base64 encoded
	LipSync          LipSync          `json:"lipsync"`
	FacialExpression FacialExpression `json:"facialExpression"`
	Animation        Animation        `json:"animation"`
	Transcript       string           `json:"transcript,omitempty"`
}

// IsComplete reports whether both audio and lip-sync data are present
func (m *ReplyMessage) IsComplete() bool {
	return m.Audio != "" && len(m.LipSync) > 0
}

// Validate checks the fields the language model is responsible for
func (m *ReplyMessage) Validate() error {
	if strings.TrimSpace(m.Text) == "" {
		return errors.New("reply text is required")
	}
	return nil
}
