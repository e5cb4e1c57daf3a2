package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/domain/entities"
)

// replyEnvelope is the wrapped shape the model sometimes answers with
type replyEnvelope struct {
	Messages json.RawMessage `json:"messages"`
}

// fragment is the part of a reply message the model writes
type fragment struct {
	Text             string                    `json:"text"`
	FacialExpression entities.FacialExpression `json:"facialExpression"`
	Animation        entities.Animation        `json:"animation"`
}

// DecodeReply accepts exactly two shapes: a bare JSON array of fragments, or
// an object carrying that array under "messages". Anything else is
// domain.ErrMalformedReply.
func DecodeReply(raw string, logger *zap.Logger) ([]entities.ReplyMessage, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return nil, fmt.Errorf("empty reply: %w", domain.ErrMalformedReply)
	}

	switch data[0] {
	case '[':
	case '{':
		var envelope replyEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("invalid reply object: %v: %w", err, domain.ErrMalformedReply)
		}
		data = bytes.TrimSpace(envelope.Messages)
		if len(data) == 0 || data[0] != '[' {
			return nil, fmt.Errorf("reply object has no messages array: %w", domain.ErrMalformedReply)
		}
	default:
		return nil, fmt.Errorf("reply is neither an array nor an object: %w", domain.ErrMalformedReply)
	}

	var fragments []fragment
	if err := json.Unmarshal(data, &fragments); err != nil {
		return nil, fmt.Errorf("invalid reply messages: %v: %w", err, domain.ErrMalformedReply)
	}

	messages := make([]entities.ReplyMessage, 0, len(fragments))
	for i, f := range fragments {
		message := entities.ReplyMessage{
			Text:             f.Text,
			FacialExpression: f.FacialExpression,
			Animation:        f.Animation,
		}
		if err := message.Validate(); err != nil {
			return nil, fmt.Errorf("message %d: %v: %w", i, err, domain.ErrMalformedReply)
		}
		normalize(&message, i, logger)
		messages = append(messages, message)
	}

	return messages, nil
}

func normalize(message *entities.ReplyMessage, index int, logger *zap.Logger) {
	if !message.FacialExpression.Valid() {
		logger.Warn("Unknown facial expression, using default",
			zap.Int("message", index),
			zap.String("facialExpression", string(message.FacialExpression)))
		message.FacialExpression = entities.ExpressionDefault
	}
	if !message.Animation.Valid() {
		logger.Warn("Unknown animation, using Idle",
			zap.Int("message", index),
			zap.String("animation", string(message.Animation)))
		message.Animation = entities.AnimationIdle
	}
}
