package llm

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/satriahrh/talking-avatar/domain/entities"
)

// SystemPrompt is the fixed instruction sent with every dialogue turn
func SystemPrompt(maxReplies int) string {
	expressions := lo.Map(entities.FacialExpressions, func(e entities.FacialExpression, _ int) string {
		return string(e)
	})
	animations := lo.Map(entities.Animations, func(a entities.Animation, _ int) string {
		return string(a)
	})

	return fmt.Sprintf(`You are a male virtual mining assistant.
You will always reply with a JSON array of messages. With a maximum of %d messages.
Each message has a text, facialExpression, and animation property.
The different facial expressions are: %s.
The different animations are: %s.`,
		maxReplies,
		strings.Join(expressions, ", "),
		strings.Join(animations, ", "))
}
