package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacialExpression_Valid(t *testing.T) {
	for _, e := range FacialExpressions {
		assert.True(t, e.Valid(), e)
	}
	assert.False(t, FacialExpression("grin").Valid())
	assert.False(t, FacialExpression("Smile").Valid())
}

func TestAnimation_Valid(t *testing.T) {
	for _, a := range Animations {
		assert.True(t, a.Valid(), a)
	}
	// reserved for the canned configuration sequence
	assert.False(t, AnimationAngry.Valid())
	assert.False(t, AnimationLaughing.Valid())
}

func TestReplyMessage_Validate(t *testing.T) {
	assert.NoError(t, (&ReplyMessage{Text: "Hola"}).Validate())
	assert.Error(t, (&ReplyMessage{}).Validate())
	assert.Error(t, (&ReplyMessage{Text: " \n"}).Validate())
}

func TestReplyMessage_IsComplete(t *testing.T) {
	m := ReplyMessage{Text: "Hola"}
	assert.False(t, m.IsComplete())

	m.Audio = "SUQz"
	assert.False(t, m.IsComplete())

	m.LipSync = LipSync(`{"mouthCues":[]}`)
	assert.True(t, m.IsComplete())
}

func TestParseLipSync(t *testing.T) {
	data, err := ParseLipSync([]byte(`{"metadata":{"soundFile":"audios/message_0.wav","duration":1.27},"mouthCues":[{"start":0,"end":0.2,"value":"X"},{"start":0.2,"end":0.41,"value":"B"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1.27, data.Metadata.Duration)
	require.Len(t, data.MouthCues, 2)
	assert.Equal(t, "B", data.MouthCues[1].Value)

	_, err = ParseLipSync([]byte(`{"mouthCues":[{"start":1,"end":0.5,"value":"A"}]}`))
	assert.Error(t, err)

	_, err = ParseLipSync([]byte(`not json`))
	assert.Error(t, err)
}

func TestKnowledgeResult_Contains(t *testing.T) {
	r := &KnowledgeResult{Matches: []KnowledgeChunk{{ID: "a"}, {ID: "b"}}}
	assert.True(t, r.Contains("b"))
	assert.False(t, r.Contains("c"))
}
