package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogAppendOrder(t *testing.T) {
	l := NewLog("you are a remediation engineer")
	l.Append(RoleUser, "the pod is on fire")
	l.Append(RoleAssistant, "deploying water")

	msgs := l.Messages()
	assert.Len(t, msgs, 3)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.Equal(t, "deploying water", msgs[2].Content)
}

func TestMessagesReturnsCopy(t *testing.T) {
	l := NewLog("prompt")
	l.Append(RoleUser, "original")

	msgs := l.Messages()
	msgs[1].Content = "tampered"

	assert.Equal(t, "original", l.Messages()[1].Content)
}

func TestEstimateTokens(t *testing.T) {
	l := &Log{}
	assert.Equal(t, 0, l.EstimateTokens())

	l.Append(RoleUser, "hello")
	raw, _ := json.Marshal(l.Messages()[0])
	assert.Equal(t, len(raw)/4, l.EstimateTokens())
}
