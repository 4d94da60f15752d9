package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProducesSystemAndHumanMessages(t *testing.T) {
	r := NewRender("")
	messages := r.Build("what happened?", "passage one\n---\npassage two")
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "user", messages[1].Role)
	assert.Contains(t, messages[1].Content, "passage one")
	assert.Contains(t, messages[1].Content, "passage two")
}

func TestBuildUsesMandatedKoreanTemplate(t *testing.T) {
	r := NewRender("sys")
	messages := r.Build("q", "ctx")
	assert.Equal(t, "질문: q\n\nContext:\nctx\n\n답변:", messages[1].Content)
}

func TestBuildDefaultsSystemPromptWhenEmpty(t *testing.T) {
	r := NewRender("")
	assert.Equal(t, DefaultSystemPrompt, r.SystemPrompt)
}
