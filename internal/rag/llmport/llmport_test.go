package llmport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeChatReturnsScriptedResponsesInOrder(t *testing.T) {
	f := &Fake{Responses: []string{"first", "second"}}
	r1, err := f.Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", r1)

	r2, err := f.Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", r2)
}

func TestFakeChatClampsAtLastResponse(t *testing.T) {
	f := &Fake{Responses: []string{"only"}}
	_, _ = f.Chat(context.Background(), nil, nil)
	r, err := f.Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "only", r)
}

func TestFakeChatReturnsConfiguredError(t *testing.T) {
	f := &Fake{Err: errors.New("boom")}
	_, err := f.Chat(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestFakeModelNameDefault(t *testing.T) {
	f := &Fake{}
	assert.Equal(t, "fake-model", f.ModelName())
}
