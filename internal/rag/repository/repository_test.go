package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuewanzhe/ragpipeline/internal/rag/pipeline"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.FinalizeAssistantMessage(ctx, "session-1", "msg-1", "the answer"))
	assert.Equal(t, "the answer", m.Messages["msg-1"])

	citations := []pipeline.Citation{{ID: "S1", SourceID: "S1", Title: "doc one"}}
	require.NoError(t, m.SaveMessageCitations(ctx, "msg-1", citations))
	assert.Equal(t, citations, m.Citations["msg-1"])

	require.NoError(t, m.AppendJobEvent(ctx, "job-1", "rag_retrieve.completed", nil))
	assert.Equal(t, []string{"rag_retrieve.completed"}, m.JobEvents["job-1"])

	require.NoError(t, m.UpdateJobStatus(ctx, "job-1", pipeline.Done, ""))
	assert.Equal(t, pipeline.Done, m.JobStatus["job-1"])
}
