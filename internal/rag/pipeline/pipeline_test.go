package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
	"github.com/yuewanzhe/ragpipeline/internal/rag/eventstream"
	"github.com/yuewanzhe/ragpipeline/internal/rag/llmport"
	"github.com/yuewanzhe/ragpipeline/internal/rag/mmr"
	"github.com/yuewanzhe/ragpipeline/internal/rag/prompt"
	"github.com/yuewanzhe/ragpipeline/internal/rag/searchbackend"
)

func TestCoordinatorRunHappyPath(t *testing.T) {
	backend := searchbackend.NewFakeBackend()
	backend.Results["what is rag?"] = []*document.Document{
		{DocID: "1", PageContent: "RAG combines retrieval with generation.", Metadata: map[string]any{"score": 0.9}},
		{DocID: "2", PageContent: "Retrieval augmented generation reduces hallucination.", Metadata: map[string]any{"score": 0.8}},
	}
	events := eventstream.NewMemory()

	c := &Coordinator{
		Backend: backend,
		Prompt:  prompt.NewRender(""),
		Events:  events,
		Config: Config{
			TopK: 10,
			MMQ:  1,
			MMR:  mmr.Config{K: 2, FetchK: 10, LambdaMult: 0.7},
		},
	}

	st := c.Run(context.Background(), "job-1", "user-1", "session-1", "what is rag?")
	require.NotEqual(t, Failed, st.Status)
	assert.Equal(t, Done, st.Status)
	assert.Len(t, st.Docs, 2)
	assert.Len(t, st.Citations, 2)
	assert.Equal(t, "S1", st.Citations[0].SourceID)

	log := events.Events("job-1")
	assert.NotEmpty(t, log)
}

func TestCoordinatorRunBackendErrorFails(t *testing.T) {
	backend := &searchbackend.FakeBackend{Err: assertErr{}}
	c := &Coordinator{
		Backend: backend,
		Config:  Config{TopK: 5, MMQ: 1, MMR: mmr.DefaultConfig()},
	}
	st := c.Run(context.Background(), "job-2", "", "", "query")
	assert.Equal(t, Failed, st.Status)
	require.Error(t, st.Err)
}

func TestGenerateReturnsAnswer(t *testing.T) {
	backend := searchbackend.NewFakeBackend()
	backend.Results["q"] = []*document.Document{
		{DocID: "1", PageContent: "content", Metadata: map[string]any{"score": 0.5}},
	}
	c := &Coordinator{
		Backend: backend,
		Prompt:  prompt.NewRender(""),
		Config:  Config{TopK: 5, MMQ: 1, MMR: mmr.Config{K: 1, FetchK: 5, LambdaMult: 0.5}},
	}
	chat := &llmport.Fake{Responses: []string{"final answer"}}

	st, answer, err := Generate(context.Background(), c, chat, "job-3", "u", "s", "q")
	require.NoError(t, err)
	assert.Equal(t, "final answer", answer)
	assert.Equal(t, Done, st.Status)
}

type assertErr struct{}

func (assertErr) Error() string { return "backend down" }
