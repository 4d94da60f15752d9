package reranker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
	"github.com/yuewanzhe/ragpipeline/internal/rag/llmport"
)

func TestRerankSortsByScoreAndTruncates(t *testing.T) {
	docs := []*document.Document{
		{DocID: "a", PageContent: "a"},
		{DocID: "b", PageContent: "b"},
		{DocID: "c", PageContent: "c"},
	}
	chat := &llmport.Fake{Responses: []string{
		`[{"id":"a","score":0.2},{"id":"b","score":0.9},{"id":"c","score":0.5}]`,
	}}
	cfg := DefaultConfig()
	cfg.TopN = 2
	cfg.BatchSize = 10
	r := NewLLM(chat, cfg)

	out := r.Rerank(context.Background(), "q", docs)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].DocID)
	assert.Equal(t, "c", out[1].DocID)
}

func TestRerankFailOpenReturnsInputOnTransportError(t *testing.T) {
	docs := []*document.Document{
		{DocID: "a", PageContent: "a"},
		{DocID: "b", PageContent: "b"},
	}
	chat := &llmport.Fake{Err: assertError{}}
	cfg := DefaultConfig()
	cfg.TopN = 0
	cfg.FailOpen = true
	r := NewLLM(chat, cfg)

	out := r.Rerank(context.Background(), "q", docs)
	require.Len(t, out, 2)
}

func TestRerankMissingIDsGetNegInfButRetained(t *testing.T) {
	docs := []*document.Document{
		{DocID: "a", PageContent: "a"},
		{DocID: "b", PageContent: "b"},
	}
	chat := &llmport.Fake{Responses: []string{`[{"id":"a","score":0.7}]`}}
	cfg := DefaultConfig()
	cfg.TopN = 0
	r := NewLLM(chat, cfg)

	out := r.Rerank(context.Background(), "q", docs)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].DocID)
	assert.Equal(t, "b", out[1].DocID)
}

func TestAssignIDsSuffixesDuplicates(t *testing.T) {
	docs := []*document.Document{
		{DocID: "dup", PageContent: "x"},
		{DocID: "dup", PageContent: "y"},
	}
	ids := assignIDs(docs)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, []string{"dup", "dup#2"}, ids)
}

type assertError struct{}

func (assertError) Error() string { return "transport failure" }
