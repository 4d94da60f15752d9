package compress

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
	"github.com/yuewanzhe/ragpipeline/internal/rag/embeddings"
)

func TestHeuristicCompressBudgetTrim(t *testing.T) {
	docs := []*document.Document{
		{DocID: "a", PageContent: strings.Repeat("x", 50), Metadata: map[string]any{"score": 0.9}},
		{DocID: "b", PageContent: strings.Repeat("y", 50), Metadata: map[string]any{"score": 0.8}},
		{DocID: "c", PageContent: strings.Repeat("z", 50), Metadata: map[string]any{"score": 0.1}},
	}
	cfg := DefaultHeuristicConfig(90)
	h := NewHeuristic(nil, cfg)

	out := h.Compress(context.Background(), "query", docs)
	require.NotEmpty(t, out)

	total := 0
	for _, d := range out {
		total += len(d.PageContent)
	}
	assert.LessOrEqual(t, total, 90)
}

func TestHeuristicCompressKeepsKeywordHitEvenIfLowScore(t *testing.T) {
	docs := []*document.Document{
		{DocID: "a", PageContent: strings.Repeat("irrelevant ", 5), Metadata: map[string]any{"score": 0.9}},
		{DocID: "b", PageContent: "the unique-term appears here", Metadata: map[string]any{"score": 0.01}},
	}
	cfg := DefaultHeuristicConfig(0)
	h := NewHeuristic(nil, cfg)

	out := h.Compress(context.Background(), "unique-term", docs)
	var found bool
	for _, d := range out {
		if d.DocID == "b" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHeuristicCompressEmptyInput(t *testing.T) {
	h := NewHeuristic(nil, DefaultHeuristicConfig(0))
	assert.Nil(t, h.Compress(context.Background(), "q", nil))
}

func TestHeuristicCompressFallsBackWhenBudgetTooSmall(t *testing.T) {
	docs := []*document.Document{
		{DocID: "a", PageContent: strings.Repeat("x", 500), Metadata: map[string]any{"score": 0.9}},
	}
	cfg := DefaultHeuristicConfig(10) // smaller than any single doc
	cfg.FallbackKeep = 1
	h := NewHeuristic(nil, cfg)

	out := h.Compress(context.Background(), "q", docs)
	assert.Len(t, out, 1)
}

func TestAdaptiveEmbeddingFilterFallsBackWithoutEmbeddings(t *testing.T) {
	h := NewHeuristic(nil, DefaultHeuristicConfig(0))
	docs := []*document.Document{{DocID: "a", PageContent: "x"}}
	out, th := h.adaptiveEmbeddingFilter(context.Background(), "q", docs)
	assert.Equal(t, docs, out)
	assert.Equal(t, -1.0, th)
}

func TestAdaptiveEmbeddingFilterWithFakeEmbeddings(t *testing.T) {
	h := NewHeuristic(embeddings.NewFake(16), DefaultHeuristicConfig(0))
	docs := []*document.Document{
		{DocID: "a", PageContent: "apple banana"},
		{DocID: "b", PageContent: "apple banana"},
	}
	out, _ := h.adaptiveEmbeddingFilter(context.Background(), "apple banana", docs)
	assert.NotEmpty(t, out)
}
