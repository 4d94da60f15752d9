package mmr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
)

func docWithEmbedding(id string, score float64, vec []float64) *document.Document {
	return &document.Document{
		DocID:    id,
		Metadata: map[string]any{"score": score, "embedding": vec},
	}
}

func TestSelectPrefersRelevanceThenDiversity(t *testing.T) {
	docs := []*document.Document{
		docWithEmbedding("a", 0.9, []float64{1, 0}),
		docWithEmbedding("b", 0.85, []float64{1, 0.01}), // near-duplicate of a
		docWithEmbedding("c", 0.5, []float64{0, 1}),     // orthogonal, diverse
	}
	cfg := Config{LambdaMult: 0.5, K: 2, FetchK: 10}

	selected := mmrSelect(t, docs, cfg)
	require.Len(t, selected, 2)
	assert.Equal(t, "a", selected[0].DocID)
	assert.Equal(t, "c", selected[1].DocID) // diversity should prefer c over near-duplicate b
}

func TestSelectRespectsSimilarityThreshold(t *testing.T) {
	th := 0.99
	docs := []*document.Document{
		docWithEmbedding("a", 0.9, []float64{1, 0}),
		docWithEmbedding("b", 0.8, []float64{1, 0}), // identical direction, above threshold
	}
	cfg := Config{LambdaMult: 0.5, K: 2, FetchK: 10, SimilarityThreshold: &th}

	selected := mmrSelect(t, docs, cfg)
	assert.Len(t, selected, 1)
}

func TestSelectAnnotatesRankAndLambda(t *testing.T) {
	docs := []*document.Document{
		docWithEmbedding("a", 0.9, []float64{1, 0}),
	}
	cfg := Config{LambdaMult: 0.7, K: 1, FetchK: 10}
	selected := mmrSelect(t, docs, cfg)
	require.Len(t, selected, 1)
	assert.Equal(t, 1, selected[0].Metadata["mmr_rank"])
	assert.Equal(t, 0.7, selected[0].Metadata["mmr_lambda"])
}

func TestSelectEmptyInput(t *testing.T) {
	assert.Nil(t, Select("q", nil, DefaultConfig(), nil, nil))
}

func mmrSelect(t *testing.T, docs []*document.Document, cfg Config) []*document.Document {
	t.Helper()
	return Select("query", docs, cfg, nil, nil)
}
