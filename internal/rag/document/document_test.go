package document

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPriorityChain(t *testing.T) {
	t.Run("DocID wins", func(t *testing.T) {
		d := &Document{DocID: "doc-1", FileID: "file-1", Metadata: map[string]any{"weaviate_id": "w-1"}}
		assert.Equal(t, "doc-1", Key(d))
	})

	t.Run("falls back to FileID+ChunkIndex", func(t *testing.T) {
		idx := 3
		d := &Document{FileID: "file-1", ChunkIndex: &idx}
		assert.Equal(t, [2]any{"file-1", 3}, Key(d))
	})

	t.Run("falls back to metadata id", func(t *testing.T) {
		d := &Document{Metadata: map[string]any{"uuid": "u-1"}}
		assert.Equal(t, "u-1", Key(d))
	})

	t.Run("falls back to pointer identity", func(t *testing.T) {
		d := &Document{PageContent: "hello"}
		require.Equal(t, d, Key(d))
	})
}

func TestFirstFiniteScore(t *testing.T) {
	score := 0.8
	d := &Document{Score: &score}
	assert.Equal(t, 0.8, FirstFiniteScore(d))

	d2 := &Document{Metadata: map[string]any{"distance": 0.3}}
	assert.Equal(t, 0.7, FirstFiniteScore(d2))

	d3 := &Document{}
	assert.True(t, math.IsInf(FirstFiniteScore(d3), -1))
}

func TestMetaFloatRejectsNonFinite(t *testing.T) {
	d := &Document{Metadata: map[string]any{"score": math.NaN()}}
	_, ok := MetaFloat(d, "score")
	assert.False(t, ok)

	d2 := &Document{Metadata: map[string]any{"score": math.Inf(1)}}
	_, ok = MetaFloat(d2, "score")
	assert.False(t, ok)
}

func TestRerankScoreDefaultsToNegInf(t *testing.T) {
	d := &Document{}
	assert.True(t, math.IsInf(RerankScore(d), -1))

	d2 := &Document{Metadata: map[string]any{"rerank_score": 0.42}}
	assert.Equal(t, 0.42, RerankScore(d2))
}
