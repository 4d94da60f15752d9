package searchbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDynamicAlphaNoBM25BiasesTowardVector(t *testing.T) {
	bounds := AlphaBounds{NoBM25Min: 0.8}
	got := DynamicAlpha("retrieval augmented generation", 0, 0.5, bounds)
	assert.Equal(t, 0.8, got)
}

func TestDynamicAlphaMultiStrongBiasesTowardLexical(t *testing.T) {
	bounds := AlphaBounds{MultiStrongMax: 0.3}
	got := DynamicAlpha("retrieval augmented generation", 2, 0.5, bounds)
	assert.Equal(t, 0.3, got)
}

func TestDynamicAlphaEmptyQueryReturnsDefault(t *testing.T) {
	bounds := AlphaBounds{NoBM25Min: 0.9}
	got := DynamicAlpha("a", 0, 0.5, bounds)
	assert.Equal(t, 0.5, got)
}

func TestDynamicAlphaUnsetBoundsReturnsDefault(t *testing.T) {
	got := DynamicAlpha("retrieval augmented generation", 0, 0.5, AlphaBounds{})
	assert.Equal(t, 0.5, got)
}
