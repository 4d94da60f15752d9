package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLightVsFull(t *testing.T) {
	q := "  Hello   GPT모델!! "
	light := Normalize(q, Light)
	assert.Equal(t, "hello gpt모델!!", light)

	full := Normalize(q, Full)
	assert.Equal(t, "hello gpt 모델", full)
}

func TestNormalizeAppliesKoreanAlias(t *testing.T) {
	assert.Equal(t, "chatgpt 사용법", Normalize("챗지피티 사용법", Light))
}

func TestNormalizeFullIsIdempotent(t *testing.T) {
	q := "What is GPT모델??  --- test"
	once := Normalize(q, Full)
	twice := Normalize(once, Full)
	assert.Equal(t, once, twice)
}

func TestTokenizeDropsStopwordsAndShortWords(t *testing.T) {
	toks := Tokenize("The quick a fox and 그리고 hello", nil)
	assert.Equal(t, []string{"quick", "fox", "hello"}, toks)
}

func TestTokensSplitRareSubset(t *testing.T) {
	all, rare := TokensSplit("hi retrieval 모델은 ab", nil)
	assert.Contains(t, all, "retrieval")
	assert.Contains(t, rare, "retrieval")
	assert.NotContains(t, rare, "hi")
	assert.NotContains(t, rare, "ab")
}

func TestExpandQueriesOrderedDedupedCapped(t *testing.T) {
	variants := ExpandQueries("What is GPT?", 3, nil)
	assert.LessOrEqual(t, len(variants), 3)
	assert.Equal(t, "What is GPT?", variants[0])
}

func TestExpandQueriesBelowThresholdReturnsOriginalOnly(t *testing.T) {
	variants := ExpandQueries("hello", 1, nil)
	assert.Equal(t, []string{"hello"}, variants)
}
