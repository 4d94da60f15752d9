package searchbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateFiltersEmpty(t *testing.T) {
	assert.Nil(t, TranslateFilters(nil))
	assert.Nil(t, TranslateFilters(map[string]any{}))
}

func TestTranslateFiltersSingleString(t *testing.T) {
	f := TranslateFilters(map[string]any{"title": "weknora"})
	require.NotNil(t, f)
	assert.Equal(t, "text_contains", f.Op)
	assert.Equal(t, "title", f.Field)
}

func TestTranslateFiltersListBecomesOr(t *testing.T) {
	f := TranslateFilters(map[string]any{"tag": []any{"a", "b"}})
	require.NotNil(t, f)
	assert.Equal(t, "or", f.Op)
	require.Len(t, f.Children, 2)
}

func TestTranslateFiltersMultipleKeysBecomesAnd(t *testing.T) {
	f := TranslateFilters(map[string]any{"title": "weknora", "published": true})
	require.NotNil(t, f)
	assert.Equal(t, "and", f.Op)
	assert.Len(t, f.Children, 2)
}
