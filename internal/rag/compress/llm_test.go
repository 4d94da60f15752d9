package compress

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
	"github.com/yuewanzhe/ragpipeline/internal/rag/llmport"
)

func bigDocs(n int, size int) []*document.Document {
	docs := make([]*document.Document, n)
	for i := range docs {
		docs[i] = &document.Document{DocID: string(rune('a' + i)), PageContent: strings.Repeat("word ", size)}
	}
	return docs
}

func TestLLMCompressSkipsWhenDisabled(t *testing.T) {
	docs := bigDocs(5, 100)
	l := NewLLM(&llmport.Fake{}, DefaultLLMConfig())
	out := l.Compress(context.Background(), "q", docs)
	assert.Equal(t, docs, out)
}

func TestLLMCompressSkipsWhenBelowTrigger(t *testing.T) {
	cfg := DefaultLLMConfig()
	cfg.Enabled = true
	cfg.MinDocs = 10
	l := NewLLM(&llmport.Fake{Responses: []string{"x --- y"}}, cfg)
	docs := bigDocs(2, 100)
	out := l.Compress(context.Background(), "q", docs)
	assert.Equal(t, docs, out)
}

func TestLLMCompressRewritesWhenTriggered(t *testing.T) {
	cfg := DefaultLLMConfig()
	cfg.Enabled = true
	cfg.MinDocs = 2
	cfg.MinTotalChars = 10
	cfg.MinOutputRatio = 0
	docs := bigDocs(2, 50)
	resp := "kept sentence one\n---\nkept sentence two"
	l := NewLLM(&llmport.Fake{Responses: []string{resp}}, cfg)

	out := l.Compress(context.Background(), "q", docs)
	require.Len(t, out, 2)
	assert.Equal(t, "kept sentence one", out[0].PageContent)
	assert.Equal(t, "kept sentence two", out[1].PageContent)
}

func TestLLMCompressFailOpenOnTransportError(t *testing.T) {
	cfg := DefaultLLMConfig()
	cfg.Enabled = true
	cfg.MinDocs = 2
	cfg.MinTotalChars = 10
	cfg.FailOpen = true
	docs := bigDocs(2, 50)
	l := NewLLM(&llmport.Fake{Err: errors.New("down")}, cfg)

	out := l.Compress(context.Background(), "q", docs)
	assert.Equal(t, docs, out)
}

func TestLLMCompressFallsBackOnSectionCountMismatch(t *testing.T) {
	cfg := DefaultLLMConfig()
	cfg.Enabled = true
	cfg.MinDocs = 2
	cfg.MinTotalChars = 10
	docs := bigDocs(2, 50)
	l := NewLLM(&llmport.Fake{Responses: []string{"only one section, no separator"}}, cfg)

	out := l.Compress(context.Background(), "q", docs)
	assert.Equal(t, docs, out)
}
