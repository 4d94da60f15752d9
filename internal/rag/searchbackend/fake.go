package searchbackend

import (
	"context"

	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
)

// FakeBackend is an in-memory SearchBackend used by pipeline/unit tests.
// It returns a fixed result set per query text, independent of mode/filters.
type FakeBackend struct {
	Results map[string][]*document.Document
	Err     error
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{Results: map[string][]*document.Document{}}
}

func (f *FakeBackend) Query(_ context.Context, q Query) ([]*document.Document, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	docs := f.Results[q.QueryText]
	if q.TopK > 0 && len(docs) > q.TopK {
		docs = docs[:q.TopK]
	}
	return docs, nil
}
