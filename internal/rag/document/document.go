// Package document defines the canonical Document record carried between
// pipeline stages and the stable-key function used for dedup and tie-breaks.
package document

import (
	"encoding/json"
	"math"
)

// Document is the canonical record carried between every stage. It mirrors
// the source's mixture of a custom Document and a duck-typed LangChain
// Document: rather than an open inheritance hierarchy, this is a single
// concrete struct with explicit convenience fields plus a string-keyed
// metadata map that carries everything else (§3 of the spec).
type Document struct {
	PageContent string
	Metadata    map[string]any

	// Top-level fields mirror common metadata keys for convenience; they do
	// not replace Metadata, they shadow it for fast, typed access.
	DocID      string
	FileID     string
	ChunkID    string
	ChunkIndex *int
	Title      string
	Page       *int
	URI        string
	Snippet    string
	Score      *float64
}

// New returns a Document with an initialized, never-nil Metadata map.
func New(pageContent string) *Document {
	return &Document{PageContent: pageContent, Metadata: map[string]any{}}
}

// Normalize ensures Metadata is a non-nil map, replacing a nil map with an
// empty one. It does not decode JSON strings; FromJSONMetadata does that for
// callers holding a serialized metadata blob. Safe to call repeatedly; every
// stage that mutates metadata re-normalizes its input first per §9.
func Normalize(d *Document) *Document {
	if d == nil {
		return New("")
	}
	switch d.Metadata {
	case nil:
		d.Metadata = map[string]any{}
	}
	return d
}

// NormalizeAll normalizes every document in docs in place and returns docs.
func NormalizeAll(docs []*Document) []*Document {
	for _, d := range docs {
		Normalize(d)
	}
	return docs
}

// FromJSONMetadata decodes a JSON-string metadata blob into a map, returning
// an empty map on any parse failure rather than propagating the error: a
// malformed metadata string degrades to "no metadata", it is never fatal.
func FromJSONMetadata(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

// Key is a stable, comparable identity for a document, used for
// deduplication across multi-query merges and tie-breaking in MMR/rerank/
// compress. Returns the first available of (§3):
//  1. DocID
//  2. (FileID, ChunkIndex)
//  3. metadata weaviate_id | id | uuid | chunk_id
//  4. (Title, ChunkIndex)
//  5. object identity (pointer value), as an absolute fallback
func Key(d *Document) any {
	if d == nil {
		return "<nil>"
	}
	if d.DocID != "" {
		return d.DocID
	}
	if d.FileID != "" && d.ChunkIndex != nil {
		return [2]any{d.FileID, *d.ChunkIndex}
	}
	md := d.Metadata
	for _, k := range []string{"weaviate_id", "id", "uuid", "chunk_id"} {
		if v, ok := md[k]; ok && v != nil && v != "" {
			return v
		}
	}
	if d.Title != "" && d.ChunkIndex != nil {
		return [2]any{d.Title, *d.ChunkIndex}
	}
	return d
}

// MetaString reads a string-valued metadata key, returning "" if absent or
// not a string.
func MetaString(d *Document, key string) string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	if v, ok := d.Metadata[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// MetaFloat reads a float64-valued metadata key. ok is false when the key is
// absent, nil, or not numeric; it never returns NaN/Inf (the caller should
// treat those the same as absent, per the non-finite-numerics rule in §9).
func MetaFloat(d *Document, key string) (float64, bool) {
	if d == nil || d.Metadata == nil {
		return 0, false
	}
	v, present := d.Metadata[key]
	if !present || v == nil {
		return 0, false
	}
	f, ok := toFloat(v)
	if !ok || !math.IsFinite(f) {
		return 0, false
	}
	return f, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// FirstFiniteScore resolves a document's best-effort score by the fallback
// chain used by the compressor (§4.6 step 6) and the join stage's citations:
// Score field, then metadata __orig_score, then metadata score, then
// 1 - metadata distance. Returns math.Inf(-1) when nothing finite is found.
func FirstFiniteScore(d *Document) float64 {
	if d.Score != nil && math.IsFinite(*d.Score) {
		return *d.Score
	}
	if v, ok := MetaFloat(d, "__orig_score"); ok {
		return v
	}
	if v, ok := MetaFloat(d, "score"); ok {
		return v
	}
	if v, ok := MetaFloat(d, "distance"); ok {
		return 1.0 - v
	}
	return math.Inf(-1)
}

// RerankScore returns metadata.rerank_score if finite, else -Inf.
func RerankScore(d *Document) float64 {
	if v, ok := MetaFloat(d, "rerank_score"); ok {
		return v
	}
	return math.Inf(-1)
}

// OrigRank returns metadata.__orig_rank if present and parseable as an int,
// else 1e9 (a large sentinel preserving ordering among ranked items).
func OrigRank(d *Document) int {
	if d == nil || d.Metadata == nil {
		return 1_000_000_000
	}
	v, ok := d.Metadata["__orig_rank"]
	if !ok || v == nil {
		return 1_000_000_000
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 1_000_000_000
}

// Embedding resolves a document's vector from metadata.embedding, then
// metadata.vector, as []float64. Returns nil, false if neither is present or
// convertible.
func Embedding(d *Document) ([]float64, bool) {
	if d == nil || d.Metadata == nil {
		return nil, false
	}
	for _, key := range []string{"embedding", "vector"} {
		if raw, ok := d.Metadata[key]; ok && raw != nil {
			if vec, ok := toVector(raw); ok {
				return vec, true
			}
		}
	}
	return nil, false
}

func toVector(raw any) ([]float64, bool) {
	switch v := raw.(type) {
	case []float64:
		return v, true
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out, true
	case []any:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			f, ok := toFloat(item)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	}
	return nil, false
}
