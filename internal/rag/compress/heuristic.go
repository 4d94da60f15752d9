// Package compress implements the two-tier document compressor (spec §4.6),
// grounded on original_source's compressors/heuristic.py and compressors/llm.py.
package compress

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
	"github.com/yuewanzhe/ragpipeline/internal/rag/embeddings"
	"github.com/yuewanzhe/ragpipeline/internal/rag/query"
)

// HeuristicConfig mirrors original_source's HeuristicCompressorConfig.
type HeuristicConfig struct {
	MaxContext         int // 0 means "no budget"
	KeywordKeepLimit   int
	MinDocsAfterFilter int
	Thresholds         [3]float64
	FallbackKeep       int
}

func DefaultHeuristicConfig(maxContext int) HeuristicConfig {
	return HeuristicConfig{
		MaxContext:         maxContext,
		KeywordKeepLimit:   3,
		MinDocsAfterFilter: 2,
		Thresholds:         [3]float64{0.20, 0.10, 0.0},
		FallbackKeep:       8,
	}
}

// Heuristic is the always-runs-first compressor tier (§4.6).
type Heuristic struct {
	Embeddings embeddings.Embeddings
	Config     HeuristicConfig
}

func NewHeuristic(emb embeddings.Embeddings, cfg HeuristicConfig) *Heuristic {
	return &Heuristic{Embeddings: emb, Config: cfg}
}

// Compress runs the heuristic compressor over docs (already MMR-selected)
// for the given query, returning an ordered subset within the context budget.
func (h *Heuristic) Compress(ctx context.Context, q string, docs []*document.Document) []*document.Document {
	document.NormalizeAll(docs)
	if len(docs) == 0 {
		return nil
	}

	hasRerank := false
	rerankPos := map[any]int{}
	for i, d := range docs {
		k := document.Key(d)
		if _, ok := rerankPos[k]; !ok {
			rerankPos[k] = i
		}
		if _, ok := document.MetaFloat(d, "rerank_score"); ok {
			hasRerank = true
		}
	}

	tokens, _ := query.TokensSplit(q, nil)
	var mustKeep []*document.Document
	for _, d := range docs {
		if len(mustKeep) >= h.Config.KeywordKeepLimit {
			break
		}
		if keywordHit(tokens, d) {
			mustKeep = append(mustKeep, d)
		}
	}

	filtered, _ := h.adaptiveEmbeddingFilter(ctx, q, docs)

	keepSet := map[any]struct{}{}
	var kept []*document.Document

	anchor := docs[0]
	keepSet[document.Key(anchor)] = struct{}{}
	kept = append(kept, anchor)

	for _, d := range mustKeep {
		k := document.Key(d)
		if _, ok := keepSet[k]; !ok {
			keepSet[k] = struct{}{}
			kept = append(kept, d)
		}
	}
	for _, d := range filtered {
		k := document.Key(d)
		if _, ok := keepSet[k]; !ok {
			keepSet[k] = struct{}{}
			kept = append(kept, d)
		}
	}

	if hasRerank {
		sort.SliceStable(kept, func(i, j int) bool {
			si, sj := document.RerankScore(kept[i]), document.RerankScore(kept[j])
			if si != sj {
				return si > sj
			}
			return rerankPos[document.Key(kept[i])] < rerankPos[document.Key(kept[j])]
		})
	} else {
		sort.SliceStable(kept, func(i, j int) bool {
			si, sj := document.FirstFiniteScore(kept[i]), document.FirstFiniteScore(kept[j])
			if si != sj {
				return si > sj
			}
			return document.OrigRank(kept[i]) < document.OrigRank(kept[j])
		})
	}

	var out []*document.Document
	total := 0
	for _, d := range kept {
		ln := len(d.PageContent)
		if h.Config.MaxContext > 0 && total+ln > h.Config.MaxContext {
			continue
		}
		out = append(out, d)
		total += ln
	}
	if len(out) == 0 {
		n := h.Config.FallbackKeep
		if n > len(kept) {
			n = len(kept)
		}
		out = append(out, kept[:n]...)
	}
	return out
}

// keywordHit reports whether any token is a case-insensitive substring of
// the document's page content, filename, or filename_kw metadata.
func keywordHit(tokens []string, d *document.Document) bool {
	if len(tokens) == 0 {
		return false
	}
	haystack := strings.ToLower(d.PageContent + " " +
		document.MetaString(d, "filename") + " " + document.MetaString(d, "filename_kw"))
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

// adaptiveEmbeddingFilter tries each threshold in Config.Thresholds in order,
// keeping documents whose query-similarity is >= threshold, and stops at the
// first threshold yielding >= MinDocsAfterFilter documents. Falls back to
// "all docs" if the embeddings port is nil or every threshold under-filters.
func (h *Heuristic) adaptiveEmbeddingFilter(ctx context.Context, q string, docs []*document.Document) ([]*document.Document, float64) {
	if h.Embeddings == nil {
		return docs, -1
	}
	qvec, err := h.Embeddings.EmbedQuery(ctx, q)
	if err != nil || len(qvec) == 0 {
		return docs, -1
	}

	sims := make([]float64, len(docs))
	for i, d := range docs {
		vec, ok := document.Embedding(d)
		if !ok {
			texts, err := h.Embeddings.EmbedDocuments(ctx, []string{d.PageContent})
			if err != nil || len(texts) == 0 {
				sims[i] = 0
				continue
			}
			vec = texts[0]
		}
		sims[i] = cosine(qvec, vec)
	}

	for _, th := range h.Config.Thresholds {
		var out []*document.Document
		for i, d := range docs {
			if sims[i] >= th {
				out = append(out, d)
			}
		}
		if len(out) >= h.Config.MinDocsAfterFilter {
			return out, th
		}
	}
	return docs, -1
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
