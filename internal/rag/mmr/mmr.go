// Package mmr implements the Maximal Marginal Relevance selector (spec §4.5),
// grounded on original_source's postprocessors/mmr.py.
package mmr

import (
	"math"

	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
)

// Config mirrors original_source's MMRConfig.
type Config struct {
	LambdaMult          float64 // 1.0 = pure relevance, 0.0 = pure diversity
	K                   int     // max documents to return
	FetchK              int     // how many input candidates to consider
	SimilarityThreshold *float64 // optional pruning threshold in [0,1]
}

// DefaultConfig mirrors the Python dataclass defaults.
func DefaultConfig() Config {
	th := 0.85
	return Config{LambdaMult: 0.7, K: 6, FetchK: 24, SimilarityThreshold: &th}
}

// RelevanceFunc optionally overrides the default relevance scoring.
type RelevanceFunc func(query string, d *document.Document) float64

// SimilarityFunc optionally overrides the default cosine-similarity scoring.
type SimilarityFunc func(a, b *document.Document) float64

// Select runs MMR over docs and returns up to cfg.K documents in selection
// order, each annotated with metadata.mmr_rank (1-based) and
// metadata.mmr_lambda.
func Select(query string, docs []*document.Document, cfg Config, relFn RelevanceFunc, simFn SimilarityFunc) []*document.Document {
	if len(docs) == 0 {
		return nil
	}
	k := cfg.K
	if k < 0 {
		k = 0
	}
	if k == 0 {
		return nil
	}

	fetchK := cfg.FetchK
	if fetchK < k {
		fetchK = k
	}
	candidates := docs
	if len(candidates) > fetchK {
		candidates = candidates[:fetchK]
	}

	relScores := computeRelevanceScores(query, candidates, relFn)

	sim := func(i, j int) float64 {
		if simFn != nil {
			return simFn(candidates[i], candidates[j])
		}
		a, okA := document.Embedding(candidates[i])
		b, okB := document.Embedding(candidates[j])
		if !okA || !okB {
			return 0
		}
		return cosine(a, b)
	}

	selected := []int{}
	remaining := make(map[int]struct{}, len(candidates))
	for i := range candidates {
		remaining[i] = struct{}{}
	}

	first := argmaxRelevance(remaining, relScores)
	selected = append(selected, first)
	delete(remaining, first)

	for len(remaining) > 0 && len(selected) < k {
		bestI := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if _, ok := remaining[i]; !ok {
				continue
			}
			maxSim := 0.0
			for _, s := range selected {
				if v := sim(i, s); v > maxSim {
					maxSim = v
				}
			}
			if cfg.SimilarityThreshold != nil && maxSim >= *cfg.SimilarityThreshold {
				continue
			}
			score := cfg.LambdaMult*relScores[i] - (1-cfg.LambdaMult)*maxSim
			if score > bestScore {
				bestScore = score
				bestI = i
			}
		}
		if bestI == -1 {
			break
		}
		selected = append(selected, bestI)
		delete(remaining, bestI)
	}

	out := make([]*document.Document, 0, len(selected))
	for rank, idx := range selected {
		d := candidates[idx]
		document.Normalize(d)
		d.Metadata["mmr_rank"] = rank + 1
		d.Metadata["mmr_lambda"] = cfg.LambdaMult
		out = append(out, d)
	}
	return out
}

func argmaxRelevance(remaining map[int]struct{}, scores map[int]float64) int {
	best := -1
	bestScore := math.Inf(-1)
	for i := 0; i < len(scores); i++ {
		if _, ok := remaining[i]; !ok {
			continue
		}
		if scores[i] > bestScore {
			bestScore = scores[i]
			best = i
		}
	}
	return best
}

func computeRelevanceScores(_ string, candidates []*document.Document, relFn RelevanceFunc) map[int]float64 {
	scores := make(map[int]float64, len(candidates))
	if relFn != nil {
		for i, d := range candidates {
			scores[i] = relFn("", d)
		}
		return scores
	}
	return defaultRelevanceScores(candidates)
}

// defaultRelevanceScores implements §4.5 step 1-4: rerank_score if finite,
// else doc score / __orig_score / metadata.score, else min-max normalized
// distance across the candidate set, else 0.
func defaultRelevanceScores(candidates []*document.Document) map[int]float64 {
	rel := make(map[int]float64, len(candidates))
	dist := make(map[int]float64)

	for i, d := range candidates {
		if v, ok := document.MetaFloat(d, "rerank_score"); ok {
			rel[i] = v
			continue
		}
		if d.Score != nil && math.IsFinite(*d.Score) {
			rel[i] = *d.Score
			continue
		}
		if v, ok := document.MetaFloat(d, "__orig_score"); ok {
			rel[i] = v
			continue
		}
		if v, ok := document.MetaFloat(d, "score"); ok {
			rel[i] = v
			continue
		}
		if dv, ok := document.MetaFloat(d, "distance"); ok {
			dist[i] = dv
		}
	}

	if len(dist) > 0 {
		minD, maxD := math.Inf(1), math.Inf(-1)
		for _, v := range dist {
			if v < minD {
				minD = v
			}
			if v > maxD {
				maxD = v
			}
		}
		denom := maxD - minD
		for i, d := range dist {
			if denom <= 0 {
				rel[i] = 1.0
			} else {
				v := (maxD - d) / denom
				if v < 0 {
					v = 0
				}
				if v > 1 {
					v = 1
				}
				rel[i] = v
			}
		}
	}

	for i := range candidates {
		if _, ok := rel[i]; !ok {
			rel[i] = 0
		}
	}
	return rel
}

// cosine computes cosine similarity in [-1, 1]; returns 0 if either vector
// has zero norm.
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
