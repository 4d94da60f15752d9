package searchbackend

import "github.com/yuewanzhe/ragpipeline/internal/rag/query"

// AlphaBounds configures the optional dynamic-alpha heuristic for hybrid
// search (spec §4.2, §6). All fields default to 0 meaning "unset"; a zero
// value for a bound disables the corresponding branch.
type AlphaBounds struct {
	MultiStrongMax float64 // bias toward lexical when >=2 strong keyword hits
	SingleStrongMin float64
	WeakHitMin      float64
	NoBM25Min       float64 // bias toward vector when there are no BM25 hits at all
}

// DynamicAlpha implements the "recommended but optional" dynamic-alpha
// heuristic from §4.2: bias toward lexical (lower alpha) when the query has
// multiple strong keyword matches, bias toward vector (higher alpha) when it
// has none. strongHits is the count of query tokens found verbatim in the
// candidate corpus sample the caller has already gathered (e.g. a BM25
// probe). strongHits 0 means "no BM25 hits": it takes the NoBM25Min branch
// when that bound is set and returns defaultAlpha otherwise.
func DynamicAlpha(q string, strongHits int, defaultAlpha float64, bounds AlphaBounds) float64 {
	tokens, _ := query.TokensSplit(q, nil)
	if len(tokens) == 0 {
		return defaultAlpha
	}
	switch {
	case strongHits == 0 && bounds.NoBM25Min > 0:
		return max(defaultAlpha, bounds.NoBM25Min)
	case strongHits >= 2 && bounds.MultiStrongMax > 0:
		return min(defaultAlpha, bounds.MultiStrongMax)
	case strongHits == 1 && bounds.SingleStrongMin > 0:
		return max(bounds.SingleStrongMin, min(defaultAlpha, bounds.SingleStrongMin+0.2))
	case strongHits > 0 && bounds.WeakHitMin > 0:
		return max(defaultAlpha, bounds.WeakHitMin)
	default:
		return defaultAlpha
	}
}
