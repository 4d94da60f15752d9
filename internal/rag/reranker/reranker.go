// Package reranker implements the LLM-prompt-based reranker (spec §4.4),
// grounded on original_source's postprocessors/reranker.py LLMReranker
// (not the teacher's dedicated /rerank HTTP endpoint, which this module
// has no equivalent microservice for).
package reranker

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yuewanzhe/ragpipeline/internal/common"
	"github.com/yuewanzhe/ragpipeline/internal/logger"
	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
	"github.com/yuewanzhe/ragpipeline/internal/rag/llmport"
)

// Config mirrors original_source's LLMReranker config surface.
type Config struct {
	TopN        int
	BatchSize   int
	Temperature float64
	FailOpen    bool
	Prompt      string
}

func DefaultConfig() Config {
	return Config{
		TopN:        8,
		BatchSize:   12,
		Temperature: 0.0,
		FailOpen:    true,
		Prompt: "Score how relevant each document is to the question on a scale " +
			"from 0.0 (irrelevant) to 1.0 (highly relevant). Respond with a JSON " +
			"array only, each element {\"id\": <doc id>, \"score\": <float>}. No " +
			"other text.\n\nQuestion: %s\n\nDocuments:\n%s",
	}
}

// LLM is the reranker stage. Rerank returns docs sorted by descending
// rerank_score (annotated into metadata), truncated to cfg.TopN. On LLM or
// transport error, if FailOpen it returns the input set unscored and
// unreordered instead of surfacing the error.
type LLM struct {
	Chat   llmport.Chat
	Config Config
}

func NewLLM(chat llmport.Chat, cfg Config) *LLM {
	return &LLM{Chat: chat, Config: cfg}
}

type scoredID struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func (r *LLM) Rerank(ctx context.Context, q string, docs []*document.Document) []*document.Document {
	if len(docs) == 0 {
		return docs
	}
	document.NormalizeAll(docs)

	ids := assignIDs(docs)
	scores := make(map[string]float64, len(docs))
	for _, id := range ids {
		scores[id] = math.Inf(-1)
	}

	topN := r.Config.TopN
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}
	batchSize := r.Config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultConfig().BatchSize
	}

	for start := 0; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batchIDs := ids[start:end]
		batchDocs := docs[start:end]

		result, err := r.scoreBatch(ctx, q, batchIDs, batchDocs)
		if err != nil {
			logger.Warnf(ctx, "rerank batch [%d:%d] failed: %v", start, end, err)
			if !r.Config.FailOpen {
				return nil
			}
			return docs[:topN]
		}
		for id, s := range result {
			scores[id] = s
		}
	}

	for i, d := range docs {
		d.Metadata["rerank_score"] = scores[ids[i]]
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return document.RerankScore(docs[i]) > document.RerankScore(docs[j])
	})

	return docs[:topN]
}

// assignIDs gives every document a stable per-call id, suffixing duplicate
// stable keys with #2, #3, ... so the LLM always sees unique identifiers.
func assignIDs(docs []*document.Document) []string {
	seen := map[string]int{}
	ids := make([]string, len(docs))
	for i, d := range docs {
		base := fmt.Sprintf("%v", document.Key(d))
		seen[base]++
		if n := seen[base]; n > 1 {
			ids[i] = fmt.Sprintf("%s#%d", base, n)
		} else {
			ids[i] = base
		}
	}
	return ids
}

func (r *LLM) scoreBatch(ctx context.Context, q string, ids []string, docs []*document.Document) (map[string]float64, error) {
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "id=%s: %s\n\n", ids[i], truncate(d.PageContent, 1800))
	}
	prompt := fmt.Sprintf(r.Config.Prompt, q, b.String())

	resp, err := r.Chat.Chat(ctx, []llmport.Message{{Role: "user", Content: prompt}},
		&llmport.Options{Temperature: r.Config.Temperature})
	if err != nil {
		return nil, err
	}

	parsed, err := parseScores(resp)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(parsed))
	for _, p := range parsed {
		s := p.Score
		if s < 0 {
			s = 0
		}
		if s > 1 {
			s = 1
		}
		out[p.ID] = s
	}
	return out, nil
}

// parseScores is permissive: it tolerates responses wrapped in markdown
// code fences, a common quirk of chat models asked for JSON-only output.
func parseScores(resp string) ([]scoredID, error) {
	var out []scoredID
	if err := common.ParseLLMJsonResponse(resp, &out); err != nil {
		return nil, fmt.Errorf("parse rerank scores: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
