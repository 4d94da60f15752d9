// Package pipeline implements the RAG pipeline state machine and stage
// orchestration (spec §3-§4.9), grounded on the teacher's
// chat_pipline.EventManager/Plugin onion-chain idiom — but with a fixed
// linear stage list rather than a generic registered-plugin chain, since
// this module's stage set is closed (retrieve, rerank, mmr, compress,
// join, prompt) rather than open to arbitrary registration.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yuewanzhe/ragpipeline/internal/logger"
	"github.com/yuewanzhe/ragpipeline/internal/rag/compress"
	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
	"github.com/yuewanzhe/ragpipeline/internal/rag/embeddings"
	"github.com/yuewanzhe/ragpipeline/internal/rag/eventstream"
	"github.com/yuewanzhe/ragpipeline/internal/rag/llmport"
	"github.com/yuewanzhe/ragpipeline/internal/rag/mmr"
	"github.com/yuewanzhe/ragpipeline/internal/rag/prompt"
	"github.com/yuewanzhe/ragpipeline/internal/rag/query"
	"github.com/yuewanzhe/ragpipeline/internal/rag/ragerr"
	"github.com/yuewanzhe/ragpipeline/internal/rag/reranker"
	"github.com/yuewanzhe/ragpipeline/internal/rag/searchbackend"
)

// Status is the pipeline's state machine value (spec §3 Pipeline state
// table): IDLE -> RETRIEVING -> RERANKING -> MMR -> COMPRESSING ->
// JOINING -> PROMPTING -> DONE, with FAILED reachable from any state.
type Status string

const (
	Idle        Status = "IDLE"
	Retrieving  Status = "RETRIEVING"
	Reranking   Status = "RERANKING"
	MMRSelect   Status = "MMR"
	Compressing Status = "COMPRESSING"
	Joining     Status = "JOINING"
	Prompting   Status = "PROMPTING"
	Done        Status = "DONE"
	Failed      Status = "FAILED"
)

// State is the Pipeline value object threaded through a single run.
type State struct {
	JobID         string
	UserID        string
	SessionID     string
	Query         string
	Status        Status
	Docs          []*document.Document
	HeuristicHits int // count surviving the heuristic compressor tier (§4.6)
	LLMApplied    bool // whether the LLM compressor tier rewrote any document
	Context       string // packed prompt context string, joined by "\n---\n" (§4.7)
	Messages      []prompt.Message
	Citations     []Citation
	Err           error
}

// Citation is the per-answer source record (spec §3). Assigned sequential
// ids S1..Sn in final packing order. Score fields are omitted rather than
// serialized as NaN/Inf when no finite value is available (§8 score
// sanitization).
type Citation struct {
	ID          string   `json:"id"`
	SourceID    string   `json:"source_id"`
	Title       string   `json:"title"`
	FileName    string   `json:"file_name,omitempty"`
	URI         string   `json:"uri,omitempty"`
	ChunkID     string   `json:"chunk_id,omitempty"`
	Page        *int     `json:"page,omitempty"`
	Snippet     string   `json:"snippet"`
	RerankScore *float64 `json:"rerank_score,omitempty"`
	Score       *float64 `json:"score,omitempty"`
}

// Config bundles the per-run tunables the coordinator reads; reranker and
// compressor knobs live on those adapters' own configs.
type Config struct {
	TopK            int
	MMQ             int
	SearchType      searchbackend.Mode
	Alpha           float64
	AlphaBounds     searchbackend.AlphaBounds
	UseDynamicAlpha bool
	BM25Properties  []string
	Filters         map[string]any
	MaxContext      int
	MMR             mmr.Config
	UseRerank       bool
	RerankTopN      int
	UseLLMCompress  bool
	KoStopwords     map[string]struct{}
	SystemPrompt    string
}

// Coordinator wires the stage adapters together and runs the fixed
// linear pipeline once per Run call.
type Coordinator struct {
	Backend    searchbackend.SearchBackend
	Embeddings embeddings.Embeddings
	Reranker   *reranker.LLM
	Heuristic  *compress.Heuristic
	LLMCompress *compress.LLM
	Prompt     *prompt.Render
	Events     eventstream.Stream
	Config     Config
}

func (c *Coordinator) emit(ctx context.Context, st *State, stage, phase string, payload map[string]any) {
	if c.Events == nil {
		return
	}
	if _, ok := payload["query"]; !ok {
		payload["query"] = st.Query
	}
	e := eventstream.Event{
		Name:      fmt.Sprintf("rag_%s.%s", stage, phase),
		JobID:     st.JobID,
		UserID:    st.UserID,
		SessionID: st.SessionID,
		Payload:   payload,
	}
	if err := c.Events.Publish(ctx, e); err != nil {
		logger.Warnf(ctx, "publish event %s failed: %v", e.Name, err)
	}
	if err := c.Events.RecordEvent(ctx, e); err != nil {
		logger.Warnf(ctx, "record event %s failed: %v", e.Name, err)
	}
}

// Run executes retrieve -> rerank -> mmr -> compress -> join -> prompt
// in order, returning the terminal State. A stage error moves Status to
// Failed and stops the chain; callers inspect State.Err for the cause.
func (c *Coordinator) Run(ctx context.Context, jobID, userID, sessionID, q string) *State {
	st := &State{JobID: jobID, UserID: userID, SessionID: sessionID, Query: q, Status: Idle}

	if err := ctx.Err(); err != nil {
		st.Status = Failed
		st.Err = ragerr.Wrap(ragerr.Cancelled, "pipeline cancelled before start", err)
		return st
	}

	if !c.retrieve(ctx, st) {
		return st
	}
	if c.Config.UseRerank {
		c.rerank(ctx, st)
	}
	if !c.mmrSelect(ctx, st) {
		return st
	}
	c.compressStage(ctx, st)
	c.join(ctx, st)
	if !c.promptStage(ctx, st) {
		return st
	}

	st.Status = Done
	return st
}

func (c *Coordinator) retrieve(ctx context.Context, st *State) bool {
	st.Status = Retrieving
	start := time.Now()
	c.emit(ctx, st, "retrieve", "in_progress", map[string]any{"query": st.Query})

	variants := query.ExpandQueries(st.Query, c.Config.MMQ, c.Config.KoStopwords)

	alpha := c.Config.Alpha
	var qvec []float64
	if c.Embeddings != nil {
		if v, err := c.Embeddings.EmbedQuery(ctx, st.Query); err == nil {
			qvec = v
		}
	}

	seen := map[any]struct{}{}
	var merged []*document.Document
	strongHits := 0
	for _, v := range variants {
		sq := searchbackend.Query{
			Mode:           c.Config.SearchType,
			QueryText:      v,
			TopK:           c.Config.TopK,
			Filters:        c.Config.Filters,
			Alpha:          alpha,
			DistanceCap:    searchbackend.NearTextDistanceCap,
			BM25Properties: c.Config.BM25Properties,
			QueryEmbedding: qvec,
		}
		docs, err := c.Backend.Query(ctx, sq)
		if err != nil {
			st.Status = Failed
			st.Err = ragerr.Wrap(ragerr.BackendUnavailable, "search backend query failed", err)
			c.emit(ctx, st, "retrieve", "completed", map[string]any{
				"error":  err.Error(),
				"tookMs": time.Since(start).Milliseconds(),
			})
			return false
		}
		for _, d := range docs {
			k := document.Key(d)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, d)
			if sc, ok := document.MetaFloat(d, "__orig_score"); ok && sc > 0.5 {
				strongHits++
			}
		}
	}

	if c.Config.UseDynamicAlpha {
		_ = searchbackend.DynamicAlpha(st.Query, strongHits, c.Config.Alpha, c.Config.AlphaBounds)
	}

	st.Docs = merged
	c.emit(ctx, st, "retrieve", "completed", map[string]any{
		"hits":   len(merged),
		"tookMs": time.Since(start).Milliseconds(),
	})
	return true
}

func (c *Coordinator) rerank(ctx context.Context, st *State) {
	st.Status = Reranking
	start := time.Now()
	inputHits, inputChars := len(st.Docs), charSum(st.Docs)
	c.emit(ctx, st, "rerank", "in_progress", map[string]any{"inputHits": inputHits})

	if c.Reranker != nil {
		st.Docs = c.Reranker.Rerank(ctx, st.Query, st.Docs)
	}

	payload := map[string]any{
		"inputHits":   inputHits,
		"outputHits":  len(st.Docs),
		"inputChars":  inputChars,
		"outputChars": charSum(st.Docs),
		"tookMs":      time.Since(start).Milliseconds(),
	}
	if c.Reranker != nil {
		payload["reranker"] = "llm"
		payload["rerankTopN"] = c.Reranker.Config.TopN
		payload["rerankBatchSize"] = c.Reranker.Config.BatchSize
	}
	c.emit(ctx, st, "rerank", "completed", payload)
}

func (c *Coordinator) mmrSelect(ctx context.Context, st *State) bool {
	st.Status = MMRSelect
	start := time.Now()
	inputHits, inputChars := len(st.Docs), charSum(st.Docs)
	c.emit(ctx, st, "mmr", "in_progress", map[string]any{"inputHits": inputHits})

	st.Docs = mmr.Select(st.Query, st.Docs, c.Config.MMR, nil, nil)

	payload := map[string]any{
		"inputHits":   inputHits,
		"outputHits":  len(st.Docs),
		"inputChars":  inputChars,
		"outputChars": charSum(st.Docs),
		"mmrK":        c.Config.MMR.K,
		"mmrFetchK":   c.Config.MMR.FetchK,
		"mmrLambda":   c.Config.MMR.LambdaMult,
		"tookMs":      time.Since(start).Milliseconds(),
	}
	if c.Config.MMR.SimilarityThreshold != nil {
		payload["mmrSimilarityThreshold"] = *c.Config.MMR.SimilarityThreshold
	}
	c.emit(ctx, st, "mmr", "completed", payload)
	return true
}

func (c *Coordinator) compressStage(ctx context.Context, st *State) {
	st.Status = Compressing
	start := time.Now()
	inputHits, inputChars := len(st.Docs), charSum(st.Docs)
	c.emit(ctx, st, "compress", "in_progress", map[string]any{"inputHits": inputHits})

	if c.Heuristic != nil {
		st.Docs = c.Heuristic.Compress(ctx, st.Query, st.Docs)
	}
	st.HeuristicHits = len(st.Docs)

	if c.Config.UseLLMCompress && c.LLMCompress != nil {
		st.Docs = c.LLMCompress.Compress(ctx, st.Query, st.Docs)
		st.LLMApplied = compress.Applied(st.Docs)
	}

	c.emit(ctx, st, "compress", "completed", map[string]any{
		"inputHits":     inputHits,
		"outputHits":    len(st.Docs),
		"inputChars":    inputChars,
		"outputChars":   charSum(st.Docs),
		"maxContext":    c.Config.MaxContext,
		"useLlm":        c.Config.UseLLMCompress,
		"heuristicHits": st.HeuristicHits,
		"llmApplied":    st.LLMApplied,
		"tookMs":        time.Since(start).Milliseconds(),
	})
}

// noContextPlaceholder is substituted for the packed context when no
// document survives to the join stage (§4.7); the citation list is then
// empty.
const noContextPlaceholder = "No relevant context was found for this question."

// join packs compressed_docs into the final context string and emits one
// citation per packed document (spec §4.7). Docs that would exceed
// max_context are skipped outright (no partial inclusion), so citations
// and packed docs stay 1:1 and the packed context never exceeds the
// configured budget (§8 budget safety).
func (c *Coordinator) join(_ context.Context, st *State) {
	st.Status = Joining

	maxContext := c.Config.MaxContext
	var chunks []string
	citations := make([]Citation, 0, len(st.Docs))
	total := 0

	for _, d := range st.Docs {
		ln := len(d.PageContent)
		if maxContext > 0 && total+ln > maxContext {
			continue
		}

		title := d.Title
		if title == "" {
			title = document.MetaString(d, "filename")
		}
		if title == "" {
			title = "Untitled"
		}
		header := "[" + title + "]"
		if section := document.MetaString(d, "section"); section != "" {
			header += " > " + section
		}
		chunks = append(chunks, header+"\n"+d.PageContent+"\n")
		total += ln

		snippet := d.Snippet
		if snippet == "" {
			snippet = summarize(d.PageContent)
		}

		n := len(citations) + 1
		sourceID := fmt.Sprintf("S%d", n)
		citations = append(citations, Citation{
			ID:          sourceID,
			SourceID:    sourceID,
			Title:       title,
			FileName:    document.MetaString(d, "filename"),
			URI:         d.URI,
			ChunkID:     d.ChunkID,
			Page:        d.Page,
			Snippet:     snippet,
			RerankScore: finiteOrNil(document.RerankScore(d)),
			Score:       finiteOrNil(document.FirstFiniteScore(d)),
		})
	}

	if len(chunks) == 0 {
		st.Context = noContextPlaceholder
		st.Citations = []Citation{}
		return
	}

	st.Context = strings.Join(chunks, "\n---\n")
	st.Citations = citations
}

// summarize collapses whitespace and truncates to a 240-char head,
// ellipsis-terminated if truncated (§4.7 citation snippet fallback).
func summarize(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	const limit = 240
	if len(collapsed) <= limit {
		return collapsed
	}
	return collapsed[:limit] + "..."
}

// finiteOrNil returns nil instead of a pointer to a NaN/±Inf value, so
// non-finite scores are serialized as absent rather than as NaN/Inf
// (§8 score sanitization).
func finiteOrNil(f float64) *float64 {
	if !math.IsFinite(f) {
		return nil
	}
	v := f
	return &v
}

func charSum(docs []*document.Document) int {
	n := 0
	for _, d := range docs {
		n += len(d.PageContent)
	}
	return n
}

func (c *Coordinator) promptStage(ctx context.Context, st *State) bool {
	st.Status = Prompting
	r := c.Prompt
	if r == nil {
		r = prompt.NewRender(c.Config.SystemPrompt)
	}
	st.Messages = r.Build(st.Query, st.Context)
	return true
}

// Generate is a convenience helper chaining Run with a final chat call,
// exercised by cmd/ragdemo.
func Generate(ctx context.Context, c *Coordinator, chat llmport.Chat, jobID, userID, sessionID, q string) (*State, string, error) {
	st := c.Run(ctx, jobID, userID, sessionID, q)
	if st.Status == Failed {
		return st, "", st.Err
	}
	answer, err := chat.Chat(ctx, st.Messages, &llmport.Options{Temperature: 0})
	if err != nil {
		return st, "", ragerr.Wrap(ragerr.RerankError, "chat completion failed", err)
	}
	return st, answer, nil
}
