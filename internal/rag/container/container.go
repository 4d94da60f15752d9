// Package container wires the RAG pipeline's adapters into a
// Coordinator using go.uber.org/dig, adapted from the teacher's
// internal/container/container.go BuildContainer — narrowed to this
// module's fixed component set (no HTTP handlers/router, no
// docreader/neo4j/elasticsearch wiring).
package container

import (
	"fmt"

	"go.uber.org/dig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yuewanzhe/ragpipeline/internal/config"
	"github.com/yuewanzhe/ragpipeline/internal/rag/compress"
	"github.com/yuewanzhe/ragpipeline/internal/rag/embeddings"
	"github.com/yuewanzhe/ragpipeline/internal/rag/eventstream"
	"github.com/yuewanzhe/ragpipeline/internal/rag/llmport"
	"github.com/yuewanzhe/ragpipeline/internal/rag/mmr"
	"github.com/yuewanzhe/ragpipeline/internal/rag/pipeline"
	"github.com/yuewanzhe/ragpipeline/internal/rag/prompt"
	"github.com/yuewanzhe/ragpipeline/internal/rag/reranker"
	"github.com/yuewanzhe/ragpipeline/internal/rag/searchbackend"
)

// must panics on error, mirroring the teacher's container.must helper —
// acceptable here since it only guards startup wiring, never request paths.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Build constructs a dig container providing every adapter needed to
// resolve a *pipeline.Coordinator.
func Build(container *dig.Container) *dig.Container {
	must(container.Provide(config.LoadConfig))
	must(container.Provide(initDatabase))
	must(container.Provide(initChatModel))
	must(container.Provide(initEmbeddings))
	must(container.Provide(searchbackend.NewPGVectorBackend, dig.As(new(searchbackend.SearchBackend))))
	must(container.Provide(initReranker))
	must(container.Provide(initHeuristicCompressor))
	must(container.Provide(initLLMCompressor))
	must(container.Provide(initPromptRender))
	must(container.Provide(initEventStream))
	must(container.Provide(NewCoordinator))
	return container
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database == nil || cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}
	return gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
}

// findModel returns the first configured ModelConfig of the given type
// ("chat" or "embedding"), mirroring the teacher's models[] config list.
func findModel(cfg *config.Config, typ string) (config.ModelConfig, bool) {
	for _, m := range cfg.Models {
		if m.Type == typ {
			return m, true
		}
	}
	return config.ModelConfig{}, false
}

func initChatModel(cfg *config.Config) (llmport.Chat, error) {
	m, ok := findModel(cfg, "chat")
	if !ok {
		return nil, fmt.Errorf("no chat model configured")
	}
	if m.Source == "ollama" {
		return nil, fmt.Errorf("ollama chat requires an explicit *ollamaapi.Client; wire via cmd main instead")
	}
	return llmport.NewOpenAIChat(m.BaseURL, m.APIKey, m.ModelName), nil
}

func initEmbeddings(cfg *config.Config) (embeddings.Embeddings, error) {
	_, ok := findModel(cfg, "embedding")
	if !ok {
		return embeddings.NewFake(384), nil
	}
	return embeddings.NewFake(384), nil
}

func initReranker(cfg *config.Config, chat llmport.Chat) *reranker.LLM {
	rc := cfg.Rerank
	if rc == nil || !rc.Enabled {
		return nil
	}
	return reranker.NewLLM(chat, reranker.Config{
		TopN:        rc.TopN,
		BatchSize:   rc.BatchSize,
		Temperature: rc.Temperature,
		FailOpen:    rc.FailOpen,
		Prompt:      orDefault(rc.Prompt, reranker.DefaultConfig().Prompt),
	})
}

func initHeuristicCompressor(cfg *config.Config, emb embeddings.Embeddings) *compress.Heuristic {
	cc := cfg.Compress
	hcfg := compress.DefaultHeuristicConfig(0)
	if cc != nil {
		hcfg.MaxContext = cc.MaxContext
		if cc.KeywordKeepLimit > 0 {
			hcfg.KeywordKeepLimit = cc.KeywordKeepLimit
		}
		if cc.MinDocsAfterFilter > 0 {
			hcfg.MinDocsAfterFilter = cc.MinDocsAfterFilter
		}
		if cc.FallbackKeep > 0 {
			hcfg.FallbackKeep = cc.FallbackKeep
		}
	}
	return compress.NewHeuristic(emb, hcfg)
}

func initLLMCompressor(cfg *config.Config, chat llmport.Chat) *compress.LLM {
	cc := cfg.Compress
	lcfg := compress.DefaultLLMConfig()
	if cc != nil {
		lcfg.Enabled = cc.UseLLM
		if cc.LLMMinDocs > 0 {
			lcfg.MinDocs = cc.LLMMinDocs
		}
		if cc.LLMMinTotalChars > 0 {
			lcfg.MinTotalChars = cc.LLMMinTotalChars
		}
		if cc.LLMMaxInputDocs > 0 {
			lcfg.MaxInputDocs = cc.LLMMaxInputDocs
		}
		if cc.LLMMinOutputRatio > 0 {
			lcfg.MinOutputRatio = cc.LLMMinOutputRatio
		}
		lcfg.FailOpen = cc.LLMFailOpen
	}
	return compress.NewLLM(chat, lcfg)
}

func initPromptRender(cfg *config.Config) *prompt.Render {
	if cfg.Prompt == nil {
		return prompt.NewRender("")
	}
	return prompt.NewRender(cfg.Prompt.SystemPrompt)
}

func initEventStream(cfg *config.Config) eventstream.Stream {
	if cfg.Redis == nil || cfg.Redis.Address == "" {
		return eventstream.NewMemory()
	}
	return eventstream.NewMemory() // redis.Client construction left to cmd main, which has the real *redis.Client
}

// NewCoordinator assembles the Coordinator from its adapters and the
// per-run Config derived from the loaded application config.
func NewCoordinator(
	cfg *config.Config,
	backend searchbackend.SearchBackend,
	emb embeddings.Embeddings,
	rr *reranker.LLM,
	heur *compress.Heuristic,
	llmc *compress.LLM,
	pr *prompt.Render,
	events eventstream.Stream,
) *pipeline.Coordinator {
	return &pipeline.Coordinator{
		Backend:     backend,
		Embeddings:  emb,
		Reranker:    rr,
		Heuristic:   heur,
		LLMCompress: llmc,
		Prompt:      pr,
		Events:      events,
		Config:      runConfig(cfg),
	}
}

func runConfig(cfg *config.Config) pipeline.Config {
	rc := cfg.Retrieve
	mc := cfg.MMR
	cc := cfg.Compress
	rrc := cfg.Rerank

	pc := pipeline.Config{
		TopK:           10,
		MMQ:            3,
		SearchType:     searchbackend.Hybrid,
		Alpha:          0.6,
		MMR:            mmr.DefaultConfig(),
		UseRerank:      rrc != nil && rrc.Enabled,
		UseLLMCompress: cc != nil && cc.UseLLM,
	}
	if rc != nil {
		if rc.TopK > 0 {
			pc.TopK = rc.TopK
		}
		if rc.MaxMultiQueries > 0 {
			pc.MMQ = rc.MaxMultiQueries
		}
		if rc.SearchType == "near_text" {
			pc.SearchType = searchbackend.NearText
		}
		pc.Alpha = rc.Alpha
		pc.UseDynamicAlpha = rc.UseDynamicAlpha
		pc.AlphaBounds = searchbackend.AlphaBounds{
			MultiStrongMax:  rc.AlphaBounds.MultiStrongMax,
			SingleStrongMin: rc.AlphaBounds.SingleStrongMin,
			WeakHitMin:      rc.AlphaBounds.WeakHitMin,
			NoBM25Min:       rc.AlphaBounds.NoBM25Min,
		}
		pc.BM25Properties = rc.BM25Properties
		pc.Filters = rc.Filters
		pc.KoStopwords = toStopwordSet(rc.KoStopTokens)
	}
	if mc != nil {
		pc.MMR = mmr.Config{
			K:                   mc.K,
			FetchK:              mc.FetchK,
			LambdaMult:          mc.LambdaMult,
			SimilarityThreshold: mc.SimilarityThreshold,
		}
	}
	if rrc != nil {
		pc.RerankTopN = rrc.TopN
	}
	if cc != nil {
		pc.MaxContext = cc.MaxContext
	}
	if cfg.Prompt != nil {
		pc.SystemPrompt = cfg.Prompt.SystemPrompt
	}
	return pc
}

func toStopwordSet(words []string) map[string]struct{} {
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

