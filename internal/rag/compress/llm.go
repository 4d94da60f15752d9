package compress

import (
	"context"
	"fmt"
	"strings"

	"github.com/yuewanzhe/ragpipeline/internal/logger"
	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
	"github.com/yuewanzhe/ragpipeline/internal/rag/llmport"
)

// LLMConfig mirrors original_source's LLMContextualCompressor trigger and
// safety knobs.
type LLMConfig struct {
	Enabled          bool
	MinDocs          int     // trigger: candidate count must be >= this
	MinTotalChars     int     // trigger: combined content length must be >= this
	MaxInputDocs      int     // cap on docs sent to the model per call
	MinOutputRatio    float64 // below this ratio of input chars, fall back
	FailOpen          bool
	Temperature       float64
	Prompt            string
}

func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Enabled:        false,
		MinDocs:        4,
		MinTotalChars:  2000,
		MaxInputDocs:   10,
		MinOutputRatio: 0.15,
		FailOpen:       true,
		Temperature:    0.0,
		Prompt: "Given the question and the documents below, rewrite each document's " +
			"content to keep only the sentences relevant to answering the question. " +
			"Preserve document order and do not merge documents. Return each kept " +
			"document's content separated by a line containing only \"---\".\n\n" +
			"Question: %s\n\nDocuments:\n%s",
	}
}

// LLM is the optional second compressor tier (§4.6). It only runs when
// shouldTrigger returns true for the candidate set, and never removes more
// than it rewrites: on any error, or when the output looks truncated beyond
// MinOutputRatio, it falls back to the input set when FailOpen is set.
type LLM struct {
	Chat   llmport.Chat
	Config LLMConfig
}

func NewLLM(chat llmport.Chat, cfg LLMConfig) *LLM {
	return &LLM{Chat: chat, Config: cfg}
}

// Compress rewrites docs' content via the LLM when the trigger condition
// holds, otherwise returns docs unchanged.
func (l *LLM) Compress(ctx context.Context, q string, docs []*document.Document) []*document.Document {
	if l == nil || l.Chat == nil || !l.Config.Enabled || !l.shouldTrigger(docs) {
		return docs
	}

	input := docs
	if len(input) > l.Config.MaxInputDocs {
		input = input[:l.Config.MaxInputDocs]
	}

	inputChars := totalChars(input)
	rewritten, err := l.rewrite(ctx, q, input)
	if err != nil {
		logger.Warnf(ctx, "llm compressor failed, falling back to input set: %v", err)
		if l.Config.FailOpen {
			return docs
		}
		return nil
	}
	if len(rewritten) != len(input) {
		logger.Warnf(ctx, "llm compressor returned %d sections for %d docs, falling back", len(rewritten), len(input))
		return docs
	}

	out := make([]*document.Document, len(input))
	outChars := 0
	for i, d := range input {
		nd := *d
		content := strings.TrimSpace(rewritten[i])
		if content != "" {
			nd.PageContent = content
		}
		nd.Metadata = cloneMeta(d.Metadata)
		nd.Metadata["llm_compressed"] = content != ""
		out[i] = &nd
		outChars += len(nd.PageContent)
	}

	if inputChars > 0 && float64(outChars)/float64(inputChars) < l.Config.MinOutputRatio {
		logger.Warnf(ctx, "llm compressor output ratio %.3f below floor %.3f, falling back",
			float64(outChars)/float64(inputChars), l.Config.MinOutputRatio)
		if l.Config.FailOpen {
			return docs
		}
	}

	if len(docs) > len(input) {
		out = append(out, docs[len(input):]...)
	}
	return out
}

// shouldTrigger implements the four-part AND: enabled, candidate count,
// combined length, and a chat port actually configured.
func (l *LLM) shouldTrigger(docs []*document.Document) bool {
	if !l.Config.Enabled || l.Chat == nil {
		return false
	}
	if len(docs) < l.Config.MinDocs {
		return false
	}
	if totalChars(docs) < l.Config.MinTotalChars {
		return false
	}
	return true
}

func (l *LLM) rewrite(ctx context.Context, q string, docs []*document.Document) ([]string, error) {
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, d.PageContent)
	}
	prompt := fmt.Sprintf(l.Config.Prompt, q, b.String())
	messages := []llmport.Message{
		{Role: "user", Content: prompt},
	}
	resp, err := l.Chat.Chat(ctx, messages, &llmport.Options{Temperature: l.Config.Temperature})
	if err != nil {
		return nil, err
	}
	parts := strings.Split(resp, "---")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

// Applied reports whether the LLM compressor tier actually rewrote at
// least one document, as opposed to passing its input through unchanged
// (trigger not met, transport error, or output-ratio fallback).
func Applied(docs []*document.Document) bool {
	for _, d := range docs {
		if d.Metadata == nil {
			continue
		}
		if v, ok := d.Metadata["llm_compressed"]; ok {
			if b, ok := v.(bool); ok && b {
				return true
			}
		}
	}
	return false
}

func totalChars(docs []*document.Document) int {
	n := 0
	for _, d := range docs {
		n += len(d.PageContent)
	}
	return n
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
