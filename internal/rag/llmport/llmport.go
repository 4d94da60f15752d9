// Package llmport defines the LLM transport port used by the reranker and
// the LLM compressor (spec §6, §9 "Callback-based LLM streaming" — the core
// only ever needs the full-response path).
package llmport

import "context"

// Message is one chat turn.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Options mirrors the subset of chat-completion parameters the reranker and
// compressor prompts need; zero values are omitted from the outgoing request.
type Options struct {
	Temperature float64
	MaxTokens   int
	Seed        int
}

// Chat is the LLM port. Both the LLM reranker and the LLM compressor call
// only Chat (never ChatStream, which belongs to the excluded transport per
// §9) with a deterministic prompt (the reranker asks for JSON, the
// compressor for "---"-separated text) and expect a single text response
// back.
type Chat interface {
	Chat(ctx context.Context, messages []Message, opts *Options) (string, error)
	ModelName() string
}
