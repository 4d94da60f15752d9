// Package prompt renders the final two-message chat prompt from the
// packed context string and user query (spec §4.8), grounded on the
// teacher's chat_pipline/into_chat_message.go message-assembly idiom —
// narrowed here to the spec's fixed two-message shape instead of the
// teacher's templated multi-turn history, since this stage's job is
// exactly "system prompt + one mandated human template", not a
// configurable chat history.
package prompt

const DefaultSystemPrompt = "You are a helpful assistant. Answer the question using only the " +
	"context passages provided. If the context does not contain the answer, say so."

// Render builds the two messages (system, human) sent to the chat model.
// Only the system prompt is configurable; the human message follows the
// spec-mandated template verbatim (original_source rag_chain.py:99).
type Render struct {
	SystemPrompt string
}

func NewRender(systemPrompt string) *Render {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Render{SystemPrompt: systemPrompt}
}

// Message mirrors llmport.Message's shape without importing it, since
// prompt rendering has no dependency on the chat transport.
type Message struct {
	Role    string
	Content string
}

// Build renders the mandated human template around the already-packed
// context string (produced by the join stage, §4.7) and the query.
func (r *Render) Build(query, context string) []Message {
	human := "질문: " + query + "\n\nContext:\n" + context + "\n\n답변:"
	return []Message{
		{Role: "system", Content: r.SystemPrompt},
		{Role: "user", Content: human},
	}
}
