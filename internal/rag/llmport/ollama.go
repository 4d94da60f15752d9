package llmport

import (
	"context"
	"fmt"

	ollamaapi "github.com/ollama/ollama/api"
)

// OllamaChat adapts a local Ollama server to the Chat port, mirroring the
// teacher's internal/models/chat/ollama.go OllamaChat/ollamaapi.Client usage
// but talking to the client directly rather than through the teacher's
// process-wide ollama.OllamaService/dig-container indirection, since this
// module has no equivalent service registry.
type OllamaChat struct {
	client    *ollamaapi.Client
	modelName string
}

func NewOllamaChat(client *ollamaapi.Client, modelName string) *OllamaChat {
	return &OllamaChat{client: client, modelName: modelName}
}

func (c *OllamaChat) ModelName() string { return c.modelName }

func (c *OllamaChat) Chat(ctx context.Context, messages []Message, opts *Options) (string, error) {
	stream := false
	req := &ollamaapi.ChatRequest{
		Model:    c.modelName,
		Messages: convertOllama(messages),
		Stream:   &stream,
		Options:  map[string]interface{}{},
	}
	if opts != nil {
		if opts.Temperature > 0 {
			req.Options["temperature"] = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			req.Options["num_predict"] = opts.MaxTokens
		}
	}

	var out string
	err := c.client.Chat(ctx, req, func(resp ollamaapi.ChatResponse) error {
		out += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return out, nil
}

func convertOllama(messages []Message) []ollamaapi.Message {
	out := make([]ollamaapi.Message, len(messages))
	for i, m := range messages {
		out[i] = ollamaapi.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
