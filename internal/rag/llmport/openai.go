package llmport

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIChat adapts github.com/sashabaranov/go-openai to the Chat port,
// adapted from the teacher's internal/models/chat/remote_api.go
// RemoteAPIChat (there the full response is unpacked into a ChatResponse;
// here the core only needs the text).
type OpenAIChat struct {
	client    *openai.Client
	modelName string
}

func NewOpenAIChat(baseURL, apiKey, modelName string) *OpenAIChat {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIChat{client: openai.NewClientWithConfig(cfg), modelName: modelName}
}

func (c *OpenAIChat) ModelName() string { return c.modelName }

func (c *OpenAIChat) Chat(ctx context.Context, messages []Message, opts *Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.modelName,
		Messages: convert(messages),
	}
	if opts != nil {
		if opts.Temperature > 0 {
			req.Temperature = float32(opts.Temperature)
		}
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
		if opts.Seed != 0 {
			seed := opts.Seed
			req.Seed = &seed
		}
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}
	return resp.Choices[0].Message.Content, nil
}

func convert(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
