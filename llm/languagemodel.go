package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// CompletionRequest is one prompt for the answer model.
type CompletionRequest struct {
	SystemPrompt string
	UserMessage  string
	MaxTokens    int
	Temperature  float32
}

// LanguageModel generates a natural-language answer from a prompt.
type LanguageModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// OpenAILanguageModel answers through the OpenAI chat completion API.
type OpenAILanguageModel struct {
	client *openai.Client
	model  string
}

func NewOpenAILanguageModel(apiKey, model string) *OpenAILanguageModel {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAILanguageModel{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (o *OpenAILanguageModel) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.UserMessage,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
