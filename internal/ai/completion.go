package ai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultCompletionModel is the chat model used for conflict analysis,
// merges and category summaries.
const DefaultCompletionModel = openai.GPT4oMini

// ErrEmptyCompletion is returned when the provider returns no choices.
var ErrEmptyCompletion = errors.New("no completion choices returned")

// Message is a single chat turn.
type Message struct {
	Role    string
	Content string
}

// CompletionAPI defines the interface for chat completion generation
type CompletionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// CompletionClient wraps the OpenAI chat completion API.
type CompletionClient struct {
	api   CompletionAPI
	model string
}

// CompletionConfig configures a CompletionClient.
type CompletionConfig struct {
	APIKey string
	Model  string
}

// NewCompletionClient creates a CompletionClient with defaults.
func NewCompletionClient(apiKey string) *CompletionClient {
	return NewCompletionClientWithConfig(CompletionConfig{APIKey: apiKey})
}

// NewCompletionClientWithConfig creates a CompletionClient with explicit configuration.
func NewCompletionClientWithConfig(cfg CompletionConfig) *CompletionClient {
	model := cfg.Model
	if model == "" {
		model = DefaultCompletionModel
	}
	return &CompletionClient{
		api:   openai.NewClient(cfg.APIKey),
		model: model,
	}
}

// Complete sends a system prompt plus history and returns the completion text.
func (c *CompletionClient) Complete(ctx context.Context, system string, history []Message, temperature float32) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range history {
		role := m.Role
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

// CompleteJSON is Complete with the provider's JSON response format enabled,
// for prompts that must return a machine-parseable object.
func (c *CompletionClient) CompleteJSON(ctx context.Context, system string, history []Message, temperature float32) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range history {
		role := m.Role
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}
