package describe

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIDescriber uses the OpenAI chat completions API.
type OpenAIDescriber struct {
	client    chatCompleter
	model     string
	maxTokens int
}

// NewOpenAIDescriber returns a describer for model using apiKey.
func NewOpenAIDescriber(apiKey, model string, maxTokens int) (*OpenAIDescriber, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIDescriber{client: openai.NewClient(apiKey), model: model, maxTokens: maxTokens}, nil
}

// Describe asks the model for a description of item.
func (d *OpenAIDescriber) Describe(ctx context.Context, item models.Item) (string, error) {
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: Prompt(item)},
		},
		Temperature: 0.7,
		MaxTokens:   d.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion: no choices returned")
	}
	text := utils.CollapseWhitespace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai chat completion: empty description")
	}
	return text, nil
}
