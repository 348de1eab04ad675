package describe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/pkg/utils"
)

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicDescriber uses the Anthropic messages API.
type AnthropicDescriber struct {
	messages  messageCreator
	model     string
	maxTokens int
}

// NewAnthropicDescriber returns a describer for model using apiKey.
func NewAnthropicDescriber(apiKey, model string, maxTokens int) (*AnthropicDescriber, error) {
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable not set")
	}
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicDescriber{messages: &client.Messages, model: model, maxTokens: maxTokens}, nil
}

// Describe asks the model for a description of item and joins the text blocks of the reply.
func (d *AnthropicDescriber) Describe(ctx context.Context, item models.Item) (string, error) {
	message, err := d.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(d.model),
		MaxTokens:   int64(d.maxTokens),
		Temperature: anthropic.Float(0.7),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(Prompt(item))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	var b strings.Builder
	for _, content := range message.Content {
		if content.Type == "text" {
			b.WriteString(content.Text)
		}
	}
	text := utils.CollapseWhitespace(b.String())
	if text == "" {
		return "", errors.New("anthropic messages: empty description")
	}
	return text, nil
}
