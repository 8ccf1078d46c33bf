package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend calls the Anthropic Messages API.
type AnthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicBackend creates an Anthropic client. maxTokens of 0 means
// 8192.
func NewAnthropicBackend(apiKey, model string, maxTokens int) (*AnthropicBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required (set ai.api_key or ANTHROPIC_API_KEY)")
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	if maxTokens == 0 {
		maxTokens = 8192
	}
	return &AnthropicBackend{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (b *AnthropicBackend) Name() string {
	return "anthropic"
}

func (b *AnthropicBackend) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(b.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		perr := &ProviderError{Provider: b.Name(), Err: err}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			perr.StatusCode = apiErr.StatusCode
		}
		return "", perr
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", &EmptyResponseError{Provider: b.Name()}
	}
	return out.String(), nil
}
