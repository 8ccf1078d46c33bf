package generate

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend calls any OpenAI-compatible chat completion endpoint.
// Pollinations is reached by pointing baseURL at its OpenAI endpoint.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates a client. An empty baseURL uses api.openai.com,
// which requires a key; custom endpoints may be keyless.
func NewOpenAIBackend(apiKey, model, baseURL string) (*OpenAIBackend, error) {
	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("openai: API key is required (set ai.api_key or OPENAI_API_KEY)")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

func (b *OpenAIBackend) Name() string {
	return "openai"
}

func (b *OpenAIBackend) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		perr := &ProviderError{Provider: b.Name(), Err: err}
		var apiErr *openai.APIError
		var reqErr *openai.RequestError
		switch {
		case errors.As(err, &apiErr):
			perr.StatusCode = apiErr.HTTPStatusCode
		case errors.As(err, &reqErr):
			perr.StatusCode = reqErr.HTTPStatusCode
		}
		return "", perr
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &EmptyResponseError{Provider: b.Name()}
	}
	return resp.Choices[0].Message.Content, nil
}
