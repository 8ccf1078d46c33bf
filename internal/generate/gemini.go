package generate

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiBackend calls the Gemini API.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend creates a Gemini client for model.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required (set ai.api_key or GEMINI_API_KEY)")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return &GeminiBackend{client: client, model: model}, nil
}

func (b *GeminiBackend) Name() string {
	return "gemini"
}

func (b *GeminiBackend) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		perr := &ProviderError{Provider: b.Name(), Err: err}
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			perr.StatusCode = apiErr.Code
		}
		return "", perr
	}

	text := resp.Text()
	if text == "" {
		return "", &EmptyResponseError{Provider: b.Name()}
	}
	return text, nil
}
