package proxy

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Generator produces a completion for one prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, temperature float32) (string, error)
}

// GeminiGenerator calls the Gemini API with a server-held key.
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator builds a client for apiKey. baseURL overrides the API
// host and is empty in normal use.
func NewGeminiGenerator(ctx context.Context, apiKey, baseURL string) (*GeminiGenerator, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &GeminiGenerator{client: client}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, model, prompt string, temperature float32) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
