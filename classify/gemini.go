package classify

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// GeminiConfig holds Gemini-specific configuration
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiConfigFromEnv reads GEMINI_API_KEY and GEMINI_MODEL
func GeminiConfigFromEnv() (GeminiConfig, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return GeminiConfig{}, errors.New("GEMINI_API_KEY environment variable is required")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return GeminiConfig{APIKey: apiKey, Model: model}, nil
}

// Gemini generates completions with the Gemini API
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator
func NewGemini(ctx context.Context, config GeminiConfig) (*Gemini, error) {
	if config.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{client: client, model: config.Model}, nil
}

// Generate implements Generator
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if result == nil {
		return "", errors.New("gemini generate: no response")
	}

	text, err := result.Text()
	if err != nil {
		return "", fmt.Errorf("gemini response text: %w", err)
	}
	if text == "" {
		return "", errors.New("gemini generate: empty response")
	}
	return text, nil
}
