package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

// contentGenerator is the part of the genai client the adapter uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is the Google Gemini adapter.
type Gemini struct {
	models contentGenerator
	model  string
	entry  CatalogEntry
}

// NewGemini creates a Gemini API client for apiKey. An empty model selects
// the catalog default.
func NewGemini(ctx context.Context, apiKey, model string, entry CatalogEntry) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return newGemini(client.Models, model, entry), nil
}

func newGemini(models contentGenerator, model string, entry CatalogEntry) *Gemini {
	if model == "" {
		model = entry.DefaultModel
	}
	return &Gemini{models: models, model: model, entry: entry}
}

func (g *Gemini) ID() domain.AIProvider { return domain.ProviderGemini }
func (g *Gemini) DisplayName() string   { return g.entry.DisplayName }
func (g *Gemini) Hint() string          { return g.entry.Hint }
func (g *Gemini) Model() string         { return g.model }

// Generate sends prompt as a single user turn.
func (g *Gemini) Generate(ctx context.Context, prompt string) (domain.AIResponse, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return domain.AIResponse{}, fmt.Errorf("%w: gemini: %v", domain.ErrProviderUnavailable, err)
	}
	text := resp.Text()
	if text == "" {
		return domain.AIResponse{}, fmt.Errorf("%w: gemini returned no text", domain.ErrProviderUnavailable)
	}
	return domain.AIResponse{Provider: domain.ProviderGemini, Text: text}, nil
}
