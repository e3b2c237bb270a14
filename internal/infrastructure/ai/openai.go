package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

// OpenAIBaseURL is the default endpoint; any compatible server works.
const OpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI is the adapter for OpenAI-compatible chat completion APIs.
type OpenAI struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	entry   CatalogEntry
}

// NewOpenAI creates an OpenAI adapter. The client should carry no timeout;
// each call is bounded by its context.
func NewOpenAI(client *http.Client, baseURL, apiKey, model string, entry CatalogEntry) *OpenAI {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	if model == "" {
		model = entry.DefaultModel
	}
	return &OpenAI{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		entry:   entry,
	}
}

func (o *OpenAI) ID() domain.AIProvider { return domain.ProviderOpenAI }
func (o *OpenAI) DisplayName() string   { return o.entry.DisplayName }
func (o *OpenAI) Hint() string          { return o.entry.Hint }
func (o *OpenAI) Model() string         { return o.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate posts prompt as a single user message to /chat/completions.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (domain.AIResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model:    o.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return domain.AIResponse{}, fmt.Errorf("openai: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.AIResponse{}, fmt.Errorf("openai: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return domain.AIResponse{}, fmt.Errorf("%w: openai: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.AIResponse{}, fmt.Errorf("%w: openai: read response: %v", domain.ErrProviderUnavailable, err)
	}

	var out chatResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return domain.AIResponse{}, fmt.Errorf("%w: openai: %d %s", domain.ErrProviderUnavailable, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return domain.AIResponse{}, fmt.Errorf("%w: openai: decode response: %v", domain.ErrProviderUnavailable, decodeErr)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return domain.AIResponse{}, fmt.Errorf("%w: openai returned no text", domain.ErrProviderUnavailable)
	}
	return domain.AIResponse{Provider: domain.ProviderOpenAI, Text: out.Choices[0].Message.Content}, nil
}
