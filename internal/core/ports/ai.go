package ports

import (
	"context"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

// Generator is one generative-AI backend behind a prompt-in/text-out adapter.
type Generator interface {
	ID() domain.AIProvider
	DisplayName() string
	// Hint is the remediation shown to users when this provider fails.
	Hint() string
	Generate(ctx context.Context, prompt string) (domain.AIResponse, error)
}

// UsageRecorder accepts usage increments for asynchronous application.
type UsageRecorder interface {
	Record(d UsageDelta)
}

// GeneratorRegistry looks up adapters by provider id.
type GeneratorRegistry interface {
	Get(p domain.AIProvider) (Generator, error)
}

// ProviderInfo describes a provider for selection screens.
type ProviderInfo struct {
	ID          domain.AIProvider `json:"id"`
	DisplayName string            `json:"display_name"`
	Model       string            `json:"model"`
	// Available is false when the provider has no credentials configured.
	Available bool `json:"available"`
}

// ProviderCatalog lists every known provider.
type ProviderCatalog interface {
	List() []ProviderInfo
}
