package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

func TestProviderSwitch_DefaultsAndSet(t *testing.T) {
	sw := NewProviderSwitch(newMemPrefs(), domain.ProviderGemini, zerolog.Nop())
	ctx := context.Background()

	if p := sw.Get(ctx, testClient); p != domain.ProviderGemini {
		t.Fatalf("expected default gemini, got %s", p)
	}
	if th := sw.Preferences(ctx, testClient).Theme; th != domain.ThemeSystem {
		t.Fatalf("expected default theme system, got %s", th)
	}

	var changes []domain.ProviderChanged
	unsubscribe := sw.Subscribe(func(ev domain.ProviderChanged) { changes = append(changes, ev) })
	defer unsubscribe()

	if err := sw.Set(ctx, testClient, domain.ProviderOpenAI); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if p := sw.Get(ctx, testClient); p != domain.ProviderOpenAI {
		t.Fatalf("expected openai, got %s", p)
	}
	if len(changes) != 1 || changes[0].Previous != domain.ProviderGemini || changes[0].Current != domain.ProviderOpenAI {
		t.Fatalf("unexpected change events: %+v", changes)
	}
	if p := sw.Get(ctx, "other-browser"); p != domain.ProviderGemini {
		t.Fatalf("selection leaked to another browser: %s", p)
	}
}

func TestProviderSwitch_RejectsUnknown(t *testing.T) {
	sw := NewProviderSwitch(newMemPrefs(), domain.ProviderGemini, zerolog.Nop())

	if err := sw.Set(context.Background(), testClient, "claude"); !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if err := sw.SetTheme(context.Background(), testClient, "neon"); !errors.Is(err, domain.ErrInvalidPreference) {
		t.Fatalf("expected ErrInvalidPreference, got %v", err)
	}
}
