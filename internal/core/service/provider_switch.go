package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/events"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// ProviderSwitch implements ports.ProviderSwitch. Readers call Get at
// request time, so a switch applies to the very next request.
type ProviderSwitch struct {
	prefs    ports.PreferenceStore
	bus      *events.Bus[domain.ProviderChanged]
	fallback domain.AIProvider
	log      zerolog.Logger
}

// NewProviderSwitch returns a switch defaulting to fallback, or to
// domain.DefaultProvider when fallback is not a known provider.
func NewProviderSwitch(prefs ports.PreferenceStore, fallback domain.AIProvider, log zerolog.Logger) *ProviderSwitch {
	if !fallback.Valid() {
		fallback = domain.DefaultProvider
	}
	return &ProviderSwitch{
		prefs:    prefs,
		bus:      events.NewBus[domain.ProviderChanged](),
		fallback: fallback,
		log:      log,
	}
}

// Get returns the browser's provider, falling back to the default when the
// preference is unset, unknown or unreadable.
func (s *ProviderSwitch) Get(ctx context.Context, clientID string) domain.AIProvider {
	return s.Preferences(ctx, clientID).Provider
}

// Set persists p and broadcasts the change.
func (s *ProviderSwitch) Set(ctx context.Context, clientID string, p domain.AIProvider) error {
	if !p.Valid() {
		return fmt.Errorf("set provider %q: %w", p, domain.ErrUnknownProvider)
	}

	prev := s.Get(ctx, clientID)
	if err := s.prefs.SetProvider(ctx, clientID, p); err != nil {
		return fmt.Errorf("set provider: %w", err)
	}

	s.log.Info().Str("client_id", clientID).Str("provider", string(p)).Msg("AI provider switched")
	s.bus.Publish(domain.ProviderChanged{ClientID: clientID, Previous: prev, Current: p})
	return nil
}

// Preferences returns the stored preferences with defaults filled in.
func (s *ProviderSwitch) Preferences(ctx context.Context, clientID string) domain.Preferences {
	prefs, err := s.prefs.GetPreferences(ctx, clientID)
	if err != nil {
		s.log.Warn().Err(err).Str("client_id", clientID).Msg("failed to read preferences")
		prefs = domain.Preferences{}
	}
	if !prefs.Provider.Valid() {
		prefs.Provider = s.fallback
	}
	if !prefs.Theme.Valid() {
		prefs.Theme = domain.ThemeSystem
	}
	return prefs
}

// SetTheme persists the theme preference.
func (s *ProviderSwitch) SetTheme(ctx context.Context, clientID string, t domain.Theme) error {
	if !t.Valid() {
		return fmt.Errorf("set theme %q: %w", t, domain.ErrInvalidPreference)
	}
	if err := s.prefs.SetTheme(ctx, clientID, t); err != nil {
		return fmt.Errorf("set theme: %w", err)
	}
	return nil
}

// Subscribe registers fn for every provider change, including changes made
// by the caller itself.
func (s *ProviderSwitch) Subscribe(fn func(domain.ProviderChanged)) func() {
	return s.bus.Subscribe(fn)
}
