package domain

// AIProvider identifies one of the interchangeable generative-AI backends.
type AIProvider string

const (
	ProviderGemini AIProvider = "gemini"
	ProviderOpenAI AIProvider = "openai"
)

// DefaultProvider is used when a browser has never chosen one.
const DefaultProvider = ProviderGemini

// Valid reports whether p names a supported backend.
func (p AIProvider) Valid() bool {
	return p == ProviderGemini || p == ProviderOpenAI
}

// AIResponse is the normalized output of any provider adapter.
type AIResponse struct {
	Provider AIProvider
	Text     string
}

// Theme is the UI colour preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

// Preferences is the browser-local preference record.
type Preferences struct {
	Provider AIProvider `json:"provider"`
	Theme    Theme      `json:"theme"`
}

// ProviderChanged is broadcast whenever a browser switches AI provider.
type ProviderChanged struct {
	ClientID string
	Previous AIProvider
	Current  AIProvider
}
