// Package provider wraps the text generation backends behind a common
// interface and runs them as an ordered fallback chain.
package provider

import "context"

type Provider interface {
	Name() string
	// Complete sends a system and user prompt and returns the model's text.
	Complete(ctx context.Context, system, user string) (string, error)
}

type Credentials struct {
	GeminiAPIKey  string
	GeminiModel   string
	NvidiaAPIKey  string
	NvidiaBaseURL string
	NvidiaModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
}

// Build returns the configured providers in preference order. A per-user
// OpenAI key, when set on creds, takes the place of the server key.
func Build(creds Credentials) []Provider {
	var providers []Provider
	if creds.GeminiAPIKey != "" {
		providers = append(providers, NewGemini(creds.GeminiAPIKey, creds.GeminiModel))
	}
	if creds.NvidiaAPIKey != "" {
		providers = append(providers, NewOpenAICompatible("nvidia", creds.NvidiaAPIKey, creds.NvidiaBaseURL, creds.NvidiaModel))
	}
	if creds.OpenAIAPIKey != "" {
		providers = append(providers, NewOpenAICompatible("openai", creds.OpenAIAPIKey, "", creds.OpenAIModel))
	}
	return providers
}
