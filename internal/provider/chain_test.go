package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
	err  error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Complete(context.Context, string, string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "ok", nil
}

func TestChainNoProviders(t *testing.T) {
	chain := NewChain(nil)
	err := chain.Run(context.Background(), func(context.Context, Provider) error {
		t.Fatal("attempt should not run without providers")
		return nil
	})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestChainFallbackOrder(t *testing.T) {
	providers := []Provider{
		&stubProvider{name: "first", err: errors.New("first down")},
		&stubProvider{name: "second"},
		&stubProvider{name: "third"},
	}
	chain := NewChain(providers)

	var attempted []string
	err := chain.Run(context.Background(), func(ctx context.Context, p Provider) error {
		attempted = append(attempted, p.Name())
		_, err := p.Complete(ctx, "", "")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, attempted)
}

func TestChainAllFail(t *testing.T) {
	lastErr := errors.New("quota exhausted")
	providers := []Provider{
		&stubProvider{name: "first", err: errors.New("first down")},
		&stubProvider{name: "second", err: lastErr},
	}
	chain := NewChain(providers)

	err := chain.Run(context.Background(), func(ctx context.Context, p Provider) error {
		_, err := p.Complete(ctx, "", "")
		return err
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, lastErr)
	assert.Contains(t, err.Error(), "all configured providers failed")
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := NewChain([]Provider{&stubProvider{name: "only"}})
	err := chain.Run(ctx, func(context.Context, Provider) error {
		t.Fatal("attempt should not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildOrder(t *testing.T) {
	providers := Build(Credentials{
		GeminiAPIKey: "g",
		GeminiModel:  "gemini-2.5-flash",
		NvidiaAPIKey: "n",
		NvidiaModel:  "meta/llama-3.1-70b-instruct",
		OpenAIAPIKey: "o",
		OpenAIModel:  "gpt-4o-mini",
	})
	require.Len(t, providers, 3)
	assert.Equal(t, "gemini", providers[0].Name())
	assert.Equal(t, "nvidia", providers[1].Name())
	assert.Equal(t, "openai", providers[2].Name())
}

func TestBuildSkipsUnconfigured(t *testing.T) {
	providers := Build(Credentials{OpenAIAPIKey: "o", OpenAIModel: "gpt-4o-mini"})
	require.Len(t, providers, 1)
	assert.Equal(t, "openai", providers[0].Name())
}
