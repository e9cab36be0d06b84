package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Geotechcompany/synovora/internal/provider"
)

type scriptedProvider struct {
	name    string
	replies []string
	err     error
	calls   int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(_ context.Context, _, _ string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	reply := p.replies[p.calls%len(p.replies)]
	p.calls++
	return reply, nil
}

func TestGenerateRunsPipelineOnOneProvider(t *testing.T) {
	good := &scriptedProvider{name: "good", replies: []string{"  \"Final post text.\"  "}}
	chain := provider.NewChain([]provider.Provider{good})

	svc := NewGenerateService(nil)
	text, err := svc.Generate(context.Background(), chain, "designer", "Design systems", "")
	require.NoError(t, err)
	assert.Equal(t, "Final post text.", text)
	// No trend data, so only draft and edit stages run.
	assert.Equal(t, 2, good.calls)
}

func TestGenerateFallsBackToNextProvider(t *testing.T) {
	bad := &scriptedProvider{name: "bad", err: errors.New("rate limited")}
	good := &scriptedProvider{name: "good", replies: []string{"A clean post."}}
	chain := provider.NewChain([]provider.Provider{bad, good})

	svc := NewGenerateService(nil)
	text, err := svc.Generate(context.Background(), chain, "", "Remote hiring", "")
	require.NoError(t, err)
	assert.Equal(t, "A clean post.", text)
}

func TestSuggestTopicsParsesJSONArray(t *testing.T) {
	p := &scriptedProvider{name: "p", replies: []string{`["Topic one", "Topic two", "Topic three", "Topic four"]`}}
	chain := provider.NewChain([]provider.Provider{p})

	svc := NewGenerateService(nil)
	topics, err := svc.SuggestTopics(context.Background(), chain, "copywriter", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"Topic one", "Topic two", "Topic three", "Topic four"}, topics)
}

func TestSuggestTopicsHandlesCodeFence(t *testing.T) {
	p := &scriptedProvider{name: "p", replies: []string{"```json\n[\"A\", \"B\", \"C\"]\n```"}}
	chain := provider.NewChain([]provider.Provider{p})

	svc := NewGenerateService(nil)
	topics, err := svc.SuggestTopics(context.Background(), chain, "copywriter", 3)
	require.NoError(t, err)
	assert.Len(t, topics, 3)
}

func TestSuggestTopicsRejectsNonArray(t *testing.T) {
	p := &scriptedProvider{name: "p", replies: []string{"here are some ideas: 1. x 2. y"}}
	chain := provider.NewChain([]provider.Provider{p})

	svc := NewGenerateService(nil)
	_, err := svc.SuggestTopics(context.Background(), chain, "copywriter", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all configured providers failed")
}

func TestBuildImagePrompt(t *testing.T) {
	prompt := BuildImagePrompt("Pricing psychology", "ignored content")
	assert.Contains(t, prompt, "Pricing psychology")
	assert.Contains(t, prompt, "no text")

	fromContent := BuildImagePrompt("", "First line here\nsecond line")
	assert.Contains(t, fromContent, "First line here")
	assert.NotContains(t, fromContent, "second line")
}

func TestFormatTrendBrief(t *testing.T) {
	assert.Equal(t, "", FormatTrendBrief(nil))

	brief := FormatTrendBrief([]TrendItem{
		{Title: "AI tooling shakeup", Snippet: "New releases this week", Source: "techcrunch"},
	})
	assert.True(t, strings.HasPrefix(brief, "Recent signals:"))
	assert.Contains(t, brief, "AI tooling shakeup")
	assert.Contains(t, brief, "(techcrunch)")
}
