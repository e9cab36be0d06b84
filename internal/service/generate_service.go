package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Geotechcompany/synovora/internal/provider"
)

const (
	researchSystemPrompt = "You are a senior content strategist scouting timely topics for a LinkedIn creator."
	writerSystemPrompt   = "You are an expert LinkedIn content creator who specializes in educational, framework-style posts."
	editorSystemPrompt   = "You are a meticulous editor specializing in educational LinkedIn content."
	topicsSystemPrompt   = "You are a senior LinkedIn growth strategist who turns fresh industry signals into strong post angles."
)

// GenerateService turns a topic into publishable post text through a staged
// pipeline (optional trend research, draft, edit). The whole pipeline runs on
// one provider; any stage failure moves the chain to the next provider.
type GenerateService struct {
	trends *TrendService
}

func NewGenerateService(trends *TrendService) *GenerateService {
	return &GenerateService{trends: trends}
}

func dateContext(now time.Time) string {
	return fmt.Sprintf("Today's date (UTC): %s. The current year is %d. Do not reference outdated years unless a live finding explicitly mentions one.",
		now.UTC().Format("2006-01-02"), now.UTC().Year())
}

func researchPrompt(now time.Time, occupation, topic, trendBrief string) string {
	niche := occupation
	if niche == "" {
		niche = "General professional audience"
	}
	return fmt.Sprintf(`%s

User niche: %s
Requested angle/topic: %s

Live internet research results:
%s

Requirements:
- Output 3 concise conversation starters tailored to the user niche
- Each starter must reference one of the live findings or data points
- Include one punchy supporting insight or stat per starter
- Keep bullets under 40 words

Respond ONLY with the three bullet points.`, dateContext(now), niche, topic, trendBrief)
}

func draftPrompt(now time.Time, occupation, topic, additionalContext, researchNotes string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a high-IQ, human-style LinkedIn post about %s.\n\n%s\n", topic, dateContext(now))
	if additionalContext != "" {
		fmt.Fprintf(&sb, "\nAdditional context: %s\n", additionalContext)
	}
	if occupation != "" {
		fmt.Fprintf(&sb, "\nAuthor niche: %s\n", occupation)
	}
	if researchNotes != "" {
		fmt.Fprintf(&sb, "\nLive trend research:\n%s\n", researchNotes)
	}
	sb.WriteString(`
Requirements (educational, framework-style, like a mini-lesson):
- Output MUST be plain text only (no markdown). Do NOT use asterisks, bold, headings, or hashtag lines.
- Teach a clear FRAMEWORK or SYSTEM (phases, steps, or key principles), not just one random tip.
- Explain the WHY: why this matters, common mistakes, or the shift in thinking.
- Include one memorable BIG IDEA or takeaway.
- Keep it under 150 words. Start with a hook; end with an engaging question.
- No hashtags. Use emojis naturally (0-2 max). Avoid jargon.
- If live trend research is provided, incorporate ONE timely detail and keep it current.`)
	return sb.String()
}

func editPrompt(draft string) string {
	return fmt.Sprintf(`Review and refine the LinkedIn post draft below. Ensure it:

1. Is plain text only (NO markdown, asterisks, bold, headings, or hashtag lines).
2. Teaches a clear FRAMEWORK or SYSTEM with a memorable big idea or takeaway.
3. Explains the WHY (why it matters, common mistakes, or shift in thinking).
4. Is under 150 words (strict limit) with a compelling hook in the first 1-2 lines.
5. Ends with an engaging question.
6. Has NO hashtags and at most 2 emojis.

If the post is too long, trim while keeping the framework, hook, and takeaway.
Remove any outdated year references.

Output ONLY the final refined post text, nothing else.

Draft:
%s`, draft)
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// Generate produces final post text for the topic using the given provider
// chain. Trend research is skipped when no trend data is available.
func (s *GenerateService) Generate(ctx context.Context, chain *provider.Chain, occupation, topic, additionalContext string) (string, error) {
	trendBrief := ""
	if s.trends != nil {
		trendBrief = FormatTrendBrief(s.trends.Fetch(ctx, occupation))
	}

	now := time.Now()
	var final string
	err := chain.Run(ctx, func(ctx context.Context, p provider.Provider) error {
		researchNotes := ""
		if trendBrief != "" {
			notes, err := p.Complete(ctx, researchSystemPrompt, researchPrompt(now, occupation, topic, trendBrief))
			if err != nil {
				return err
			}
			researchNotes = notes
		}

		draft, err := p.Complete(ctx, writerSystemPrompt, draftPrompt(now, occupation, topic, additionalContext, researchNotes))
		if err != nil {
			return err
		}

		edited, err := p.Complete(ctx, editorSystemPrompt, editPrompt(draft))
		if err != nil {
			return err
		}

		final = stripQuotes(edited)
		if final == "" {
			return fmt.Errorf("%s produced an empty post", p.Name())
		}
		slog.Info("post generated", "provider", p.Name())
		return nil
	})
	if err != nil {
		return "", err
	}
	return final, nil
}

func topicsPrompt(now time.Time, occupation, trendBrief string, limit int) string {
	if trendBrief == "" {
		trendBrief = "No live trend data was available."
	}
	return fmt.Sprintf(`Generate %d LinkedIn post topic ideas for this occupation:
Occupation: %s

%s

Live trend research (may be empty):
%s

Requirements:
- Output EXACTLY %d items.
- Each item should be a short title (5-12 words), not a full post.
- Make them specific and actionable (not generic).
- Respond ONLY as a JSON array of strings (no markdown, no extra text).`,
		limit, occupation, dateContext(now), trendBrief, limit)
}

func parseTopicList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	// Models occasionally wrap the array in a code fence.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var parsed []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("topic suggestions were not a JSON array: %w", err)
	}

	var topics []string
	for _, t := range parsed {
		if cleaned := stripQuotes(t); cleaned != "" {
			topics = append(topics, cleaned)
		}
	}
	if len(topics) < 3 {
		return nil, fmt.Errorf("too few topic suggestions returned")
	}
	return topics, nil
}

// SuggestTopics returns limit topic titles for the occupation, clamped to
// 3..20.
func (s *GenerateService) SuggestTopics(ctx context.Context, chain *provider.Chain, occupation string, limit int) ([]string, error) {
	if limit < 3 {
		limit = 8
	}
	if limit > 20 {
		limit = 20
	}

	trendBrief := ""
	if s.trends != nil {
		trendBrief = FormatTrendBrief(s.trends.Fetch(ctx, occupation))
	}

	now := time.Now()
	var topics []string
	err := chain.Run(ctx, func(ctx context.Context, p provider.Provider) error {
		raw, err := p.Complete(ctx, topicsSystemPrompt, topicsPrompt(now, occupation, trendBrief, limit))
		if err != nil {
			return err
		}
		parsed, err := parseTopicList(raw)
		if err != nil {
			return err
		}
		if len(parsed) > limit {
			parsed = parsed[:limit]
		}
		topics = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topics, nil
}

// BuildImagePrompt derives a short visual prompt from post text.
func BuildImagePrompt(topic, content string) string {
	base := topic
	if base == "" {
		if idx := strings.IndexByte(content, '\n'); idx > 0 {
			base = content[:idx]
		} else {
			base = content
		}
	}
	if len(base) > 200 {
		base = base[:200]
	}
	return fmt.Sprintf("Professional, minimalist illustration for a LinkedIn post about: %s. Clean composition, modern flat style, no text.", base)
}
