package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const serperBaseURL = "https://google.serper.dev"

type TrendItem struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
	Link    string `json:"link"`
	Date    string `json:"date"`
}

// TrendService pulls recent search and discussion results for an occupation
// so generated drafts can reference what is actually being talked about.
// Without an API key it degrades to an empty brief.
type TrendService struct {
	apiKey string
	client *http.Client
}

func NewTrendService(apiKey string) *TrendService {
	return &TrendService{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type serperResult struct {
	Organic []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
		Date    string `json:"date"`
	} `json:"organic"`
	News []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
		Date    string `json:"date"`
		Source  string `json:"source"`
	} `json:"news"`
}

func (s *TrendService) search(ctx context.Context, endpoint, query string) (*serperResult, error) {
	body, err := json.Marshal(map[string]any{"q": query, "num": 10})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serperBaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper returned status %d", resp.StatusCode)
	}

	var parsed serperResult
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// Fetch gathers news plus reddit discussion for the occupation, deduplicated
// by link. Failures are logged and swallowed; trends are best effort.
func (s *TrendService) Fetch(ctx context.Context, occupation string) []TrendItem {
	if s.apiKey == "" || occupation == "" {
		return nil
	}

	queries := []struct {
		endpoint string
		query    string
	}{
		{"/news", fmt.Sprintf("%s industry trends", occupation)},
		{"/search", fmt.Sprintf("site:reddit.com %s discussion", occupation)},
	}

	seen := map[string]bool{}
	var items []TrendItem
	for _, q := range queries {
		result, err := s.search(ctx, q.endpoint, q.query)
		if err != nil {
			slog.Info("trend fetch failed", "query", q.query, "error", err.Error())
			continue
		}
		for _, n := range result.News {
			if n.Link == "" || seen[n.Link] {
				continue
			}
			seen[n.Link] = true
			items = append(items, TrendItem{Title: n.Title, Snippet: n.Snippet, Source: n.Source, Link: n.Link, Date: n.Date})
		}
		for _, o := range result.Organic {
			if o.Link == "" || seen[o.Link] {
				continue
			}
			seen[o.Link] = true
			items = append(items, TrendItem{Title: o.Title, Snippet: o.Snippet, Source: "reddit", Link: o.Link, Date: o.Date})
		}
	}

	if len(items) > 12 {
		items = items[:12]
	}
	return items
}

// FormatTrendBrief renders the items as a bullet list for prompt context.
func FormatTrendBrief(items []TrendItem) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Recent signals:\n")
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item.Title)
		if item.Snippet != "" {
			sb.WriteString(": ")
			sb.WriteString(item.Snippet)
		}
		if item.Source != "" {
			sb.WriteString(" (")
			sb.WriteString(item.Source)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
