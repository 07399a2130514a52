package llm

import (
	"context"
	"fmt"
	"strings"
)

// mockProvider returns canned summaries without any network call.
// Selected with provider "mock" for local development and demos.
type mockProvider struct{}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Summarize(ctx context.Context, req Request) (*Result, error) {
	if len(req.Events) == 0 {
		return nil, fmt.Errorf("empty event batch")
	}

	first := req.Events[0]
	title := first.Title
	if title == "" {
		title = first.SourceID
	}

	body := first.Body
	if len(req.Events) > 1 {
		body = fmt.Sprintf("%d notifications", len(req.Events))
	}
	if runes := []rune(body); len(runes) > 60 {
		body = string(runes[:60]) + "…"
	}
	if strings.TrimSpace(body) == "" {
		body = title
	}

	return &Result{
		Title:      title,
		Body:       body,
		Importance: 2,
	}, nil
}
