// Package gateway turns a finalized batch of events into a stored
// summary. It truncates the batch to a scenario character budget, asks
// the inference collaborator for a structured summary, and falls back
// to a deterministic rule classifier when inference is unavailable.
package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/usagijin/notisum/internal/llm"
	"github.com/usagijin/notisum/internal/metrics"
	"github.com/usagijin/notisum/internal/notifier"
	"github.com/usagijin/notisum/internal/store"
)

// Scenario is the trigger classification that determines batching and
// character budgets.
type Scenario string

const (
	ScenarioSingleLong    Scenario = "single-long"
	ScenarioMultiple      Scenario = "multiple"
	ScenarioHighFrequency Scenario = "high-frequency"
	ScenarioLowFrequency  Scenario = "low-frequency-batch"
)

const (
	// SingleBudget is the character budget for single-long batches.
	SingleBudget = 1000

	// BatchBudget is the character budget for all multi-event scenarios.
	BatchBudget = 2000

	// minTruncateRemainder is the least budget headroom worth keeping a
	// truncated event for. Below it the event is dropped instead.
	minTruncateRemainder = 50

	// DefaultRetryDelay is the wait before the single inference retry.
	DefaultRetryDelay = 5 * time.Second
)

// sentenceTerminators are where a truncated body prefers to end.
const sentenceTerminators = ".!?。！？"

// Gateway produces summaries for event batches.
type Gateway struct {
	store      store.Store
	provider   llm.Provider
	notifier   notifier.Notifier
	retryDelay time.Duration
	now        func() time.Time
}

// New creates a Gateway. notifier may be nil (summaries are stored but
// not displayed).
func New(st store.Store, provider llm.Provider, notif notifier.Notifier) *Gateway {
	return &Gateway{
		store:      st,
		provider:   provider,
		notifier:   notif,
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
	}
}

// Summarize processes one batch, newest event first. An empty batch is
// a no-op returning nil, nil. The returned summary has already been
// persisted and its contributing events marked processed.
func (g *Gateway) Summarize(ctx context.Context, events []*store.Event, scenario Scenario) (*store.Summary, error) {
	if len(events) == 0 {
		return nil, nil
	}

	batch := Truncate(events, budgetFor(scenario))
	if len(batch) == 0 {
		return nil, nil
	}

	result := g.infer(ctx, batch)
	if result == nil {
		result = Fallback(batch)
		metrics.FallbackSummaries.Inc()
	}

	lead := batch[0]
	summary := &store.Summary{
		ID:          fmt.Sprintf("%s_%s", lead.SourceID, uuid.NewString()),
		SourceID:    lead.SourceID,
		SourceLabel: lead.SourceLabel,
		Title:       result.Title,
		Body:        clampRunes(result.Body, budgetFor(scenario)),
		Importance:  clampImportance(result.Importance),
		CreatedAt:   g.now().UTC(),
	}

	if err := g.store.InsertSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("persisting summary: %w", err)
	}

	ids := make([]string, len(batch))
	for i, e := range batch {
		ids[i] = e.ID
	}
	if err := g.store.MarkProcessed(ctx, ids); err != nil {
		// The summary exists; the sweep may reprocess these events once.
		log.Printf("gateway: marking %d events processed: %v", len(ids), err)
	}

	metrics.SummariesGenerated.WithLabelValues(string(scenario)).Inc()

	if g.notifier != nil {
		g.notifier.Display(summary)
	}
	return summary, nil
}

// infer attempts the inference call with one delayed retry. Returns nil
// when both attempts fail; the caller falls back to the rule classifier.
func (g *Gateway) infer(ctx context.Context, batch []*store.Event) *llm.Result {
	if g.provider == nil {
		return nil
	}

	req := g.buildRequest(batch)

	result, err := g.provider.Summarize(ctx, req)
	if err == nil && result.Valid() {
		return result
	}
	metrics.InferenceFailures.Inc()
	logInferenceFailure("attempt", err)

	select {
	case <-time.After(g.retryDelay):
	case <-ctx.Done():
		return nil
	}

	result, err = g.provider.Summarize(ctx, req)
	if err == nil && result.Valid() {
		return result
	}
	metrics.InferenceFailures.Inc()
	logInferenceFailure("retry", err)
	return nil
}

// logInferenceFailure separates a transport error from a response that
// parsed but failed validation, where err is nil.
func logInferenceFailure(stage string, err error) {
	if err != nil {
		log.Printf("gateway: inference %s failed: %v", stage, err)
		return
	}
	log.Printf("gateway: inference %s returned an invalid result", stage)
}

// buildRequest assembles the canonical wire payload from the truncated
// batch.
func (g *Gateway) buildRequest(batch []*store.Event) llm.Request {
	inputs := make([]llm.EventInput, len(batch))
	for i, e := range batch {
		inputs[i] = llm.EventInput{
			Title:    e.Title,
			Body:     e.Body,
			Time:     e.ArrivedAt.Format(llm.TimeLayout),
			SourceID: e.SourceID,
		}
	}
	return llm.Request{
		CurrentTime: g.now().Format(llm.TimeLayout),
		Events:      inputs,
	}
}

// Truncate accumulates events while the running title+body character
// count stays under budget. The first event that would overflow is
// included in truncated form if at least minTruncateRemainder
// characters remain; later events are dropped.
func Truncate(events []*store.Event, budget int) []*store.Event {
	var out []*store.Event
	total := 0

	for _, e := range events {
		titleLen := len([]rune(e.Title))
		bodyLen := len([]rune(e.Body))

		if total+titleLen+bodyLen <= budget {
			out = append(out, e)
			total += titleLen + bodyLen
			continue
		}

		remaining := budget - total
		if remaining > minTruncateRemainder && titleLen < remaining {
			clone := *e
			clone.Body = truncateToLastSentence(e.Body, remaining-titleLen)
			out = append(out, &clone)
		}
		break
	}
	return out
}

// truncateToLastSentence cuts text to maxLen runes, preferring the last
// sentence-terminator inside the window and falling back to a hard cut.
func truncateToLastSentence(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	window := runes[:maxLen]
	last := -1
	for i, r := range window {
		if strings.ContainsRune(sentenceTerminators, r) {
			last = i
		}
	}
	if last > 0 {
		return string(window[:last+1])
	}
	return string(window)
}

func budgetFor(scenario Scenario) int {
	if scenario == ScenarioSingleLong {
		return SingleBudget
	}
	return BatchBudget
}

func clampImportance(n int) int {
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

func clampRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
