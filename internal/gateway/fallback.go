package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/usagijin/notisum/internal/llm"
	"github.com/usagijin/notisum/internal/store"
)

// fallbackBodyLimit is the rough body length the rule classifier aims
// for on single-event summaries.
const fallbackBodyLimit = 100

// sourceRule classifies a source identifier by substring. Rules are an
// ordered list, first match wins — a source matching several substrings
// must always land on the same rule.
type sourceRule struct {
	substr      string
	importance  int
	urgentBoost bool // raise to 5 when the body carries an urgency marker
}

var sourceRules = []sourceRule{
	// messaging
	{"com.tencent.mm", 3, true},
	{"com.tencent.mobileqq", 3, true},
	{"whatsapp", 3, true},
	{"telegram", 3, true},
	{"chat", 3, true},
	// mail
	{"com.google.android.gm", 4, false},
	{"outlook", 4, false},
	{"mail", 4, false},
	// sms
	{"com.android.mms", 4, false},
	{"sms", 4, false},
	// generic messengers, after the specific entries
	{"messag", 3, true},
}

// urgentMarkers raise a messaging summary to the top importance level.
var urgentMarkers = []string{
	"@所有人",
	"紧急",
	"urgent",
	"asap",
	"@all",
}

// Fallback is the deterministic rule classifier used when inference is
// unavailable. It is total: any input batch produces a usable result.
func Fallback(events []*store.Event) *llm.Result {
	switch {
	case len(events) == 0:
		return &llm.Result{
			Title:      "Notifications",
			Body:       "No new notifications",
			Importance: 2,
		}
	case len(events) == 1:
		return fallbackSingle(events[0])
	default:
		return fallbackBatch(events)
	}
}

func fallbackSingle(e *store.Event) *llm.Result {
	importance := 2
	boost := false
	lowerSource := strings.ToLower(e.SourceID)
	for _, rule := range sourceRules {
		if strings.Contains(lowerSource, rule.substr) {
			importance = rule.importance
			boost = rule.urgentBoost
			break
		}
	}

	if boost && containsUrgentMarker(e.Body) {
		importance = 5
	}

	title := e.Title
	if title == "" {
		title = e.SourceLabel
	}

	body := e.Body
	if body == "" {
		body = e.Title
	}
	if runes := []rune(body); len(runes) > fallbackBodyLimit {
		body = string(runes[:fallbackBodyLimit]) + "…"
	}

	return &llm.Result{
		Title:      title,
		Body:       body,
		Importance: importance,
	}
}

func fallbackBatch(events []*store.Event) *llm.Result {
	bySource := make(map[string]int)
	labels := make(map[string]string)
	order := []string{}
	for _, e := range events {
		if _, seen := bySource[e.SourceID]; !seen {
			order = append(order, e.SourceID)
		}
		bySource[e.SourceID]++
		labels[e.SourceID] = e.SourceLabel
	}

	if len(bySource) == 1 {
		src := order[0]
		count := bySource[src]
		importance := count
		if importance > 5 {
			importance = 5
		}
		return &llm.Result{
			Title:      labels[src],
			Body:       fmt.Sprintf("%d notifications from %s", count, labels[src]),
			Importance: importance,
		}
	}

	// Stable listing: insertion order, ties don't matter but the output
	// must be deterministic for identical input.
	sort.SliceStable(order, func(i, j int) bool {
		return bySource[order[i]] > bySource[order[j]]
	})

	parts := make([]string, 0, len(order))
	for _, src := range order {
		parts = append(parts, fmt.Sprintf("%s ×%d", labels[src], bySource[src]))
	}

	return &llm.Result{
		Title:      "Multiple apps",
		Body:       strings.Join(parts, "; "),
		Importance: 3,
	}
}

func containsUrgentMarker(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range urgentMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
