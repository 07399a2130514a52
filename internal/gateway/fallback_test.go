package gateway

import (
	"strings"
	"testing"

	"github.com/usagijin/notisum/internal/store"
)

func TestFallbackEmpty(t *testing.T) {
	result := Fallback(nil)
	if result.Title != "Notifications" || result.Importance != 2 {
		t.Errorf("unexpected empty-batch result: %+v", result)
	}
}

func TestFallbackSingleBySource(t *testing.T) {
	tests := []struct {
		sourceID   string
		importance int
	}{
		{"com.tencent.mm", 3},
		{"com.whatsapp", 3},
		{"com.google.android.gm", 4},
		{"com.microsoft.office.outlook", 4},
		{"com.android.mms", 4},
		{"com.example.unknown", 2},
	}
	for _, tt := range tests {
		result := Fallback([]*store.Event{{
			SourceID:    tt.sourceID,
			SourceLabel: "App",
			Title:       "Sender",
			Body:        "hello there",
		}})
		if result.Importance != tt.importance {
			t.Errorf("Fallback(%s) importance = %d, want %d", tt.sourceID, result.Importance, tt.importance)
		}
	}
}

func TestFallbackRulePrecedence(t *testing.T) {
	// "com.google.android.gm" also contains "mail"-free substrings; a
	// source matching both a specific and a generic rule must use the
	// first listed. "com.tencent.mm" contains "mm" only, but a chat app
	// with "mail" in its id must still classify as the earlier rule.
	result := Fallback([]*store.Event{{
		SourceID: "com.tencent.mm.mail",
		Title:    "x",
		Body:     "y z w",
	}})
	if result.Importance != 3 {
		t.Errorf("importance = %d, want 3 (first matching rule)", result.Importance)
	}
}

func TestFallbackUrgentBoost(t *testing.T) {
	result := Fallback([]*store.Event{{
		SourceID: "com.tencent.mm",
		Title:    "Group",
		Body:     "@所有人 meeting moved to now",
	}})
	if result.Importance != 5 {
		t.Errorf("importance = %d, want 5 for urgent marker", result.Importance)
	}

	// Mail sources do not boost
	result = Fallback([]*store.Event{{
		SourceID: "com.google.android.gm",
		Title:    "Inbox",
		Body:     "URGENT: please review",
	}})
	if result.Importance != 4 {
		t.Errorf("importance = %d, want 4 (no boost for mail)", result.Importance)
	}
}

func TestFallbackSingleBodyTruncated(t *testing.T) {
	result := Fallback([]*store.Event{{
		SourceID: "com.example.app",
		Title:    "t",
		Body:     strings.Repeat("x", 300),
	}})
	if got := len([]rune(result.Body)); got > fallbackBodyLimit+1 {
		t.Errorf("body length %d exceeds limit", got)
	}
	if !strings.HasSuffix(result.Body, "…") {
		t.Errorf("expected ellipsis suffix, got %q", result.Body[len(result.Body)-3:])
	}
}

func TestFallbackSingleSourceBatch(t *testing.T) {
	events := []*store.Event{
		{SourceID: "com.example.app", SourceLabel: "Example", Title: "a", Body: "1"},
		{SourceID: "com.example.app", SourceLabel: "Example", Title: "b", Body: "2"},
		{SourceID: "com.example.app", SourceLabel: "Example", Title: "c", Body: "3"},
	}
	result := Fallback(events)
	if result.Title != "Example" {
		t.Errorf("title = %q, want source label", result.Title)
	}
	if !strings.Contains(result.Body, "3 notifications") {
		t.Errorf("body = %q, want count", result.Body)
	}
	if result.Importance != 3 {
		t.Errorf("importance = %d, want count-based 3", result.Importance)
	}
}

func TestFallbackSingleSourceBatchImportanceClamped(t *testing.T) {
	var events []*store.Event
	for i := 0; i < 8; i++ {
		events = append(events, &store.Event{
			SourceID: "com.example.app", SourceLabel: "Example", Title: "t", Body: "b",
		})
	}
	result := Fallback(events)
	if result.Importance != 5 {
		t.Errorf("importance = %d, want clamped 5", result.Importance)
	}
}

func TestFallbackMultiSourceBatch(t *testing.T) {
	events := []*store.Event{
		{SourceID: "app.a", SourceLabel: "Alpha", Title: "t", Body: "b"},
		{SourceID: "app.b", SourceLabel: "Beta", Title: "t", Body: "b"},
		{SourceID: "app.b", SourceLabel: "Beta", Title: "t", Body: "b"},
	}
	result := Fallback(events)
	if result.Title != "Multiple apps" {
		t.Errorf("title = %q", result.Title)
	}
	// Beta has more events, so it lists first.
	if !strings.HasPrefix(result.Body, "Beta ×2") {
		t.Errorf("body = %q, want Beta first", result.Body)
	}
	if !strings.Contains(result.Body, "Alpha ×1") {
		t.Errorf("body = %q, missing Alpha", result.Body)
	}
	if result.Importance != 3 {
		t.Errorf("importance = %d, want 3", result.Importance)
	}
}
