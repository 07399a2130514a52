package ingest

import (
	"testing"
	"time"
)

func rawEvent(sourceID, title, body string) RawEvent {
	return RawEvent{
		SourceID:    sourceID,
		SourceLabel: "Label",
		OriginID:    "42",
		Title:       title,
		Body:        body,
		ArrivedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNormalizeAccepts(t *testing.T) {
	e, reason := Normalize(rawEvent("com.example.chat", "Alice", "lunch?"))
	if e == nil {
		t.Fatalf("expected event, got drop reason %q", reason)
	}
	if e.SourceID != "com.example.chat" || e.Title != "Alice" || e.Body != "lunch?" {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.ID == "" {
		t.Error("expected a stable event ID")
	}
}

func TestNormalizeDropsOwnApp(t *testing.T) {
	_, reason := Normalize(rawEvent(OwnSourceID, "t", "b"))
	if reason != DropOwnApp {
		t.Errorf("reason = %q, want %q", reason, DropOwnApp)
	}
}

func TestNormalizeDropsBlank(t *testing.T) {
	_, reason := Normalize(rawEvent("com.example.app", "   ", "\t"))
	if reason != DropBlank {
		t.Errorf("reason = %q, want %q", reason, DropBlank)
	}
}

func TestNormalizeDropsDenylisted(t *testing.T) {
	_, reason := Normalize(rawEvent("com.android.systemui", "USB", "charging"))
	if reason != DropDenylisted {
		t.Errorf("reason = %q, want %q", reason, DropDenylisted)
	}
}

func TestNormalizeDropsMediaPlayback(t *testing.T) {
	tests := []struct {
		title, body string
	}{
		{"Now Playing", "Some Song"},
		{"Player", "正在播放: 歌曲"},
		{"Music", "next track available"},
	}
	for _, tt := range tests {
		_, reason := Normalize(rawEvent("com.example.music", tt.title, tt.body))
		if reason != DropMediaPlayback {
			t.Errorf("Normalize(%q, %q) reason = %q, want %q", tt.title, tt.body, reason, DropMediaPlayback)
		}
	}
}

func TestNormalizeDropsPersistent(t *testing.T) {
	raw := rawEvent("com.example.vpn", "VPN", "connected")
	raw.Persistent = true
	_, reason := Normalize(raw)
	if reason != DropPersistent {
		t.Errorf("reason = %q, want %q", reason, DropPersistent)
	}
}

func TestNormalizeRuleOrder(t *testing.T) {
	// Blank check runs before the denylist: a blank event from a
	// denylisted source reports blank.
	raw := rawEvent("com.android.systemui", "", "")
	_, reason := Normalize(raw)
	if reason != DropBlank {
		t.Errorf("reason = %q, want %q", reason, DropBlank)
	}
}

func TestNormalizeLabelFallback(t *testing.T) {
	raw := rawEvent("com.example.app", "t", "b")
	raw.SourceLabel = "  "
	e, _ := Normalize(raw)
	if e == nil || e.SourceLabel != "com.example.app" {
		t.Errorf("expected label fallback to source id, got %+v", e)
	}
}

func TestEventIDStable(t *testing.T) {
	raw := rawEvent("com.example.app", "t", "b")
	e1, _ := Normalize(raw)
	e2, _ := Normalize(raw)
	if e1.ID != e2.ID {
		t.Errorf("same raw event produced different IDs: %q vs %q", e1.ID, e2.ID)
	}

	raw2 := raw
	raw2.ArrivedAt = raw.ArrivedAt.Add(time.Millisecond)
	e3, _ := Normalize(raw2)
	if e3.ID == e1.ID {
		t.Error("different arrival times should produce different IDs")
	}
}
