package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/usagijin/notisum/internal/store"
)

// setupTestStore creates an in-memory store with a few events and
// summaries.
func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewStore(store.Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	now := time.Now().UTC()

	events := []*store.Event{
		{ID: "e1", SourceID: "com.example.chat", SourceLabel: "Chat", Title: "Alice", Body: "lunch?", ArrivedAt: now.Add(-2 * time.Minute)},
		{ID: "e2", SourceID: "com.example.chat", SourceLabel: "Chat", Title: "Bob", Body: "on my way", ArrivedAt: now.Add(-time.Minute)},
		{ID: "e3", SourceID: "com.example.mail", SourceLabel: "Mail", Title: "Report", Body: "attached", ArrivedAt: now},
	}
	for _, e := range events {
		if err := s.InsertEvent(ctx, e); err != nil {
			t.Fatalf("inserting test event: %v", err)
		}
	}

	summaries := []*store.Summary{
		{ID: "s1", SourceID: "com.example.chat", SourceLabel: "Chat", Title: "Chat burst", Body: "2 messages", Importance: 3, CreatedAt: now.Add(-time.Minute)},
		{ID: "s2", SourceID: "com.example.mail", SourceLabel: "Mail", Title: "New report", Body: "report attached", Importance: 4, CreatedAt: now},
	}
	for _, sum := range summaries {
		if err := s.InsertSummary(ctx, sum); err != nil {
			t.Fatalf("inserting test summary: %v", err)
		}
	}
	return s
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// callTool invokes an MCP tool through the JSON-RPC surface and
// returns the text content of the result.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) string {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.Result.IsError {
		t.Fatalf("tool error: %s", resp.Result.Content[0].Text)
	}
	if len(resp.Result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	return resp.Result.Content[0].Text
}

func newTestServer(t *testing.T) *server.MCPServer {
	t.Helper()
	srv := NewServer(ServerConfig{Store: setupTestStore(t), Retention: 7 * 24 * time.Hour, Version: "test"})
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	return srv
}

func TestSummariesTool(t *testing.T) {
	srv := newTestServer(t)

	text := callTool(t, srv, "notisum_summaries", map[string]interface{}{})
	var payload struct {
		Count     int           `json:"count"`
		Summaries []summaryItem `json:"summaries"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Count != 2 {
		t.Errorf("count = %d, want 2", payload.Count)
	}
	// Newest first
	if payload.Summaries[0].ID != "s2" {
		t.Errorf("first summary = %s, want s2", payload.Summaries[0].ID)
	}
}

func TestSummariesToolMinImportance(t *testing.T) {
	srv := newTestServer(t)

	text := callTool(t, srv, "notisum_summaries", map[string]interface{}{"min_importance": 4})
	var payload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Count != 1 {
		t.Errorf("count = %d, want 1", payload.Count)
	}
}

func TestEventsToolBySource(t *testing.T) {
	srv := newTestServer(t)

	text := callTool(t, srv, "notisum_events", map[string]interface{}{"source_id": "com.example.chat"})
	var payload struct {
		Count  int         `json:"count"`
		Events []eventItem `json:"events"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Count != 2 {
		t.Errorf("count = %d, want 2", payload.Count)
	}
	for _, e := range payload.Events {
		if e.SourceID != "com.example.chat" {
			t.Errorf("unexpected source %s", e.SourceID)
		}
	}
}

func TestStatsTool(t *testing.T) {
	srv := newTestServer(t)

	text := callTool(t, srv, "notisum_stats", map[string]interface{}{})
	if !strings.Contains(text, "\"event_count\": 3") {
		t.Errorf("stats payload missing event count: %s", text)
	}
}

func TestPurgeToolDryRun(t *testing.T) {
	st := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: st, Retention: 7 * 24 * time.Hour})

	text := callTool(t, srv, "notisum_purge", map[string]interface{}{"dry_run": true})
	if !strings.Contains(text, "\"dry_run\": true") {
		t.Errorf("expected dry-run report, got %s", text)
	}

	// Nothing deleted
	n, err := st.CountEvents(context.Background())
	if err != nil {
		t.Fatalf("CountEvents: %v", err)
	}
	if n != 3 {
		t.Errorf("events = %d after dry run, want 3", n)
	}
}

func TestStatsResource(t *testing.T) {
	srv := newTestServer(t)

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "resources/read",
		"params":  map[string]interface{}{"uri": "notisum://stats"},
	}))

	respBytes, _ := json.Marshal(result)
	var resp struct {
		Result struct {
			Contents []mcplib.TextResourceContents `json:"contents"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Result.Contents) == 0 {
		t.Fatalf("empty resource response: %s", respBytes)
	}
	if !strings.Contains(resp.Result.Contents[0].Text, "event_count") {
		t.Errorf("unexpected resource payload: %s", resp.Result.Contents[0].Text)
	}
}
