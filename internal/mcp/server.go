// Package mcp provides a Model Context Protocol server for notisum.
//
// It exposes stored summaries and events as MCP tools so an assistant
// can inspect what the pipeline has produced. Stdio transport only.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/usagijin/notisum/internal/lifecycle"
	"github.com/usagijin/notisum/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store     store.Store
	Retention time.Duration
	Version   string
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines;
// SQLite supports only one writer at a time, so a global mutex keeps
// purges ordered against reads.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all notisum tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"notisum",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerSummariesTool(s, cfg.Store)
	registerEventsTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)
	registerPurgeTool(s, cfg.Store, cfg.Retention)

	registerStatsResource(s, cfg.Store)
	registerRecentResource(s, cfg.Store)

	return s
}

// --- Tools ---

func registerSummariesTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("notisum_summaries",
		mcp.WithDescription("List recent notification summaries, newest first. Optionally scope to one source or to high-importance summaries only."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("source_id",
			mcp.Description("Only summaries for this source identifier. Empty = all sources."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 20, max: 100)"),
		),
		mcp.WithNumber("min_importance",
			mcp.Description("Only summaries at or above this importance (1-5). 0 = no filter."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := 20
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			n := int(limitVal)
			if n > 100 {
				n = 100
			}
			if n > 0 {
				limit = n
			}
		}

		var (
			summaries []*store.Summary
			err       error
		)
		if sourceID, serr := req.RequireString("source_id"); serr == nil && sourceID != "" {
			summaries, err = st.SummariesBySource(ctx, sourceID, limit)
		} else if minVal, merr := req.RequireFloat("min_importance"); merr == nil && int(minVal) > 0 {
			summaries, err = st.HighImportanceSummaries(ctx, int(minVal), limit)
		} else {
			summaries, err = st.RecentSummaries(ctx, limit)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing summaries: %v", err)), nil
		}

		data, _ := json.MarshalIndent(summariesPayload(summaries), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerEventsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("notisum_events",
		mcp.WithDescription("List recent stored notification events, newest first. Optionally scope to one source."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("source_id",
			mcp.Description("Only events for this source identifier. Empty = all sources."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := 20
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			n := int(limitVal)
			if n > 100 {
				n = 100
			}
			if n > 0 {
				limit = n
			}
		}

		var (
			events []*store.Event
			err    error
		)
		if sourceID, serr := req.RequireString("source_id"); serr == nil && sourceID != "" {
			events, err = st.EventsBySource(ctx, sourceID, time.Time{}, limit)
		} else {
			events, err = st.RecentEvents(ctx, limit)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing events: %v", err)), nil
		}

		data, _ := json.MarshalIndent(eventsPayload(events), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("notisum_stats",
		mcp.WithDescription("Show pipeline statistics: stored event and summary counts, unprocessed backlog, and database size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reading stats: %v", err)), nil
		}
		data, _ := json.MarshalIndent(statsPayload(stats), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerPurgeTool(s *server.MCPServer, st store.Store, retention time.Duration) {
	tool := mcp.NewTool("notisum_purge",
		mcp.WithDescription("Purge events and summaries older than the retention window. Pass dry_run to preview the cutoff without deleting."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithNumber("days",
			mcp.Description("Retention window in days (default: configured retention)"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Report the cutoff without deleting anything (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		window := retention
		if daysVal, err := req.RequireFloat("days"); err == nil && int(daysVal) > 0 {
			window = time.Duration(int(daysVal)) * 24 * time.Hour
		}

		dryRun := false
		if v, err := req.RequireBool("dry_run"); err == nil {
			dryRun = v
		}

		runner, err := lifecycle.NewRunner(st, window)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("purge setup: %v", err)), nil
		}
		report, err := runner.Run(ctx, dryRun)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("purge: %v", err)), nil
		}

		data, _ := json.MarshalIndent(report, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- payload shapes ---

type summaryItem struct {
	ID          string `json:"id"`
	SourceID    string `json:"source_id"`
	SourceLabel string `json:"source_label"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Importance  int    `json:"importance"`
	CreatedAt   string `json:"created_at"`
}

func summariesPayload(summaries []*store.Summary) map[string]interface{} {
	items := make([]summaryItem, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, summaryItem{
			ID:          s.ID,
			SourceID:    s.SourceID,
			SourceLabel: s.SourceLabel,
			Title:       s.Title,
			Body:        s.Body,
			Importance:  s.Importance,
			CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		})
	}
	return map[string]interface{}{"summaries": items, "count": len(items)}
}

type eventItem struct {
	ID          string `json:"id"`
	SourceID    string `json:"source_id"`
	SourceLabel string `json:"source_label"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	ArrivedAt   string `json:"arrived_at"`
	Processed   bool   `json:"processed"`
}

func eventsPayload(events []*store.Event) map[string]interface{} {
	items := make([]eventItem, 0, len(events))
	for _, e := range events {
		items = append(items, eventItem{
			ID:          e.ID,
			SourceID:    e.SourceID,
			SourceLabel: e.SourceLabel,
			Title:       e.Title,
			Body:        e.Body,
			ArrivedAt:   e.ArrivedAt.Format(time.RFC3339),
			Processed:   e.Processed,
		})
	}
	return map[string]interface{}{"events": items, "count": len(items)}
}

func statsPayload(stats *store.Stats) map[string]interface{} {
	return map[string]interface{}{
		"event_count":       stats.EventCount,
		"summary_count":     stats.SummaryCount,
		"unprocessed_count": stats.UnprocessedCount,
		"db_size_bytes":     stats.DBSizeBytes,
	}
}
