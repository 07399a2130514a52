package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/usagijin/notisum/internal/config"
	"github.com/usagijin/notisum/internal/gateway"
	"github.com/usagijin/notisum/internal/ingest"
	"github.com/usagijin/notisum/internal/lifecycle"
	"github.com/usagijin/notisum/internal/llm"
	"github.com/usagijin/notisum/internal/mcp"
	"github.com/usagijin/notisum/internal/metrics"
	"github.com/usagijin/notisum/internal/notifier"
	"github.com/usagijin/notisum/internal/store"
	"github.com/usagijin/notisum/internal/trigger"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "run":
		if err := runDaemon(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "stats":
		if err := runStats(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "summaries":
		if err := runSummaries(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "events":
		if err := runEvents(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "purge":
		if err := runPurge(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("notisum %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// runDaemon starts the full pipeline: events arrive as JSON lines on
// stdin, one object per line, and summaries go to the log.
func runDaemon(args []string) error {
	useMock := false
	metricsAddr := ""
	rest := []string{}
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--mock":
			useMock = true
		case args[i] == "--metrics" && i+1 < len(args):
			i++
			metricsAddr = args[i]
		default:
			rest = append(rest, args[i])
		}
	}

	cfg, err := resolveConfig(rest)
	if err != nil {
		return err
	}

	st, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	providerName := cfg.Provider.Value
	if useMock || (providerName == "" && cfg.Endpoint.Value == "") {
		// No inference configured; canned summaries keep the pipeline
		// usable out of the box.
		providerName = "mock"
	}
	provider, err := llm.NewProvider(llm.Config{
		Provider:     providerName,
		Endpoint:     cfg.Endpoint.Value,
		TokenURL:     cfg.TokenURL.Value,
		ClientID:     cfg.ClientID.Value,
		ClientSecret: cfg.ClientSecret.Value,
	})
	if err != nil {
		return fmt.Errorf("configuring inference provider: %w", err)
	}
	dbPath := cfg.DBPath.Value
	if dbPath == "" {
		dbPath = store.DefaultDBPath
	}
	log.Printf("notisum %s starting (provider=%s, db=%s)", version, provider.Name(), dbPath)

	gw := gateway.New(st, provider, notifier.LogNotifier{})
	triggerCfg := trigger.DefaultConfig()
	ctrl := trigger.New(st, gw, triggerCfg)
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := trigger.NewSweeper(st, gw, triggerCfg)
	go sweeper.Run(ctx)

	retention := time.Duration(cfg.EffectiveRetentionDays()) * 24 * time.Hour
	runner, err := lifecycle.NewRunner(st, retention)
	if err != nil {
		return err
	}
	go runner.RunPeriodic(ctx, time.Hour)

	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr.Value
	}
	if addr := metricsAddr; addr != "" {
		srv := metrics.NewServer(addr)
		go func() {
			if err := srv.Serve(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server: %v", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	ing := ingest.New(st, ctrl, cfg.EffectiveDedupWindow())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Println("shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				// Stdin closed; keep serving timers and sweeps.
				<-ctx.Done()
				log.Println("shutting down")
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var raw ingest.RawEvent
			if err := json.Unmarshal([]byte(line), &raw); err != nil {
				log.Printf("skipping malformed event line: %v", err)
				continue
			}
			ing.Dispatch(ctx, raw)
		}
	}
}

func runStats(args []string) error {
	cfg, err := resolveConfig(args)
	if err != nil {
		return err
	}
	st, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Events:      %d (%d unprocessed)\n", stats.EventCount, stats.UnprocessedCount)
	fmt.Printf("Summaries:   %d\n", stats.SummaryCount)
	fmt.Printf("DB size:     %d bytes\n", stats.DBSizeBytes)
	fmt.Printf("DB path:     %s (%s)\n", cfg.DBPath.Value, cfg.DBPath.Source)
	fmt.Printf("Retention:   %d days\n", cfg.EffectiveRetentionDays())
	return nil
}

func runSummaries(args []string) error {
	limit := 20
	minImportance := 0
	sourceID := ""
	rest := []string{}
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--limit" && i+1 < len(args):
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid --limit %q", args[i])
			}
			limit = n
		case args[i] == "--important":
			minImportance = 4
		case args[i] == "--source" && i+1 < len(args):
			i++
			sourceID = args[i]
		default:
			rest = append(rest, args[i])
		}
	}

	cfg, err := resolveConfig(rest)
	if err != nil {
		return err
	}
	st, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	var summaries []*store.Summary
	switch {
	case sourceID != "":
		summaries, err = st.SummariesBySource(ctx, sourceID, limit)
	case minImportance > 0:
		summaries, err = st.HighImportanceSummaries(ctx, minImportance, limit)
	default:
		summaries, err = st.RecentSummaries(ctx, limit)
	}
	if err != nil {
		return err
	}

	if len(summaries) == 0 {
		fmt.Println("No summaries.")
		return nil
	}
	for _, s := range summaries {
		fmt.Printf("[%s] (%d) %s — %s\n    %s\n",
			s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Importance, s.SourceLabel, s.Title, s.Body)
	}
	return nil
}

func runEvents(args []string) error {
	limit := 20
	sourceID := ""
	rest := []string{}
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--limit" && i+1 < len(args):
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid --limit %q", args[i])
			}
			limit = n
		case args[i] == "--source" && i+1 < len(args):
			i++
			sourceID = args[i]
		default:
			rest = append(rest, args[i])
		}
	}

	cfg, err := resolveConfig(rest)
	if err != nil {
		return err
	}
	st, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	var events []*store.Event
	if sourceID != "" {
		events, err = st.EventsBySource(ctx, sourceID, time.Time{}, limit)
	} else {
		events, err = st.RecentEvents(ctx, limit)
	}
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println("No events.")
		return nil
	}
	for _, e := range events {
		mark := " "
		if e.Processed {
			mark = "✓"
		}
		fmt.Printf("%s [%s] %s — %s: %s\n",
			mark, e.ArrivedAt.Local().Format("2006-01-02 15:04:05"), e.SourceLabel, e.Title, e.Body)
	}
	return nil
}

func runPurge(args []string) error {
	days := 0
	dryRun := false
	rest := []string{}
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--days" && i+1 < len(args):
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid --days %q", args[i])
			}
			days = n
		case args[i] == "--dry-run" || args[i] == "-n":
			dryRun = true
		default:
			rest = append(rest, args[i])
		}
	}

	cfg, err := resolveConfig(rest)
	if err != nil {
		return err
	}
	st, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if days == 0 {
		days = cfg.EffectiveRetentionDays()
	}
	runner, err := lifecycle.NewRunner(st, time.Duration(days)*24*time.Hour)
	if err != nil {
		return err
	}
	report, err := runner.Run(context.Background(), dryRun)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Printf("Dry run: would purge records before %s\n", report.Cutoff.Format(time.RFC3339))
		return nil
	}
	fmt.Printf("Purged %d events and %d summaries (before %s)\n",
		report.EventsPurged, report.SummariesPurged, report.Cutoff.Format(time.RFC3339))
	return nil
}

func runMCP(args []string) error {
	cfg, err := resolveConfig(args)
	if err != nil {
		return err
	}
	st, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	s := mcp.NewServer(mcp.ServerConfig{
		Store:     st,
		Retention: time.Duration(cfg.EffectiveRetentionDays()) * 24 * time.Hour,
		Version:   version,
	})
	return mcpserver.ServeStdio(s)
}

// resolveConfig handles the flags shared by every command.
func resolveConfig(args []string) (config.ResolvedConfig, error) {
	opts := config.ResolveOptions{}
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config" && i+1 < len(args):
			i++
			opts.ConfigPath = args[i]
		case args[i] == "--db" && i+1 < len(args):
			i++
			opts.CLIDBPath = args[i]
		case args[i] == "--provider" && i+1 < len(args):
			i++
			opts.CLIProvider = args[i]
		case args[i] == "--endpoint" && i+1 < len(args):
			i++
			opts.CLIEndpoint = args[i]
		case strings.HasPrefix(args[i], "-"):
			return config.ResolvedConfig{}, fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	return config.ResolveConfig(opts)
}

func printUsage() {
	fmt.Printf(`notisum %s — Notification triage and summarization pipeline

Usage:
  notisum <command> [arguments]

Commands:
  run                 Run the pipeline daemon (events as JSON lines on stdin)
  stats               Show pipeline statistics
  summaries           List recent summaries
  events              List recent stored events
  purge               Delete events and summaries past retention
  mcp                 Serve the MCP interface over stdio
  version             Print version

Listing Flags:
  --limit <n>         Maximum results (default 20)
  --source <id>       Scope to one source identifier
  --important         Summaries with importance >= 4 only

Run Flags:
  --mock              Use the canned inference provider
  --metrics <addr>    Serve /metrics and /healthz on this address

Purge Flags:
  --days <n>          Retention window in days (default 7)
  -n, --dry-run       Show the cutoff without deleting

Flags:
  --config <path>     Config file (default ~/.notisum/config.yaml)
  --db <path>         Database path
  --provider <name>   Inference provider: http or mock
  --endpoint <url>    Inference endpoint URL
  -h, --help          Show this help message
  -v, --version       Print version
`, version)
}
