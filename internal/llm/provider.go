// Package llm provides the inference collaborator boundary for notisum.
//
// The gateway builds a canonical request from a truncated event batch
// and the provider returns a structured summary, or an error that sends
// the gateway to its rule-based fallback. Uses net/http directly.
package llm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"context"
)

// TimeLayout is the wall-clock format used in request payloads.
const TimeLayout = "2006-01-02 15:04:05"

// Request is the canonical summarize payload. Field names are a wire
// contract with the inference service and must not change.
type Request struct {
	CurrentTime string       `json:"currentTime"`
	Events      []EventInput `json:"events"`
}

// EventInput is one event inside a summarize request.
type EventInput struct {
	Title    string `json:"title,omitempty"`
	Body     string `json:"body,omitempty"`
	Time     string `json:"time"`
	SourceID string `json:"sourceId"`
}

// Result is the structured summary the inference service returns.
type Result struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	Importance int    `json:"importance"`
}

// Valid reports whether a result is well-formed enough to use. A
// malformed result is treated the same as a transport error.
func (r *Result) Valid() bool {
	if r == nil {
		return false
	}
	if strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Body) == "" {
		return false
	}
	return r.Importance >= 1 && r.Importance <= 5
}

// Provider is the interface for summary inference.
type Provider interface {
	// Summarize sends the batch and returns the structured summary.
	Summarize(ctx context.Context, req Request) (*Result, error)
	// Name returns a human-readable provider name (e.g. "http/api.example.com").
	Name() string
}

// Config holds provider configuration.
type Config struct {
	Provider     string        // "http", "mock"
	Endpoint     string        // summarize endpoint URL
	TokenURL     string        // token endpoint URL (empty = no auth)
	ClientID     string        // client credentials for the token endpoint
	ClientSecret string        // empty = read from env
	Timeout      time.Duration // per-call timeout (0 = default)
}

// NewProvider creates an inference provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("http provider requires an endpoint URL")
		}
		secret := cfg.ClientSecret
		if secret == "" {
			secret = os.Getenv("NOTISUM_CLIENT_SECRET")
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		return &httpProvider{
			endpoint:     cfg.Endpoint,
			tokenURL:     cfg.TokenURL,
			clientID:     cfg.ClientID,
			clientSecret: secret,
			timeout:      timeout,
		}, nil

	case "mock":
		return &mockProvider{}, nil

	default:
		return nil, fmt.Errorf("unknown inference provider: %q (supported: http, mock)", cfg.Provider)
	}
}
