// Package metrics registers the pipeline's Prometheus collectors and
// serves the /metrics endpoint for the daemon.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsAccepted counts events that passed every ingest gate.
	EventsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "notisum",
		Name:      "events_accepted_total",
		Help:      "Events that were normalized, sanitized, deduped and stored",
	})

	// EventsDropped counts ingest drops by reason.
	EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notisum",
		Name:      "events_dropped_total",
		Help:      "Raw notifications dropped before storage, by reason",
	}, []string{"reason"})

	// SummariesGenerated counts summaries by trigger scenario.
	SummariesGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notisum",
		Name:      "summaries_generated_total",
		Help:      "Summaries produced, by trigger scenario",
	}, []string{"scenario"})

	// InferenceFailures counts failed inference attempts (before fallback).
	InferenceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "notisum",
		Name:      "inference_failures_total",
		Help:      "Inference calls that errored or returned malformed output",
	})

	// FallbackSummaries counts summaries produced by the rule classifier.
	FallbackSummaries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "notisum",
		Name:      "fallback_summaries_total",
		Help:      "Summaries produced by the rule-based fallback classifier",
	})

	// TriggerFires counts fired (non-cancelled) delayed tasks by scenario.
	TriggerFires = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notisum",
		Name:      "trigger_fires_total",
		Help:      "Delayed trigger tasks that fired, by scenario",
	}, []string{"scenario"})
)

func init() {
	prometheus.MustRegister(
		EventsAccepted,
		EventsDropped,
		SummariesGenerated,
		InferenceFailures,
		FallbackSummaries,
		TriggerFires,
	)
}

// Server wraps the HTTP endpoint exposing /metrics and /healthz.
type Server struct {
	server *http.Server
}

// NewServer builds the metrics HTTP server on addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *Server) Serve() error                       { return s.server.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }
