// Package lifecycle owns retention: old events and summaries are
// purged on a schedule so the database stays bounded.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/usagijin/notisum/internal/store"
)

// Report describes one retention pass.
type Report struct {
	DryRun          bool      `json:"dry_run"`
	Cutoff          time.Time `json:"cutoff"`
	EventsPurged    int64     `json:"events_purged"`
	SummariesPurged int64     `json:"summaries_purged"`
}

// Runner applies the retention policy.
type Runner struct {
	st        store.Store
	retention time.Duration
	now       func() time.Time
}

// NewRunner creates a Runner. retention <= 0 uses the 7 day default.
func NewRunner(st store.Store, retention time.Duration) (*Runner, error) {
	if st == nil {
		return nil, fmt.Errorf("lifecycle runner requires a store")
	}
	if retention <= 0 {
		retention = store.DefaultRetention
	}
	return &Runner{st: st, retention: retention, now: time.Now}, nil
}

// Run performs one retention pass. With dryRun the cutoff is computed
// and reported but nothing is deleted.
func (r *Runner) Run(ctx context.Context, dryRun bool) (*Report, error) {
	cutoff := r.now().UTC().Add(-r.retention)
	report := &Report{DryRun: dryRun, Cutoff: cutoff}
	if dryRun {
		return report, nil
	}

	events, summaries, err := r.st.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purging records before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	report.EventsPurged = events
	report.SummariesPurged = summaries
	return report, nil
}

// RunPeriodic blocks, purging once per interval until ctx is cancelled.
// One pass runs immediately at startup so a long-stopped daemon catches
// up on its backlog.
func (r *Runner) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	if report, err := r.Run(ctx, false); err != nil {
		log.Printf("lifecycle: retention pass: %v", err)
	} else if report.EventsPurged > 0 || report.SummariesPurged > 0 {
		log.Printf("lifecycle: purged %d events, %d summaries", report.EventsPurged, report.SummariesPurged)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if report, err := r.Run(ctx, false); err != nil {
				log.Printf("lifecycle: retention pass: %v", err)
			} else if report.EventsPurged > 0 || report.SummariesPurged > 0 {
				log.Printf("lifecycle: purged %d events, %d summaries", report.EventsPurged, report.SummariesPurged)
			}
		}
	}
}
