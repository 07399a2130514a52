package trigger

import (
	"context"
	"log"
	"time"

	"github.com/usagijin/notisum/internal/gateway"
	"github.com/usagijin/notisum/internal/store"
)

// Sweeper is the low-frequency safety net. It periodically collects
// events that never reached a trigger threshold and summarizes them as
// one batch, so slow trickles still surface.
type Sweeper struct {
	store      store.Store
	summarizer Summarizer
	interval   time.Duration
	minBatch   int
	limit      int
}

// NewSweeper creates a Sweeper from the controller config.
func NewSweeper(st store.Store, summarizer Summarizer, cfg Config) *Sweeper {
	cfg = cfg.withDefaults()
	return &Sweeper{
		store:      st,
		summarizer: summarizer,
		interval:   cfg.SweepInterval,
		minBatch:   cfg.SweepMinBatch,
		limit:      cfg.SweepLimit,
	}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("trigger: sweep: %v", err)
			}
		}
	}
}

// Sweep runs one pass. Fewer unprocessed events than the minimum batch
// size leaves them for a later pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	events, err := s.store.Unprocessed(ctx, s.limit)
	if err != nil {
		return err
	}
	if len(events) < s.minBatch {
		return nil
	}

	_, err = s.summarizer.Summarize(ctx, events, gateway.ScenarioLowFrequency)
	return err
}
