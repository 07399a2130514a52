// Package trigger decides when a source's recent events warrant a
// summary. It keeps one small state machine per active source
// (Idle → Counting → Debouncing or Paused → Idle) and manages at most
// one cancellable delayed task per source.
package trigger

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/usagijin/notisum/internal/gateway"
	"github.com/usagijin/notisum/internal/metrics"
	"github.com/usagijin/notisum/internal/store"
)

// Summarizer is the gateway boundary. Split out so the controller can
// be tested with a recording fake.
type Summarizer interface {
	Summarize(ctx context.Context, events []*store.Event, scenario gateway.Scenario) (*store.Summary, error)
}

// Config holds the trigger windows and thresholds. All of them are
// tunable; the defaults reproduce the reference behavior.
type Config struct {
	SingleDelay            time.Duration // debounce for one long event
	MultipleDelay          time.Duration // debounce for a small burst
	HighFrequencyPause     time.Duration // pause length for a flood
	HighFrequencyThreshold int           // events before the pause kicks in
	LongBodyThreshold      int           // body runes that make an event "long"
	SweepInterval          time.Duration // low-frequency safety-net period
	SweepMinBatch          int           // unprocessed events before the sweep acts
	SweepLimit             int           // max events per sweep batch
}

// DefaultConfig returns the standard trigger windows.
func DefaultConfig() Config {
	return Config{
		SingleDelay:            5 * time.Second,
		MultipleDelay:          10 * time.Second,
		HighFrequencyPause:     30 * time.Second,
		HighFrequencyThreshold: 10,
		LongBodyThreshold:      26,
		SweepInterval:          2 * time.Minute,
		SweepMinBatch:          3,
		SweepLimit:             10,
	}
}

// withDefaults fills every unset field from DefaultConfig. A caller
// tuning one window keeps the standard values for the rest.
func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.SingleDelay <= 0 {
		cfg.SingleDelay = def.SingleDelay
	}
	if cfg.MultipleDelay <= 0 {
		cfg.MultipleDelay = def.MultipleDelay
	}
	if cfg.HighFrequencyPause <= 0 {
		cfg.HighFrequencyPause = def.HighFrequencyPause
	}
	if cfg.HighFrequencyThreshold <= 0 {
		cfg.HighFrequencyThreshold = def.HighFrequencyThreshold
	}
	if cfg.LongBodyThreshold <= 0 {
		cfg.LongBodyThreshold = def.LongBodyThreshold
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.SweepMinBatch <= 0 {
		cfg.SweepMinBatch = def.SweepMinBatch
	}
	if cfg.SweepLimit <= 0 {
		cfg.SweepLimit = def.SweepLimit
	}
	return cfg
}

// sourceState is the per-source machine. Guarded by Controller.mu.
type sourceState struct {
	recentCount int
	pausedUntil time.Time
	generation  uint64
	timer       *time.Timer
}

// Controller routes accepted events into delayed summarization tasks.
// A single mutex guards the registry so the count increment and the
// trigger decision for an event are one atomic step.
type Controller struct {
	mu     sync.Mutex
	states map[string]*sourceState

	store      store.Store
	summarizer Summarizer
	cfg        Config

	// rootCtx outlives the per-event contexts; fired tasks run under it
	// so process shutdown cancels them all.
	rootCtx context.Context
	cancel  context.CancelFunc

	now func() time.Time
}

// New creates a Controller. Call Close on shutdown to cancel every
// pending task.
func New(st store.Store, summarizer Summarizer, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		states:     make(map[string]*sourceState),
		store:      st,
		summarizer: summarizer,
		cfg:        cfg,
		rootCtx:    ctx,
		cancel:     cancel,
		now:        time.Now,
	}
}

// Close cancels all pending tasks. Cancelled tasks never execute their
// summarization body; no partial summaries are emitted.
func (c *Controller) Close() {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.states {
		st.generation++
		if st.timer != nil {
			st.timer.Stop()
		}
	}
	c.states = make(map[string]*sourceState)
}

// OnEvent updates the source's counter and evaluates the trigger rules.
// The count increment and the scenario decision happen under one lock
// so two concurrent events both see a consistent count.
func (c *Controller) OnEvent(ctx context.Context, e *store.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.states[e.SourceID]
	if st == nil {
		st = &sourceState{}
		c.states[e.SourceID] = st
	}
	st.recentCount++

	// During a high-frequency pause the event is stored but does not
	// arm new triggers; the pause task will gather it.
	if !st.pausedUntil.IsZero() && c.now().Before(st.pausedUntil) {
		return
	}

	switch {
	case st.recentCount > c.cfg.HighFrequencyThreshold:
		// Flood: pause the source and summarize once the pause elapses.
		// Highest priority; always replaces any pending task.
		st.pausedUntil = c.now().Add(c.cfg.HighFrequencyPause)
		c.arm(e.SourceID, st, gateway.ScenarioHighFrequency, c.cfg.HighFrequencyPause)

	case len([]rune(e.Body)) > c.cfg.LongBodyThreshold:
		c.arm(e.SourceID, st, gateway.ScenarioSingleLong, c.cfg.SingleDelay)

	case st.recentCount >= 2:
		c.arm(e.SourceID, st, gateway.ScenarioMultiple, c.cfg.MultipleDelay)

	default:
		// Short isolated event: store only.
	}
}

// arm schedules the delayed task for a source, cancelling any prior
// one. The generation counter makes cancellation race-free: a fired
// callback whose captured generation is stale takes no action.
// Caller holds c.mu.
func (c *Controller) arm(sourceID string, st *sourceState, scenario gateway.Scenario, delay time.Duration) {
	st.generation++
	gen := st.generation
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(delay, func() {
		c.fire(sourceID, gen, scenario)
	})
}

// fire runs when a delayed task elapses. It validates its generation,
// resets the source state, then gathers and summarizes outside the
// lock under the controller's root context.
func (c *Controller) fire(sourceID string, gen uint64, scenario gateway.Scenario) {
	c.mu.Lock()
	st := c.states[sourceID]
	if st == nil || st.generation != gen {
		c.mu.Unlock()
		return
	}
	// Task completed: the count resets unconditionally and the source
	// goes back to Idle. New events from here start a fresh window.
	delete(c.states, sourceID)
	c.mu.Unlock()

	if err := c.rootCtx.Err(); err != nil {
		return
	}
	metrics.TriggerFires.WithLabelValues(string(scenario)).Inc()

	switch scenario {
	case gateway.ScenarioSingleLong:
		c.fireSingleLong(sourceID)
	case gateway.ScenarioMultiple:
		c.fireMultiple(sourceID)
	case gateway.ScenarioHighFrequency:
		c.fireHighFrequency(sourceID)
	}
}

// fireSingleLong summarizes the most recent event for a source. Any
// event arriving during the wait re-armed the task, so the fired
// generation is always looking at the newest event; older ones in the
// window are left for the sweep.
func (c *Controller) fireSingleLong(sourceID string) {
	window := c.cfg.SingleDelay + time.Second
	events, err := c.store.EventsBySource(c.rootCtx, sourceID, c.now().Add(-window), 1)
	if err != nil {
		log.Printf("trigger: gathering single-long batch for %s: %v", sourceID, err)
		return
	}
	if len(events) == 0 {
		return
	}

	if _, err := c.summarizer.Summarize(c.rootCtx, events, gateway.ScenarioSingleLong); err != nil {
		log.Printf("trigger: single-long summarization for %s: %v", sourceID, err)
	}
}

// fireMultiple summarizes up to 5 events from the trailing window, but
// only if at least 2 remain eligible.
func (c *Controller) fireMultiple(sourceID string) {
	window := c.cfg.MultipleDelay + time.Second
	events, err := c.store.EventsBySource(c.rootCtx, sourceID, c.now().Add(-window), 5)
	if err != nil {
		log.Printf("trigger: gathering multiple batch for %s: %v", sourceID, err)
		return
	}
	if len(events) < 2 {
		return
	}

	if _, err := c.summarizer.Summarize(c.rootCtx, events, gateway.ScenarioMultiple); err != nil {
		log.Printf("trigger: multiple summarization for %s: %v", sourceID, err)
	}
}

// fireHighFrequency summarizes the last 10 stored events for a source
// once its pause elapses.
func (c *Controller) fireHighFrequency(sourceID string) {
	window := c.cfg.HighFrequencyPause + time.Second
	events, err := c.store.EventsBySource(c.rootCtx, sourceID, c.now().Add(-window), 10)
	if err != nil {
		log.Printf("trigger: gathering high-frequency batch for %s: %v", sourceID, err)
		return
	}
	if len(events) == 0 {
		return
	}

	if _, err := c.summarizer.Summarize(c.rootCtx, events, gateway.ScenarioHighFrequency); err != nil {
		log.Printf("trigger: high-frequency summarization for %s: %v", sourceID, err)
	}
}

// Paused reports whether a source is currently in its high-frequency
// pause window. Exposed for observability.
func (c *Controller) Paused(sourceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.states[sourceID]
	return st != nil && !st.pausedUntil.IsZero() && c.now().Before(st.pausedUntil)
}

// RecentCount returns the live counter for a source. Zero once the
// source has gone back to Idle.
func (c *Controller) RecentCount(sourceID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.states[sourceID]
	if st == nil {
		return 0
	}
	return st.recentCount
}
