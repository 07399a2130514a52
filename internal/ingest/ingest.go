package ingest

import (
	"context"
	"log"
	"time"

	"github.com/usagijin/notisum/internal/metrics"
	"github.com/usagijin/notisum/internal/sanitize"
	"github.com/usagijin/notisum/internal/store"
)

// DefaultDedupWindow is the recency window inside which a same-source
// event with identical title and body is treated as a re-delivery.
const DefaultDedupWindow = 60 * time.Second

// Trigger receives every accepted event. Implemented by the rate
// controller; split out as an interface so ingestion can be tested
// without timers.
type Trigger interface {
	OnEvent(ctx context.Context, e *store.Event)
}

// Ingestor runs the full accept path for raw notifications.
type Ingestor struct {
	store       store.Store
	trigger     Trigger
	dedupWindow time.Duration
}

// New creates an Ingestor. trigger may be nil (events are stored but
// never summarized — useful for backfill tooling).
func New(st store.Store, trigger Trigger, dedupWindow time.Duration) *Ingestor {
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}
	return &Ingestor{
		store:       st,
		trigger:     trigger,
		dedupWindow: dedupWindow,
	}
}

// Dispatch hands a raw event to the pipeline without blocking the
// caller. Errors on the async path are logged and dropped; the event
// source collaborator never sees a failure.
func (in *Ingestor) Dispatch(ctx context.Context, raw RawEvent) {
	go func() {
		if _, reason, err := in.Accept(ctx, raw); err != nil {
			log.Printf("ingest: dropping event from %s: %v (reason=%s)", raw.SourceID, err, reason)
		}
	}()
}

// Accept runs the synchronous accept path: normalize, sanitize, dedup,
// persist, trigger. Returns the stored event when accepted, or nil and
// the drop reason. An error is only returned for persistence failures;
// filter rejections are silent drops.
func (in *Ingestor) Accept(ctx context.Context, raw RawEvent) (*store.Event, DropReason, error) {
	event, reason := Normalize(raw)
	if event == nil {
		metrics.EventsDropped.WithLabelValues(string(reason)).Inc()
		return nil, reason, nil
	}

	// Sanitize title and body independently; redaction can reduce an
	// event below the useful-length floor.
	cleanTitle, cleanBody, keep := sanitize.Event(event.Title, event.Body)
	if !keep {
		metrics.EventsDropped.WithLabelValues(string(DropSanitizedEmpty)).Inc()
		return nil, DropSanitizedEmpty, nil
	}
	event.Title = cleanTitle
	event.Body = cleanBody

	// Dedup guard: exact-ID repeat first, then near-duplicate text from
	// the same source inside the recency window.
	exists, err := in.store.HasEvent(ctx, event.ID)
	if err != nil {
		return nil, DropNone, err
	}
	if exists {
		metrics.EventsDropped.WithLabelValues(string(DropDuplicateID)).Inc()
		return nil, DropDuplicateID, nil
	}

	since := event.ArrivedAt.Add(-in.dedupWindow)
	dup, err := in.store.FindRecentDuplicate(ctx, event.SourceID, event.Title, event.Body, since)
	if err != nil {
		return nil, DropNone, err
	}
	if dup {
		metrics.EventsDropped.WithLabelValues(string(DropDuplicateText)).Inc()
		return nil, DropDuplicateText, nil
	}

	if err := in.store.InsertEvent(ctx, event); err != nil {
		return nil, DropNone, err
	}
	metrics.EventsAccepted.Inc()

	if in.trigger != nil {
		in.trigger.OnEvent(ctx, event)
	}
	return event, DropNone, nil
}
