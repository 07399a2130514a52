// Package ingest turns raw incoming notifications into stored events.
//
// The path is: normalize and noise-filter, sanitize, dedup-check,
// persist, then hand the event to the trigger controller. Every drop is
// silent by design; a notification that fails any gate simply never
// becomes an event.
package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/usagijin/notisum/internal/store"
)

// OwnSourceID is the pipeline's own identifier. Events it emits about
// itself never re-enter the pipeline.
const OwnSourceID = "io.usagijin.notisum"

// RawEvent is the push-callback shape delivered by the event source
// collaborator. Title and Body may both be present, either, or neither.
type RawEvent struct {
	SourceID    string    `json:"sourceId"`
	SourceLabel string    `json:"sourceLabel"`
	OriginID    string    `json:"originId,omitempty"`
	Title       string    `json:"title,omitempty"`
	Body        string    `json:"body,omitempty"`
	ArrivedAt   time.Time `json:"arrivedAt"`
	Persistent  bool      `json:"isPersistent"`
}

// sourceDenylist names sources whose notifications carry no
// summarizable information: media transport controls, device pairing,
// and system housekeeping.
var sourceDenylist = map[string]bool{
	"android":                                true,
	"com.android.systemui":                   true,
	"com.android.bluetooth":                  true,
	"com.android.providers.downloads":        true,
	"com.android.server.telecom":             true,
	"com.google.android.bluetooth":           true,
	"com.google.android.projection.gearhead": true,
}

// mediaKeywords mark playback transport notifications. Matching is a
// case-insensitive substring check on title and body.
var mediaKeywords = []string{
	"now playing",
	"paused",
	"next track",
	"previous track",
	"正在播放",
	"已暂停",
	"下一曲",
	"上一曲",
}

// DropReason says why a raw notification never became an event.
type DropReason string

const (
	DropNone           DropReason = ""
	DropOwnApp         DropReason = "own_app"
	DropBlank          DropReason = "blank"
	DropDenylisted     DropReason = "denylisted"
	DropMediaPlayback  DropReason = "media_playback"
	DropPersistent     DropReason = "persistent"
	DropSanitizedEmpty DropReason = "sanitized_empty"
	DropDuplicateID    DropReason = "duplicate_id"
	DropDuplicateText  DropReason = "duplicate_text"
)

// Normalize applies the noise-filter rules in order and returns the
// canonical event, or nil with the reason it was rejected. It has no
// side effects; nothing is persisted here.
func Normalize(raw RawEvent) (*store.Event, DropReason) {
	if raw.SourceID == OwnSourceID {
		return nil, DropOwnApp
	}

	title := strings.TrimSpace(raw.Title)
	body := strings.TrimSpace(raw.Body)
	if title == "" && body == "" {
		return nil, DropBlank
	}

	if sourceDenylist[raw.SourceID] {
		return nil, DropDenylisted
	}

	if matchesMediaKeyword(title) || matchesMediaKeyword(body) {
		return nil, DropMediaPlayback
	}

	// Ongoing/undismissable notifications repeat their state forever and
	// carry nothing worth summarizing.
	if raw.Persistent {
		return nil, DropPersistent
	}

	arrivedAt := raw.ArrivedAt
	if arrivedAt.IsZero() {
		arrivedAt = time.Now()
	}

	label := strings.TrimSpace(raw.SourceLabel)
	if label == "" {
		label = raw.SourceID
	}

	return &store.Event{
		ID:          eventID(raw.SourceID, raw.OriginID, arrivedAt),
		SourceID:    raw.SourceID,
		SourceLabel: label,
		Title:       title,
		Body:        body,
		ArrivedAt:   arrivedAt.UTC(),
		Persistent:  raw.Persistent,
	}, DropNone
}

func matchesMediaKeyword(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range mediaKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// eventID builds the stable event key: source id, origin id, arrival
// timestamp. Duplicate delivery of the same origin notification
// produces the same key.
func eventID(sourceID, originID string, arrivedAt time.Time) string {
	if originID == "" {
		originID = "0"
	}
	return fmt.Sprintf("%s_%s_%d", sourceID, originID, arrivedAt.UnixMilli())
}
