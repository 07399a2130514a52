// Package notifier is the display collaborator boundary. The core
// hands finished summaries over and does not await confirmation.
package notifier

import (
	"log"

	"github.com/usagijin/notisum/internal/store"
)

// Notifier displays a finished summary to the user. Fire-and-forget:
// implementations must not block the gateway and have no error path
// back into the pipeline.
type Notifier interface {
	Display(summary *store.Summary)
}

// LogNotifier writes summaries to the process log. The default for the
// headless daemon; a platform display layer replaces it in production.
type LogNotifier struct{}

func (LogNotifier) Display(summary *store.Summary) {
	log.Printf("summary [%s] importance=%d %s: %s",
		summary.SourceLabel, summary.Importance, summary.Title, summary.Body)
}
