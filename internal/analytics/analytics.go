// Package analytics captures product usage events. The default tracker
// emits structured log lines; a real pipeline can be swapped in behind the
// Tracker interface.
package analytics

import (
	"context"

	"paperbase.org/internal/obs"
)

// Tracker captures a usage event attributed to a user.
type Tracker interface {
	CaptureUserEvent(ctx context.Context, userID, event string, properties map[string]any) error
}

// LogTracker writes events as structured log lines.
type LogTracker struct{}

var _ Tracker = (*LogTracker)(nil)

// NewLogTracker constructs the log-backed tracker.
func NewLogTracker() *LogTracker { return &LogTracker{} }

func (t *LogTracker) CaptureUserEvent(ctx context.Context, userID, event string, properties map[string]any) error {
	entry := map[string]any{
		"level":   "info",
		"msg":     "analytics",
		"event":   event,
		"user_id": userID,
	}
	for k, v := range properties {
		entry["prop_"+k] = v
	}
	obs.Log(entry)
	return nil
}
