// Package progress pushes live job updates to dashboard consumers.
// Broadcasts are best-effort: consumers must re-fetch authoritative state
// from the database and never trust the payload alone.
package progress

import (
	"context"

	"github.com/indexpilot/indexpilot/internal/config"
)

type Broadcaster interface {
	// JobUpdate publishes a job status change. Implementations must never
	// return an error to the caller; delivery failures are non-fatal.
	JobUpdate(ctx context.Context, jobID uint, status config.JobStatus, data map[string]any)
}

// Nop discards all updates. Used in tests and when no transport is
// configured.
type Nop struct{}

func (Nop) JobUpdate(context.Context, uint, config.JobStatus, map[string]any) {}
