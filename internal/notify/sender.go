// Package notify delivers user-facing notifications about job outcomes
// and quota state. Delivery is fire-and-forget throughout: a failed email
// must never block or fail a job.
package notify

import (
	"context"

	"github.com/indexpilot/indexpilot/internal/config"
)

type Sender interface {
	Completion(ctx context.Context, userID, jobName string, success, failed, total int)
	Failure(ctx context.Context, userID, jobName, reason string)
	Paused(ctx context.Context, userID, jobName, reason string)
	Resumed(ctx context.Context, userID, jobName string)
	QuotaAlert(ctx context.Context, userID, accountName string, usage, limit, percentage int, level config.AlertLevel)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Completion(context.Context, string, string, int, int, int)                  {}
func (Nop) Failure(context.Context, string, string, string)                           {}
func (Nop) Paused(context.Context, string, string, string)                            {}
func (Nop) Resumed(context.Context, string, string)                                   {}
func (Nop) QuotaAlert(context.Context, string, string, int, int, int, config.AlertLevel) {}
