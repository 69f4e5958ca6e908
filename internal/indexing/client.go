// Package indexing wraps the provider's URL notification API. The engine
// only cares about three things per attempt: did it succeed, what went
// wrong, and whether the failure was quota exhaustion. That last
// distinction drives the pause state machine.
package indexing

import (
	"context"

	"github.com/indexpilot/indexpilot/internal/models"
)

// Result is the outcome of one submission attempt.
type Result struct {
	URL           string
	Success       bool
	Error         string
	QuotaExceeded bool
}

type Client interface {
	Submit(ctx context.Context, url string, account *models.ServiceAccount) Result
}
