// Package quota tracks per-account daily usage against the indexing
// provider's limits and decides when jobs must pause and resume around
// quota exhaustion.
package quota

import (
	"context"
	"time"

	"github.com/indexpilot/indexpilot/internal/models"
)

// Store is the persistence contract for usage counters.
type Store interface {
	Usage(ctx context.Context, accountID uint, date string) (int, error)
	IncrementIfBelow(ctx context.Context, accountID uint, date string, limit int) (bool, error)
}

// DateKey returns the canonical usage day for a point in time. UTC
// midnight is the provider's reset boundary, so the key is always the UTC
// date.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// NextUTCMidnight returns the next quota reset boundary after t.
func NextUTCMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// Ledger answers headroom questions and records successful submissions.
// Failed submissions never consume quota: the provider did not count them
// against the account's real limit.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) Usage(ctx context.Context, accountID uint, date string) (int, error) {
	return l.store.Usage(ctx, accountID, date)
}

func (l *Ledger) HasHeadroom(ctx context.Context, account *models.ServiceAccount, date string) (bool, error) {
	usage, err := l.store.Usage(ctx, account.ID, date)
	if err != nil {
		return false, err
	}
	return usage < account.DailyQuotaLimit, nil
}

// RecordSuccess counts one successful submission. The increment is
// bounded at the storage layer; false means the account hit its limit
// concurrently and the caller should treat the credential as exhausted.
func (l *Ledger) RecordSuccess(ctx context.Context, account *models.ServiceAccount, date string) (bool, error) {
	return l.store.IncrementIfBelow(ctx, account.ID, date, account.DailyQuotaLimit)
}
