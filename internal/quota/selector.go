package quota

import (
	"context"
	"fmt"
	"sort"

	"github.com/indexpilot/indexpilot/internal/models"
)

// AccountStore lists credential accounts eligible for dispatch.
type AccountStore interface {
	ListActive(ctx context.Context, userID string) ([]models.ServiceAccount, error)
}

// Candidate pairs an account with its usage on the selection date.
type Candidate struct {
	Account models.ServiceAccount
	Usage   int
}

// Exhausted reports whether the candidate has no headroom left.
func (c Candidate) Exhausted() bool {
	return c.Usage >= c.Account.DailyQuotaLimit
}

// Selector ranks a user's active accounts by ascending usage so load
// spreads evenly and no single account burns out while others sit idle.
type Selector struct {
	accounts AccountStore
	ledger   *Ledger
}

func NewSelector(accounts AccountStore, ledger *Ledger) *Selector {
	return &Selector{accounts: accounts, ledger: ledger}
}

// OrderedCandidates returns all active accounts for the user, least-used
// first, with fresh usage numbers. Usage changes within a single job run,
// so callers re-rank on every dispatch tick rather than caching.
func (s *Selector) OrderedCandidates(ctx context.Context, userID, date string) ([]Candidate, error) {
	accounts, err := s.accounts.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	candidates := make([]Candidate, 0, len(accounts))
	for _, account := range accounts {
		usage, err := s.ledger.Usage(ctx, account.ID, date)
		if err != nil {
			return nil, fmt.Errorf("load usage for account %d: %w", account.ID, err)
		}
		candidates = append(candidates, Candidate{Account: account, Usage: usage})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Usage != candidates[j].Usage {
			return candidates[i].Usage < candidates[j].Usage
		}
		return candidates[i].Account.ID < candidates[j].Account.ID
	})

	return candidates, nil
}
