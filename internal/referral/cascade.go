// Package referral credits up to three levels of referrers when an account
// settles a purchase or a deposit.
package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/ledger"
	"github.com/punchamoorthee/scooterledger/internal/store"
	"github.com/shopspring/decimal"
)

// Payout is one credited ancestor. Depth 1 is the direct referrer.
type Payout struct {
	AccountID int64
	Email     string
	Depth     int
	Amount    decimal.Decimal
}

// Cascade walks invited_by links, one rate per depth.
type Cascade struct {
	Rates []decimal.Decimal
}

// New returns a cascade using rates ordered nearest referrer first.
func New(rates []decimal.Decimal) *Cascade {
	return &Cascade{Rates: rates}
}

// Distribute credits the ancestors of source with rate·principal each.
// It runs inside the caller's transaction; ancestors are locked in walk
// order, child before parent. A missing ancestor ends the walk.
func (c *Cascade) Distribute(ctx context.Context, q store.Queries, source *domain.Account, principal decimal.Decimal, at time.Time) ([]Payout, error) {
	if source == nil || !principal.IsPositive() {
		return nil, nil
	}

	var payouts []Payout
	next := source.InvitedBy
	visited := map[int64]bool{source.ID: true}

	for depth := 1; depth <= len(c.Rates) && next != nil; depth++ {
		ancestorID := *next
		if visited[ancestorID] {
			// Cycles are refused at assignment time; stop rather than pay twice.
			break
		}
		visited[ancestorID] = true

		amount := principal.Mul(c.Rates[depth-1]).Round(2)
		if !amount.IsPositive() {
			ancestor, err := q.GetAccount(ctx, ancestorID)
			if errors.Is(err, domain.ErrAccountNotFound) {
				break
			}
			if err != nil {
				return nil, err
			}
			next = ancestor.InvitedBy
			continue
		}

		acc, _, err := ledger.Post(ctx, q, ledger.Posting{
			AccountID: ancestorID,
			Kind:      domain.KindReferral,
			Amount:    amount,
			Comment:   fmt.Sprintf("referral bonus level %d from %s", depth, source.Email),
			At:        at,
		})
		if errors.Is(err, domain.ErrAccountNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("referral depth %d: %w", depth, err)
		}

		payouts = append(payouts, Payout{AccountID: acc.ID, Email: acc.Email, Depth: depth, Amount: amount})
		next = acc.InvitedBy
	}
	return payouts, nil
}

// Ancestors returns the referrer chain of accountID, nearest first, up to max hops.
func Ancestors(ctx context.Context, q store.Queries, accountID int64, max int) ([]int64, error) {
	acc, err := q.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var chain []int64
	seen := map[int64]bool{accountID: true}
	next := acc.InvitedBy
	for len(chain) < max && next != nil && !seen[*next] {
		seen[*next] = true
		chain = append(chain, *next)
		parent, err := q.GetAccount(ctx, *next)
		if errors.Is(err, domain.ErrAccountNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		next = parent.InvitedBy
	}
	return chain, nil
}

// WouldCycle reports whether making referrerID the referrer of accountID
// closes a loop in the invited_by graph.
func WouldCycle(ctx context.Context, q store.Queries, accountID, referrerID int64) (bool, error) {
	if accountID == referrerID {
		return true, nil
	}
	current := referrerID
	seen := map[int64]bool{}
	for !seen[current] {
		seen[current] = true
		acc, err := q.GetAccount(ctx, current)
		if err != nil {
			return false, err
		}
		if acc.InvitedBy == nil {
			return false, nil
		}
		if *acc.InvitedBy == accountID {
			return true, nil
		}
		current = *acc.InvitedBy
	}
	return true, nil
}

// DepthCounts returns the number of invitees at each depth, 1..depth.
func DepthCounts(ctx context.Context, q store.Queries, accountID int64, depth int) ([]int, error) {
	counts := make([]int, depth)
	frontier := []int64{accountID}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		ids, err := q.ListInvitees(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("list invitees depth %d: %w", d+1, err)
		}
		counts[d] = len(ids)
		frontier = ids
	}
	return counts, nil
}
