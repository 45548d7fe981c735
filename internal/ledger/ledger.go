// Package ledger applies balance mutations together with their ledger entries.
//
// Every change to an account balance goes through Post, inside a
// store transaction: the account row is locked, the delta applied, and
// exactly one entry with the same amount is appended. Keeping both writes
// in one transaction is what makes Account.Balance equal the sum of the
// account's entries at all times.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/store"
	"github.com/shopspring/decimal"
)

var postingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_postings_total",
	Help: "Ledger entries written inside a transaction, labeled by kind and outcome",
}, []string{"kind", "outcome"})

// Posting describes one balance mutation.
type Posting struct {
	AccountID int64
	Kind      domain.EntryKind
	// Amount is signed: negative debits, positive credits.
	Amount  decimal.Decimal
	Comment string
	At      time.Time
}

// earns reports whether a credit of this kind counts toward total_earned.
func earns(kind domain.EntryKind) bool {
	return kind == domain.KindEarning || kind == domain.KindReferral
}

// Post applies p to the account and appends its entry. It must run inside
// store.Store.WithTx so a later failure rolls both writes back.
func Post(ctx context.Context, q store.Queries, p Posting) (*domain.Account, *domain.LedgerEntry, error) {
	if !p.Kind.Valid() {
		return nil, nil, domain.Invalid("kind", fmt.Sprintf("unknown entry kind %q", p.Kind))
	}
	amount := p.Amount.Round(2)

	acc, err := q.LockAccount(ctx, p.AccountID)
	if err != nil {
		postingsTotal.WithLabelValues(string(p.Kind), "error").Inc()
		return nil, nil, fmt.Errorf("lock account %d: %w", p.AccountID, err)
	}

	balance := acc.Balance.Add(amount)
	if amount.IsNegative() && balance.IsNegative() {
		postingsTotal.WithLabelValues(string(p.Kind), "rejected").Inc()
		return nil, nil, domain.Precondition(domain.ErrInsufficientFunds,
			fmt.Sprintf("insufficient funds: balance %s, required %s", acc.Balance.StringFixed(2), amount.Neg().StringFixed(2)))
	}

	earned := acc.TotalEarned
	if earns(p.Kind) && amount.IsPositive() {
		earned = earned.Add(amount)
	}

	if err := q.UpdateBalance(ctx, acc.ID, balance, earned); err != nil {
		postingsTotal.WithLabelValues(string(p.Kind), "error").Inc()
		return nil, nil, fmt.Errorf("update balance: %w", err)
	}

	entry := &domain.LedgerEntry{
		AccountID: acc.ID,
		Kind:      p.Kind,
		Amount:    amount,
		Comment:   p.Comment,
		CreatedAt: p.At,
	}
	if err := q.InsertEntry(ctx, entry); err != nil {
		postingsTotal.WithLabelValues(string(p.Kind), "error").Inc()
		return nil, nil, fmt.Errorf("ledger entry failed: %w", err)
	}

	postingsTotal.WithLabelValues(string(p.Kind), "ok").Inc()
	acc.Balance = balance
	acc.TotalEarned = earned
	return acc, entry, nil
}

// Reconciliation compares the stored balance with the ledger sum.
type Reconciliation struct {
	AccountID int64           `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	LedgerSum decimal.Decimal `json:"ledger_sum"`
	Balanced  bool            `json:"balanced"`
}

// Reconcile recomputes the balance from the ledger.
func Reconcile(ctx context.Context, q store.Queries, accountID int64) (*Reconciliation, error) {
	acc, err := q.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	sum, err := q.SumEntries(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("sum entries: %w", err)
	}
	return &Reconciliation{
		AccountID: accountID,
		Balance:   acc.Balance,
		LedgerSum: sum,
		Balanced:  acc.Balance.Equal(sum),
	}, nil
}
