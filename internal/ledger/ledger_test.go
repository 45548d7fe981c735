package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newAccount(t *testing.T, m *store.Memory) int64 {
	t.Helper()
	var id int64
	require.NoError(t, m.WithTx(context.Background(), func(q store.Queries) error {
		a := &domain.Account{Email: "l@example.com", ReferralCode: "llll"}
		if err := q.CreateAccount(context.Background(), a); err != nil {
			return err
		}
		id = a.ID
		return nil
	}))
	return id
}

func post(m *store.Memory, p Posting) error {
	return m.WithTx(context.Background(), func(q store.Queries) error {
		_, _, err := Post(context.Background(), q, p)
		return err
	})
}

func reconcile(t *testing.T, m *store.Memory, id int64) *Reconciliation {
	t.Helper()
	var r *Reconciliation
	require.NoError(t, m.WithTx(context.Background(), func(q store.Queries) error {
		var err error
		r, err = Reconcile(context.Background(), q, id)
		return err
	}))
	return r
}

func TestPostCreditAndDebit(t *testing.T) {
	m := store.NewMemory()
	id := newAccount(t, m)

	require.NoError(t, post(m, Posting{AccountID: id, Kind: domain.KindDeposit, Amount: dec("100")}))
	require.NoError(t, post(m, Posting{AccountID: id, Kind: domain.KindEarning, Amount: dec("12.345")}))
	require.NoError(t, post(m, Posting{AccountID: id, Kind: domain.KindBuy, Amount: dec("-50")}))

	r := reconcile(t, m, id)
	assert.True(t, r.Balanced)
	assert.Equal(t, "62.35", r.Balance.StringFixed(2))

	require.NoError(t, m.WithTx(context.Background(), func(q store.Queries) error {
		a, err := q.GetAccount(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "12.35", a.TotalEarned.StringFixed(2), "only earning credits count toward total earned")
		return nil
	}))
}

func TestPostRejectsOverdraft(t *testing.T) {
	m := store.NewMemory()
	id := newAccount(t, m)
	require.NoError(t, post(m, Posting{AccountID: id, Kind: domain.KindDeposit, Amount: dec("10")}))

	err := post(m, Posting{AccountID: id, Kind: domain.KindWithdraw, Amount: dec("-10.01")})

	var pe *domain.PreconditionError
	assert.True(t, errors.As(err, &pe))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	r := reconcile(t, m, id)
	assert.True(t, r.Balanced)
	assert.Equal(t, "10.00", r.Balance.StringFixed(2))
}

func TestPostUnknownAccount(t *testing.T) {
	m := store.NewMemory()
	err := post(m, Posting{AccountID: 42, Kind: domain.KindAdmin, Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestPostInvalidKind(t *testing.T) {
	m := store.NewMemory()
	id := newAccount(t, m)
	err := post(m, Posting{AccountID: id, Kind: "bonus", Amount: dec("1")})

	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestPostRollsBackWithSurroundingTx(t *testing.T) {
	m := store.NewMemory()
	id := newAccount(t, m)
	boom := errors.New("boom")

	err := m.WithTx(context.Background(), func(q store.Queries) error {
		if _, _, err := Post(context.Background(), q, Posting{AccountID: id, Kind: domain.KindDeposit, Amount: dec("5")}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	r := reconcile(t, m, id)
	assert.True(t, r.Balance.IsZero())
	assert.True(t, r.LedgerSum.IsZero())
}
