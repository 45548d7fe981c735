package referral

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultRates = []decimal.Decimal{
	decimal.RequireFromString("0.09"),
	decimal.RequireFromString("0.03"),
	decimal.RequireFromString("0.01"),
}

// chain creates n accounts where account i+1 was invited by account i and
// returns their ids, root first.
func chain(t *testing.T, m *store.Memory, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	require.NoError(t, m.WithTx(context.Background(), func(q store.Queries) error {
		for i := 0; i < n; i++ {
			a := &domain.Account{Email: fmt.Sprintf("u%d@example.com", i), ReferralCode: fmt.Sprintf("code%d", i)}
			if i > 0 {
				parent := ids[i-1]
				a.InvitedBy = &parent
			}
			if err := q.CreateAccount(context.Background(), a); err != nil {
				return err
			}
			ids = append(ids, a.ID)
		}
		return nil
	}))
	return ids
}

func balance(t *testing.T, m *store.Memory, id int64) decimal.Decimal {
	t.Helper()
	var b decimal.Decimal
	require.NoError(t, m.WithTx(context.Background(), func(q store.Queries) error {
		a, err := q.GetAccount(context.Background(), id)
		if err != nil {
			return err
		}
		b = a.Balance
		return nil
	}))
	return b
}

func TestDistributeThreeLevels(t *testing.T) {
	m := store.NewMemory()
	// E invited D invited C invited B invited A; A settles.
	ids := chain(t, m, 5)
	e, d, c, b, a := ids[0], ids[1], ids[2], ids[3], ids[4]

	var payouts []Payout
	require.NoError(t, m.WithTx(context.Background(), func(q store.Queries) error {
		src, err := q.GetAccount(context.Background(), a)
		require.NoError(t, err)
		payouts, err = New(defaultRates).Distribute(context.Background(), q, src, decimal.NewFromInt(1000), time.Now())
		return err
	}))

	require.Len(t, payouts, 3)
	assert.Equal(t, b, payouts[0].AccountID)
	assert.Equal(t, 1, payouts[0].Depth)
	assert.Equal(t, "90.00", payouts[0].Amount.StringFixed(2))
	assert.Equal(t, c, payouts[1].AccountID)
	assert.Equal(t, "30.00", payouts[1].Amount.StringFixed(2))
	assert.Equal(t, d, payouts[2].AccountID)
	assert.Equal(t, "10.00", payouts[2].Amount.StringFixed(2))

	assert.Equal(t, "90.00", balance(t, m, b).StringFixed(2))
	assert.Equal(t, "30.00", balance(t, m, c).StringFixed(2))
	assert.Equal(t, "10.00", balance(t, m, d).StringFixed(2))
	assert.True(t, balance(t, m, e).IsZero(), "fourth ancestor gets nothing")
	assert.True(t, balance(t, m, a).IsZero())

	require.NoError(t, m.WithTx(context.Background(), func(q store.Queries) error {
		acc, err := q.GetAccount(context.Background(), b)
		require.NoError(t, err)
		assert.Equal(t, "90.00", acc.TotalEarned.StringFixed(2))

		latest, err := q.LatestEntry(context.Background(), b, domain.KindReferral)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Contains(t, latest.Comment, "level 1")
		return nil
	}))
}

func TestDistributeShortChain(t *testing.T) {
	m := store.NewMemory()
	ids := chain(t, m, 2)

	var payouts []Payout
	require.NoError(t, m.WithTx(context.Background(), func(q store.Queries) error {
		src, err := q.GetAccount(context.Background(), ids[1])
		require.NoError(t, err)
		payouts, err = New(defaultRates).Distribute(context.Background(), q, src, decimal.NewFromInt(275), time.Now())
		return err
	}))

	require.Len(t, payouts, 1)
	assert.Equal(t, "24.75", payouts[0].Amount.StringFixed(2))
}

func TestDistributeNoReferrer(t *testing.T) {
	m := store.NewMemory()
	ids := chain(t, m, 1)

	require.NoError(t, m.WithTx(context.Background(), func(q store.Queries) error {
		src, err := q.GetAccount(context.Background(), ids[0])
		require.NoError(t, err)
		payouts, err := New(defaultRates).Distribute(context.Background(), q, src, decimal.NewFromInt(100), time.Now())
		assert.Empty(t, payouts)
		return err
	}))
}

func TestWouldCycle(t *testing.T) {
	m := store.NewMemory()
	ids := chain(t, m, 3)

	require.NoError(t, m.WithTx(context.Background(), func(q store.Queries) error {
		ctx := context.Background()

		cyc, err := WouldCycle(ctx, q, ids[0], ids[2])
		require.NoError(t, err)
		assert.True(t, cyc, "root cannot be invited by its own descendant")

		cyc, err = WouldCycle(ctx, q, ids[1], ids[1])
		require.NoError(t, err)
		assert.True(t, cyc)

		other := &domain.Account{Email: "other@example.com", ReferralCode: "other"}
		require.NoError(t, q.CreateAccount(ctx, other))
		cyc, err = WouldCycle(ctx, q, other.ID, ids[2])
		require.NoError(t, err)
		assert.False(t, cyc)
		return nil
	}))
}

func TestDepthCountsAndAncestors(t *testing.T) {
	m := store.NewMemory()
	ids := chain(t, m, 5)

	require.NoError(t, m.WithTx(context.Background(), func(q store.Queries) error {
		ctx := context.Background()
		counts, err := DepthCounts(ctx, q, ids[0], 3)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 1, 1}, counts)

		up, err := Ancestors(ctx, q, ids[4], 3)
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[3], ids[2], ids[1]}, up)
		return nil
	}))
}
