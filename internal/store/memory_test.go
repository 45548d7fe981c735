package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/punchamoorthee/scooterledger/internal/catalog"
	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeededMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	require.NoError(t, SeedLevels(context.Background(), m, catalog.DefaultLevels()))
	return m
}

func TestMemoryRollbackOnError(t *testing.T) {
	ctx := context.Background()
	m := newSeededMemory(t)

	var id int64
	require.NoError(t, m.WithTx(ctx, func(q Queries) error {
		a := &domain.Account{Email: "a@example.com", ReferralCode: "aaaa"}
		if err := q.CreateAccount(ctx, a); err != nil {
			return err
		}
		id = a.ID
		return nil
	}))

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(q Queries) error {
		if err := q.UpdateBalance(ctx, id, decimal.NewFromInt(100), decimal.Zero); err != nil {
			return err
		}
		if _, err := q.UpsertHolding(ctx, id, 1, time.Now()); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, m.WithTx(ctx, func(q Queries) error {
		a, err := q.GetAccount(ctx, id)
		require.NoError(t, err)
		assert.True(t, a.Balance.IsZero())

		holdings, err := q.ListHoldings(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, holdings)
		return nil
	}))
}

func TestMemoryUpsertHoldingIncrements(t *testing.T) {
	ctx := context.Background()
	m := newSeededMemory(t)

	require.NoError(t, m.WithTx(ctx, func(q Queries) error {
		a := &domain.Account{Email: "h@example.com", ReferralCode: "hhhh"}
		require.NoError(t, q.CreateAccount(ctx, a))

		for i := 0; i < 3; i++ {
			_, err := q.UpsertHolding(ctx, a.ID, 2, time.Now())
			require.NoError(t, err)
		}

		holdings, err := q.ListHoldings(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, holdings, 1)
		assert.Equal(t, 3, holdings[0].Quantity)
		require.NotNil(t, holdings[0].Level)
		assert.Equal(t, 2, holdings[0].Level.Number)
		return nil
	}))
}

func TestMemoryReplaceDailyYield(t *testing.T) {
	ctx := context.Background()
	m := newSeededMemory(t)
	day := time.Date(2026, 3, 1, 15, 4, 5, 0, time.UTC)

	require.NoError(t, m.WithTx(ctx, func(q Queries) error {
		a := &domain.Account{Email: "y@example.com", ReferralCode: "yyyy"}
		require.NoError(t, q.CreateAccount(ctx, a))

		first := []domain.ScooterStat{
			{AccountID: a.ID, ScooterNumber: "1-1"},
			{AccountID: a.ID, ScooterNumber: "1-2"},
		}
		require.NoError(t, q.ReplaceDailyYield(ctx, domain.DailyReport{AccountID: a.ID, ReportDate: day, NumberOfTrips: 10}, first))

		second := []domain.ScooterStat{{AccountID: a.ID, ScooterNumber: "2-1"}}
		require.NoError(t, q.ReplaceDailyYield(ctx, domain.DailyReport{AccountID: a.ID, ReportDate: day.Add(time.Hour), NumberOfTrips: 4}, second))

		reports, err := q.ListDailyReports(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.Equal(t, 4, reports[0].NumberOfTrips)

		stats, err := q.ListScooterStats(ctx, a.ID, day)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, "2-1", stats[0].ScooterNumber)
		return nil
	}))
}

func TestMemoryEntriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.WithTx(ctx, func(q Queries) error {
		a := &domain.Account{Email: "e@example.com", ReferralCode: "eeee"}
		require.NoError(t, q.CreateAccount(ctx, a))

		for i, kind := range []domain.EntryKind{domain.KindDeposit, domain.KindEarning, domain.KindEarning} {
			e := &domain.LedgerEntry{AccountID: a.ID, Kind: kind, Amount: decimal.NewFromInt(int64(i + 1)), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
			require.NoError(t, q.InsertEntry(ctx, e))
		}

		entries, err := q.ListEntries(ctx, a.ID, 0)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(3)))

		latest, err := q.LatestEntry(ctx, a.ID, domain.KindEarning)
		require.NoError(t, err)
		assert.True(t, latest.Amount.Equal(decimal.NewFromInt(3)))

		none, err := q.LatestEntry(ctx, a.ID, domain.KindReferral)
		require.NoError(t, err)
		assert.Nil(t, none)

		sum, err := q.SumEntries(ctx, a.ID, domain.KindEarning)
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.NewFromInt(5)))
		return nil
	}))
}

func TestMemoryCreateAccountRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.WithTx(ctx, func(q Queries) error {
		require.NoError(t, q.CreateAccount(ctx, &domain.Account{Email: "d@example.com", ReferralCode: "d1"}))
		return q.CreateAccount(ctx, &domain.Account{Email: "d@example.com", ReferralCode: "d2"})
	})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestMemoryCreateAccountRejectsDuplicateReferralCode(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.WithTx(ctx, func(q Queries) error {
		require.NoError(t, q.CreateAccount(ctx, &domain.Account{Email: "r1@example.com", ReferralCode: "same"}))
		return q.CreateAccount(ctx, &domain.Account{Email: "r2@example.com", ReferralCode: "same"})
	})
	assert.ErrorIs(t, err, domain.ErrReferralCodeTaken)
}
