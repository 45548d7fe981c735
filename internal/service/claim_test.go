package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) buy(t *testing.T, accountID, levelID int64) {
	t.Helper()
	req, err := h.svc.Purchase(context.Background(), accountID, levelID)
	require.NoError(t, err)
	_, err = h.svc.ApprovePurchase(context.Background(), req.ID)
	require.NoError(t, err)
}

func TestClaimRequiresHoldings(t *testing.T) {
	h := newDefaultHarness(t)
	a := h.register(t, "idle@example.com", "")

	_, err := h.svc.ClaimDailyYield(context.Background(), a.ID)
	var pe *domain.PreconditionError
	assert.True(t, errors.As(err, &pe))

	entries, err := h.svc.Entries(context.Background(), a.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClaimLifecycle(t *testing.T) {
	h := newDefaultHarness(t)
	ctx := context.Background()
	a := h.register(t, "rider@example.com", "")
	h.fund(t, a.ID, "1500")
	h.buy(t, a.ID, 1)
	h.buy(t, a.ID, 1)
	h.buy(t, a.ID, 2)

	first, err := h.svc.ClaimDailyYield(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, ClaimStarted, first.Status)
	assert.True(t, first.Entry.Amount.IsZero())
	assert.Equal(t, "start", first.Entry.Comment)
	assert.Nil(t, first.Report)

	before := h.account(t, a.ID)
	entriesBefore, err := h.svc.Entries(ctx, a.ID, 0)
	require.NoError(t, err)

	h.clock.Advance(10 * time.Second)
	_, err = h.svc.ClaimDailyYield(ctx, a.ID)
	var ce *domain.CooldownError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 20*time.Second, ce.Remaining)

	rejected := h.account(t, a.ID)
	assert.True(t, rejected.Balance.Equal(before.Balance), "a refused claim leaves the balance alone")
	assert.True(t, rejected.TotalEarned.Equal(before.TotalEarned))
	entriesAfter, err := h.svc.Entries(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Len(t, entriesAfter, len(entriesBefore))
	reports, err := h.svc.DailyReports(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, reports)

	h.clock.Advance(20 * time.Second)
	second, err := h.svc.ClaimDailyYield(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, ClaimCredited, second.Status)
	require.NotNil(t, second.Report)
	assert.Len(t, second.Stats, 3)
	assert.True(t, second.Report.ProfitAmount.IsPositive())
	assert.True(t, second.Entry.Amount.Equal(second.Report.ProfitAmount))
	assert.Equal(t, domain.KindEarning, second.Entry.Kind)

	after := h.account(t, a.ID)
	assert.True(t, after.Balance.Equal(before.Balance.Add(second.Report.ProfitAmount)))
	assert.True(t, after.TotalEarned.Equal(before.TotalEarned.Add(second.Report.ProfitAmount)))
	h.assertBalanced(t, a.ID)

	// Same day again: the report and stats are replaced, not appended.
	h.clock.Advance(time.Minute)
	third, err := h.svc.ClaimDailyYield(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, ClaimCredited, third.Status)

	reports, err = h.svc.DailyReports(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].ProfitAmount.Equal(third.Report.ProfitAmount))

	report, stats, err := h.svc.DailyReport(ctx, a.ID, "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, third.Report.NumberOfTrips, report.NumberOfTrips)
	assert.Len(t, stats, 3)

	assert.Len(t, h.events(notify.KindClaimStarted), 1)
	assert.Len(t, h.events(notify.KindYieldClaimed), 2)
}

func TestDailyReportLookup(t *testing.T) {
	h := newDefaultHarness(t)
	a := h.register(t, "rep@example.com", "")

	_, _, err := h.svc.DailyReport(context.Background(), a.ID, "03/01/2026")
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, _, err = h.svc.DailyReport(context.Background(), a.ID, "")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)
}
