package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/punchamoorthee/scooterledger/internal/config"
	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestWithdrawal(t *testing.T) {
	h := newDefaultHarness(t)
	ctx := context.Background()
	a := h.register(t, "w@example.com", "")
	h.fund(t, a.ID, "100")

	req, err := h.svc.RequestWithdrawal(ctx, a.ID, dec("50"), " TWallet123 ")
	require.NoError(t, err)
	assert.Equal(t, "45.00", req.Amount.StringFixed(2))
	assert.Equal(t, "5.00", req.Commission.StringFixed(2))
	assert.Equal(t, "TWallet123", req.WalletAddress)
	assert.Equal(t, domain.StatusPending, req.Status)
	assert.Equal(t, "50.00", h.balance(t, a.ID))
	h.assertBalanced(t, a.ID)

	entries, err := h.svc.Entries(ctx, a.ID, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.KindWithdraw, entries[0].Kind)
	assert.Equal(t, "-50.00", entries[0].Amount.StringFixed(2))

	requested := h.events(notify.KindWithdrawalRequested)
	require.Len(t, requested, 1)
	assert.Equal(t, "45.00", requested[0].Amount.StringFixed(2))
	assert.Equal(t, "TWallet123", requested[0].Wallet)
}

func TestRequestWithdrawalRules(t *testing.T) {
	h := newDefaultHarness(t)
	ctx := context.Background()
	a := h.register(t, "rules@example.com", "")
	h.fund(t, a.ID, "100")

	var (
		ve *domain.ValidationError
		pe *domain.PreconditionError
	)

	_, err := h.svc.RequestWithdrawal(ctx, a.ID, dec("0"), "w")
	assert.True(t, errors.As(err, &ve))
	_, err = h.svc.RequestWithdrawal(ctx, a.ID, dec("20"), "  ")
	assert.True(t, errors.As(err, &ve))

	_, err = h.svc.RequestWithdrawal(ctx, a.ID, dec("4"), "w")
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, err.Error(), "commission")

	_, err = h.svc.RequestWithdrawal(ctx, a.ID, dec("5"), "w")
	assert.True(t, errors.As(err, &pe), "amount equal to the commission is refused")

	_, err = h.svc.RequestWithdrawal(ctx, a.ID, dec("7"), "w")
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, err.Error(), "minimum")

	_, err = h.svc.RequestWithdrawal(ctx, a.ID, dec("100.01"), "w")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = h.svc.RequestWithdrawal(ctx, 999, dec("20"), "w")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	assert.Equal(t, "100.00", h.balance(t, a.ID), "refused requests leave the balance alone")
}

func TestRequestWithdrawalCooldown(t *testing.T) {
	h := newDefaultHarness(t)
	ctx := context.Background()
	a := h.register(t, "cool@example.com", "")
	h.fund(t, a.ID, "100")

	_, err := h.svc.RequestWithdrawal(ctx, a.ID, dec("20"), "w")
	require.NoError(t, err)

	h.clock.Advance(11 * time.Hour)
	_, err = h.svc.RequestWithdrawal(ctx, a.ID, dec("20"), "w")
	var ce *domain.CooldownError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, time.Hour, ce.Remaining)
	assert.Equal(t, "80.00", h.balance(t, a.ID))

	h.clock.Advance(time.Hour)
	_, err = h.svc.RequestWithdrawal(ctx, a.ID, dec("20"), "w")
	require.NoError(t, err)
	assert.Equal(t, "60.00", h.balance(t, a.ID))
}

func TestTransitionWithdrawal(t *testing.T) {
	h := newDefaultHarness(t)
	ctx := context.Background()
	a := h.register(t, "tw@example.com", "")
	h.fund(t, a.ID, "100")

	rejected, err := h.svc.RequestWithdrawal(ctx, a.ID, dec("50"), "w")
	require.NoError(t, err)

	got, err := h.svc.TransitionWithdrawal(ctx, rejected.ID, domain.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)
	require.NotNil(t, got.ProcessedAt)
	assert.Equal(t, "100.00", h.balance(t, a.ID), "rejection refunds net plus commission")
	h.assertBalanced(t, a.ID)

	again, err := h.svc.TransitionWithdrawal(ctx, rejected.ID, domain.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, again.Status, "terminal requests do not move")
	assert.Equal(t, "100.00", h.balance(t, a.ID))

	h.clock.Advance(12 * time.Hour)
	approved, err := h.svc.RequestWithdrawal(ctx, a.ID, dec("30"), "w")
	require.NoError(t, err)
	got, err = h.svc.TransitionWithdrawal(ctx, approved.ID, domain.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	assert.Equal(t, "70.00", h.balance(t, a.ID), "approval does not touch the balance again")

	_, err = h.svc.TransitionWithdrawal(ctx, approved.ID, domain.StatusPending)
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = h.svc.TransitionWithdrawal(ctx, 999, domain.StatusApproved)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	confirmed := h.events(notify.KindWithdrawalConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "25.00", confirmed[0].Amount.StringFixed(2))
	refunds := h.events(notify.KindWithdrawalRejected)
	require.Len(t, refunds, 1)
	assert.Equal(t, "50.00", refunds[0].Amount.StringFixed(2))

	pending, err := h.svc.Withdrawals(ctx, domain.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
	all, err := h.svc.Withdrawals(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	settings := config.DefaultSettings()
	settings.WithdrawalCooldown = 0
	assertConcurrentWithdrawalsNeverOverdraw(t, newHarness(t, settings, nil), "race@example.com")
}

// assertConcurrentWithdrawalsNeverOverdraw races twelve 20.00 withdrawals
// against a 100.00 balance. Exactly five may succeed.
func assertConcurrentWithdrawalsNeverOverdraw(t *testing.T, h *harness, email string) {
	t.Helper()
	ctx := context.Background()
	a := h.register(t, email, "")
	h.fund(t, a.ID, "100")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.RequestWithdrawal(ctx, a.ID, decimal.NewFromInt(20), "w"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, "0.00", h.balance(t, a.ID))
	h.assertBalanced(t, a.ID)
}
