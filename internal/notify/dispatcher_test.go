package notify_test

import (
	"errors"
	"testing"

	"github.com/punchamoorthee/scooterledger/internal/notify"
	"github.com/punchamoorthee/scooterledger/internal/notify/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := new(mocks.Notifier)
	n.On("Notify", mock.Anything, mock.Anything).Return(errors.New("down"))
	d := notify.NewDispatcher(n, zap.New(core))

	d.Dispatch(
		notify.Event{Kind: notify.KindBalanceCredit, AccountID: 7},
		notify.Event{Kind: notify.KindReferralBonus, AccountID: 8},
	)
	d.Wait()

	n.AssertNumberOfCalls(t, "Notify", 2)
	assert.Equal(t, 2, logs.FilterMessage("notification failed").Len())
}

func TestDispatcherDelivers(t *testing.T) {
	n := new(mocks.Notifier)
	n.On("Notify", mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
		return e.Kind == notify.KindClaimStarted && e.AccountID == 1
	})).Return(nil).Once()
	d := notify.NewDispatcher(n, zap.NewNop())

	d.Dispatch(notify.Event{Kind: notify.KindClaimStarted, AccountID: 1})
	d.Wait()

	n.AssertExpectations(t)
	require.Len(t, n.Events(notify.KindClaimStarted), 1)
	assert.Empty(t, n.Events(notify.KindYieldClaimed))
}

func TestDispatcherWithNoEvents(t *testing.T) {
	n := new(mocks.Notifier)
	d := notify.NewDispatcher(n, zap.NewNop())

	d.Dispatch()
	d.Wait()

	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}
