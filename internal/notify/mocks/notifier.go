// Package mocks provides testify mocks for the notify interfaces.
package mocks

import (
	"context"

	"github.com/punchamoorthee/scooterledger/internal/notify"
	"github.com/stretchr/testify/mock"
)

// Notifier is a mock implementation of notify.Notifier.
type Notifier struct {
	mock.Mock
}

func (m *Notifier) Notify(ctx context.Context, e notify.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// Events returns the events passed to Notify in call order. With kinds
// given, only events of those kinds are returned.
func (m *Notifier) Events(kinds ...notify.EventKind) []notify.Event {
	var out []notify.Event
	for _, c := range m.Calls {
		if c.Method != "Notify" {
			continue
		}
		e, ok := c.Arguments.Get(1).(notify.Event)
		if !ok {
			continue
		}
		if len(kinds) == 0 || containsKind(kinds, e.Kind) {
			out = append(out, e)
		}
	}
	return out
}

func containsKind(kinds []notify.EventKind, k notify.EventKind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}
