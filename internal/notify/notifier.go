package notify

import (
	"context"
	"errors"
)

// Notifier defines the interface for sending user-visible notifications.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// MultiNotifier fans a notification out to several notifiers. Every notifier
// is attempted; failures are aggregated.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

func (m *MultiNotifier) Send(ctx context.Context, title, body string) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoOpNotifier does nothing.
type NoOpNotifier struct{}

func (n *NoOpNotifier) Send(ctx context.Context, title, body string) error {
	return nil
}
