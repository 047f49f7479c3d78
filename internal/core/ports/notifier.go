package ports

import (
	"context"
	"errors"
)

// ErrNotifyQueueFull is returned when an asynchronous notifier cannot
// accept more work without blocking the caller.
var ErrNotifyQueueFull = errors.New("notification queue full")

// NotificationKind identifies the lifecycle event being announced.
type NotificationKind string

const (
	NotifyWelcome         NotificationKind = "welcome"
	NotifyExpiryWarning   NotificationKind = "expiry_warning"
	NotifyAccountDisabled NotificationKind = "account_disabled"
)

// Notifier triggers user-facing notifications. Fire-and-forget from this
// subsystem's view: delivery failures never affect the triggering flow.
// Concrete channels (email, webhooks) live outside this repository.
type Notifier interface {
	Notify(ctx context.Context, kind NotificationKind, userID string, params map[string]string) error
}
