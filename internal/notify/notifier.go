// Package notify delivers ledger notifications to users. Delivery is
// fire-and-forget from the caller's point of view: the ledger logs failures
// and moves on, a lost notification never rolls back a financial write.
package notify

import (
	"context"
	"log/slog"

	"github.com/splitledger/splitledger/internal/models"
)

// Notifier is the delivery interface. Implementations may persist to an
// inbox table, push to a chat platform, send email, etc.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// NotificationStore is the subset of storage the store-backed notifier needs.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// StoreNotifier persists notifications to the user's inbox table.
type StoreNotifier struct {
	store NotificationStore
}

// NewStoreNotifier creates a notifier backed by the given store.
func NewStoreNotifier(store NotificationStore) *StoreNotifier {
	return &StoreNotifier{store: store}
}

// Notify persists the notification.
func (n *StoreNotifier) Notify(ctx context.Context, notification *models.Notification) error {
	return n.store.CreateNotification(ctx, notification)
}

// Send dispatches via the notifier and swallows any error after logging it.
// This is the helper services use for their fire-and-forget side effects.
func Send(ctx context.Context, notifier Notifier, notification *models.Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, notification); err != nil {
		slog.Warn("Notification delivery failed",
			"user_id", notification.UserID,
			"type", notification.Type,
			"error", err,
		)
	}
}
