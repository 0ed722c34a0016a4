package models

import "time"

// NotificationType names the event a notification was raised for.
type NotificationType string

const (
	NotifyGroupExpenseCreated NotificationType = "group_expense_created"
	NotifySettlementRecorded  NotificationType = "settlement_recorded"
	NotifyMemberAdded         NotificationType = "member_added"
)

// Notification is a message queued for a user by the ledger. Delivery is
// fire-and-forget; a failed write never fails the operation that raised it.
type Notification struct {
	// ID is the unique identifier for the notification (UUID format).
	ID string `json:"notification_id"`

	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	ActionURL string           `json:"action_url,omitempty"`

	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
