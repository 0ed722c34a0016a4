// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
)

// Sentinel errors returned by Store implementations. The service layer maps
// these onto its error taxonomy; invariant checks that must hold under
// concurrency (last-admin, overpayment, payment-exceeds-debt) are enforced
// inside the store's transactions and surface as these errors.
var (
	ErrNotFound = errors.New("not found")

	// ErrLastAdmin is returned when deactivating a membership would leave the
	// group without an active admin.
	ErrLastAdmin = errors.New("group must retain at least one active admin")

	// ErrPaymentExceedsDebt is returned when a payment applied to a single
	// split exceeds its outstanding balance.
	ErrPaymentExceedsDebt = errors.New("payment exceeds amount owed")

	// ErrExcessSettlement is returned when a settlement amount exceeds the
	// payer's total outstanding debt in the group.
	ErrExcessSettlement = errors.New("settlement exceeds outstanding debt")

	// ErrHasDependents is returned when deleting a group that still owns
	// expenses or settlements.
	ErrHasDependents = errors.New("group has expenses or settlements")
)

// ExpenseFilter narrows an expense listing.
type ExpenseFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	IsSettled *bool
}

// SplitWithExpense pairs a split with the expense it belongs to, for views
// that need both (debt listings, settlement ordering).
type SplitWithExpense struct {
	Split   *models.Split        `json:"split"`
	Expense *models.GroupExpense `json:"expense"`
}

// Store defines the interface for ledger storage operations. This abstraction
// allows swapping storage backends (SQLite, PostgreSQL, etc.) without changing
// the service layer.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Groups. CreateGroup persists the group and its first admin membership
	// atomically. DeleteGroup fails with ErrHasDependents while the group owns
	// expenses or settlements.
	CreateGroup(ctx context.Context, group *models.Group, creator *models.Member) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	UpdateGroup(ctx context.Context, group *models.Group) error
	DeleteGroup(ctx context.Context, groupID string) error
	ListGroupsByUser(ctx context.Context, userID string) ([]*models.Group, error)

	// Memberships. GetMembership looks up by (group, user) regardless of the
	// active flag so soft-deleted rows can be reactivated. DeactivateMember
	// enforces the last-admin invariant transactionally.
	CreateMember(ctx context.Context, member *models.Member) error
	GetMember(ctx context.Context, groupID, memberID string) (*models.Member, error)
	GetMembership(ctx context.Context, groupID, userID string) (*models.Member, error)
	ListMembers(ctx context.Context, groupID string) ([]*models.Member, error)
	UpdateMember(ctx context.Context, member *models.Member) error
	DeactivateMember(ctx context.Context, groupID, memberID string) error

	// Expenses. CreateExpense persists the expense row and all split rows in
	// one transaction; on any failure nothing is written. GetExpense and the
	// listings load nested splits.
	CreateExpense(ctx context.Context, expense *models.GroupExpense, splits []*models.Split) error
	GetExpense(ctx context.Context, expenseID string) (*models.GroupExpense, error)
	ListExpensesByGroup(ctx context.Context, groupID string, filter ExpenseFilter) ([]*models.GroupExpense, error)
	ListExpensesPaidBy(ctx context.Context, groupID, userID string) ([]*models.GroupExpense, error)
	UpdateExpense(ctx context.Context, expense *models.GroupExpense) error
	DeleteExpense(ctx context.Context, expenseID string) error

	// Splits. SettleSplit marks a split fully paid; ApplySplitPayment adds a
	// partial payment, failing with ErrPaymentExceedsDebt when the amount
	// exceeds the outstanding balance. Both refresh the owning expense's
	// settled cache in the same transaction.
	GetSplit(ctx context.Context, splitID string) (*models.Split, error)
	ListSplitsByExpense(ctx context.Context, expenseID string) ([]*models.Split, error)
	ListUnsettledDebts(ctx context.Context, groupID, userID string) ([]SplitWithExpense, error)
	ListUnsettledSplitsByUser(ctx context.Context, userID string) ([]SplitWithExpense, error)
	SettleSplit(ctx context.Context, splitID string) (*models.Split, error)
	ApplySplitPayment(ctx context.Context, splitID string, amount decimal.Decimal) (*models.Split, error)

	// Settlements. CreateSettlement inserts the settlement row and greedily
	// retires the payer's outstanding splits (oldest expense first) in a
	// single transaction, returning the splits it touched. It fails with
	// ErrExcessSettlement when the amount exceeds the total outstanding.
	CreateSettlement(ctx context.Context, settlement *models.Settlement) ([]*models.Split, error)
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)
	ListSettlementsByUser(ctx context.Context, groupID, userID string) ([]*models.Settlement, error)
	UpdateSettlement(ctx context.Context, settlement *models.Settlement) error
	DeleteSettlement(ctx context.Context, settlementID string) error

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotificationsByUser(ctx context.Context, userID string) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID string) error

	// Close releases any resources held by the store.
	Close() error
}
