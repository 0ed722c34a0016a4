package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/notify"
	"github.com/splitledger/splitledger/internal/storage"
	"github.com/splitledger/splitledger/internal/storage/sqlite"
)

// testEnv wires the services against a throwaway sqlite database.
type testEnv struct {
	store       storage.Store
	groups      *GroupService
	expenses    *ExpenseService
	settlements *SettlementService
	reports     *ReportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	notifier := notify.NewStoreNotifier(store)
	groups := NewGroupService(store, notifier)
	return &testEnv{
		store:       store,
		groups:      groups,
		expenses:    NewExpenseService(store, groups, notifier),
		settlements: NewSettlementService(store, groups, notifier),
		reports:     NewReportService(store, groups),
	}
}

func (e *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := models.NewUser(email, "Test User", "hash")
	if err := e.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return user
}

// createGroup creates a group owned by admin and adds the other users as
// regular members.
func (e *testEnv) createGroup(t *testing.T, admin *models.User, members ...*models.User) *models.Group {
	t.Helper()
	ctx := context.Background()

	group, err := e.groups.CreateGroup(ctx, admin.ID, CreateGroupInput{
		Name: "Test Group",
		Type: models.GroupTypeRoommates,
	})
	if err != nil {
		t.Fatalf("failed to create group: %v", err)
	}
	for _, m := range members {
		if _, err := e.groups.AddMember(ctx, admin.ID, group.ID, AddMemberInput{UserID: m.ID}); err != nil {
			t.Fatalf("failed to add member %s: %v", m.Email, err)
		}
	}
	return group
}

// createEqualExpense records an equal-split expense paid by payer covering
// all the given participants.
func (e *testEnv) createEqualExpense(t *testing.T, payer *models.User, groupID, total string, participants ...*models.User) *models.GroupExpense {
	t.Helper()

	shares := make([]ShareInput, len(participants))
	for i, p := range participants {
		shares[i] = ShareInput{UserID: p.ID}
	}
	expense, err := e.expenses.CreateExpense(context.Background(), payer.ID, groupID, CreateExpenseInput{
		Name:        "Test Expense",
		TotalAmount: mustDec(t, total),
		SplitMethod: models.SplitEqual,
		Shares:      shares,
	})
	if err != nil {
		t.Fatalf("failed to create expense: %v", err)
	}
	return expense
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("error kind = %v, want %v (error: %v)", got, kind, err)
	}
}

func findSplit(t *testing.T, expense *models.GroupExpense, userID string) *models.Split {
	t.Helper()
	for _, s := range expense.Splits {
		if s.UserID == userID {
			return s
		}
	}
	t.Fatalf("no split for user %s", userID)
	return nil
}
