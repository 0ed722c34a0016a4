package service

import (
	"context"
	"testing"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/storage"
)

func TestCreateExpenseEqualSplit(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	carol := env.createUser(t, "carol@example.com")
	group := env.createGroup(t, alice, bob, carol)

	expense := env.createEqualExpense(t, alice, group.ID, "90.00", alice, bob, carol)

	if len(expense.Splits) != 3 {
		t.Fatalf("got %d splits, want 3", len(expense.Splits))
	}
	for _, s := range expense.Splits {
		if !s.AmountOwed.Equal(mustDec(t, "30.00")) {
			t.Errorf("%s owed = %s, want 30.00", s.UserID, s.AmountOwed)
		}
	}

	payerSplit := findSplit(t, expense, alice.ID)
	if !payerSplit.IsSettled {
		t.Error("payer's split should be created settled")
	}
	if !payerSplit.AmountPaid.Equal(payerSplit.AmountOwed) {
		t.Errorf("payer paid = %s, want %s", payerSplit.AmountPaid, payerSplit.AmountOwed)
	}
	if payerSplit.SettledAt == nil {
		t.Error("payer's split should carry a settled timestamp")
	}

	bobSplit := findSplit(t, expense, bob.ID)
	if bobSplit.IsSettled {
		t.Error("non-payer split should start unsettled")
	}
	if !bobSplit.AmountPaid.IsZero() {
		t.Errorf("non-payer paid = %s, want 0", bobSplit.AmountPaid)
	}

	if expense.IsSettled {
		t.Error("expense with outstanding splits should not be settled")
	}
}

func TestCreateExpenseExactAmountsMustReconcile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	a := mustDec(t, "40.00")
	b := mustDec(t, "40.00")
	_, err := env.expenses.CreateExpense(ctx, alice.ID, group.ID, CreateExpenseInput{
		Name:        "Dinner",
		TotalAmount: mustDec(t, "100.00"),
		SplitMethod: models.SplitExact,
		Shares: []ShareInput{
			{UserID: alice.ID, Amount: &a},
			{UserID: bob.ID, Amount: &b},
		},
	})
	wantKind(t, err, KindBadRequest)

	// The failed create must leave nothing behind.
	expenses, err := env.expenses.ListExpenses(ctx, alice.ID, group.ID, storage.ExpenseFilter{})
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(expenses) != 0 {
		t.Errorf("got %d expenses after failed create, want 0", len(expenses))
	}
}

func TestCreateExpenseRejectsNonMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	mallory := env.createUser(t, "mallory@example.com")
	group := env.createGroup(t, alice)

	// Non-member actor.
	_, err := env.expenses.CreateExpense(ctx, mallory.ID, group.ID, CreateExpenseInput{
		Name:        "Sneaky",
		TotalAmount: mustDec(t, "10.00"),
		SplitMethod: models.SplitEqual,
		Shares:      []ShareInput{{UserID: mallory.ID}},
	})
	wantKind(t, err, KindForbidden)

	// Non-member participant.
	_, err = env.expenses.CreateExpense(ctx, alice.ID, group.ID, CreateExpenseInput{
		Name:        "Dinner",
		TotalAmount: mustDec(t, "10.00"),
		SplitMethod: models.SplitEqual,
		Shares:      []ShareInput{{UserID: alice.ID}, {UserID: mallory.ID}},
	})
	wantKind(t, err, KindBadRequest)
}

func TestCreateExpenseRejectsSharesMethod(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")
	group := env.createGroup(t, alice)

	_, err := env.expenses.CreateExpense(context.Background(), alice.ID, group.ID, CreateExpenseInput{
		Name:        "Dinner",
		TotalAmount: mustDec(t, "10.00"),
		SplitMethod: models.SplitShares,
		Shares:      []ShareInput{{UserID: alice.ID}},
	})
	wantKind(t, err, KindBadRequest)
}

func TestUpdateExpenseAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	carol := env.createUser(t, "carol@example.com")
	group := env.createGroup(t, alice, bob, carol)

	expense := env.createEqualExpense(t, bob, group.ID, "30.00", alice, bob, carol)

	// Carol is a plain member and not the payer.
	name := "Renamed"
	_, err := env.expenses.UpdateExpense(ctx, carol.ID, expense.ID, UpdateExpenseInput{Name: &name})
	wantKind(t, err, KindForbidden)

	// The payer can update.
	updated, err := env.expenses.UpdateExpense(ctx, bob.ID, expense.ID, UpdateExpenseInput{Name: &name})
	if err != nil {
		t.Fatalf("payer update failed: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("name = %s, want Renamed", updated.Name)
	}

	// So can a group admin.
	notes := "checked"
	if _, err := env.expenses.UpdateExpense(ctx, alice.ID, expense.ID, UpdateExpenseInput{Notes: &notes}); err != nil {
		t.Fatalf("admin update failed: %v", err)
	}
}

func TestDeleteExpenseBlockedAfterSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	expense := env.createEqualExpense(t, alice, group.ID, "20.00", alice, bob)
	bobSplit := findSplit(t, expense, bob.ID)

	if _, err := env.expenses.SettleSplit(ctx, bob.ID, bobSplit.ID); err != nil {
		t.Fatalf("SettleSplit failed: %v", err)
	}

	err := env.expenses.DeleteExpense(ctx, alice.ID, expense.ID)
	wantKind(t, err, KindBadRequest)
}

func TestDeleteExpense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	expense := env.createEqualExpense(t, alice, group.ID, "20.00", alice, bob)

	if err := env.expenses.DeleteExpense(ctx, alice.ID, expense.ID); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	_, err := env.expenses.GetExpense(ctx, alice.ID, expense.ID)
	wantKind(t, err, KindNotFound)
}

func TestSettleSplit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	expense := env.createEqualExpense(t, alice, group.ID, "20.00", alice, bob)
	bobSplit := findSplit(t, expense, bob.ID)

	settled, err := env.expenses.SettleSplit(ctx, bob.ID, bobSplit.ID)
	if err != nil {
		t.Fatalf("SettleSplit failed: %v", err)
	}
	if !settled.IsSettled {
		t.Error("split should be settled")
	}
	if !settled.AmountPaid.Equal(settled.AmountOwed) {
		t.Errorf("paid = %s, want %s", settled.AmountPaid, settled.AmountOwed)
	}

	// All splits settled: the expense cache should flip.
	reloaded, err := env.expenses.GetExpense(ctx, alice.ID, expense.ID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if !reloaded.IsSettled {
		t.Error("expense should be settled once every split is")
	}

	// Settling twice is rejected.
	_, err = env.expenses.SettleSplit(ctx, bob.ID, bobSplit.ID)
	wantKind(t, err, KindBadRequest)
}

func TestSettleSplitAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	carol := env.createUser(t, "carol@example.com")
	group := env.createGroup(t, alice, bob, carol)

	// Bob pays so alice (admin), bob (payer) and carol (debtor) all have a stake.
	expense := env.createEqualExpense(t, bob, group.ID, "30.00", bob, carol)
	carolSplit := findSplit(t, expense, carol.ID)

	outsider := env.createUser(t, "mallory@example.com")
	_, err := env.expenses.SettleSplit(ctx, outsider.ID, carolSplit.ID)
	wantKind(t, err, KindForbidden)

	if _, err := env.expenses.SettleSplit(ctx, alice.ID, carolSplit.ID); err != nil {
		t.Fatalf("admin settle failed: %v", err)
	}
}

func TestPaySplitPartial(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	expense := env.createEqualExpense(t, alice, group.ID, "20.00", alice, bob)
	bobSplit := findSplit(t, expense, bob.ID)

	paid, err := env.expenses.PaySplit(ctx, bob.ID, bobSplit.ID, mustDec(t, "4.00"))
	if err != nil {
		t.Fatalf("PaySplit failed: %v", err)
	}
	if paid.IsSettled {
		t.Error("partially paid split should not be settled")
	}
	if !paid.AmountPaid.Equal(mustDec(t, "4.00")) {
		t.Errorf("paid = %s, want 4.00", paid.AmountPaid)
	}

	// Paying more than outstanding is rejected.
	_, err = env.expenses.PaySplit(ctx, bob.ID, bobSplit.ID, mustDec(t, "7.00"))
	wantKind(t, err, KindBadRequest)

	// Paying exactly the remainder settles.
	paid, err = env.expenses.PaySplit(ctx, bob.ID, bobSplit.ID, mustDec(t, "6.00"))
	if err != nil {
		t.Fatalf("PaySplit failed: %v", err)
	}
	if !paid.IsSettled {
		t.Error("fully paid split should be settled")
	}

	// Zero and negative payments are rejected.
	_, err = env.expenses.PaySplit(ctx, bob.ID, bobSplit.ID, mustDec(t, "0.00"))
	wantKind(t, err, KindBadRequest)
	_, err = env.expenses.PaySplit(ctx, bob.ID, bobSplit.ID, mustDec(t, "-1.00"))
	wantKind(t, err, KindBadRequest)
}

func TestListExpensesFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	first := env.createEqualExpense(t, alice, group.ID, "20.00", alice, bob)
	env.createEqualExpense(t, alice, group.ID, "30.00", alice, bob)

	bobSplit := findSplit(t, first, bob.ID)
	if _, err := env.expenses.SettleSplit(ctx, bob.ID, bobSplit.ID); err != nil {
		t.Fatalf("SettleSplit failed: %v", err)
	}

	settled := true
	got, err := env.expenses.ListExpenses(ctx, alice.ID, group.ID, storage.ExpenseFilter{IsSettled: &settled})
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != first.ID {
		t.Errorf("settled filter returned %d expenses, want just %s", len(got), first.ID)
	}

	unsettled := false
	got, err = env.expenses.ListExpenses(ctx, alice.ID, group.ID, storage.ExpenseFilter{IsSettled: &unsettled})
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("unsettled filter returned %d expenses, want 1", len(got))
	}
}

func TestGetUserExpenses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	env.createEqualExpense(t, alice, group.ID, "20.00", alice, bob)
	env.createEqualExpense(t, bob, group.ID, "40.00", alice, bob)

	summary, err := env.expenses.GetUserExpenses(ctx, bob.ID, group.ID)
	if err != nil {
		t.Fatalf("GetUserExpenses failed: %v", err)
	}
	if len(summary.ExpensesPaid) != 1 {
		t.Errorf("bob paid %d expenses, want 1", len(summary.ExpensesPaid))
	}
	if len(summary.DebtsOwed) != 1 {
		t.Errorf("bob owes %d splits, want 1", len(summary.DebtsOwed))
	}
	if !summary.TotalOwed.Equal(mustDec(t, "10.00")) {
		t.Errorf("bob total owed = %s, want 10.00", summary.TotalOwed)
	}
}

func TestNotificationsWrittenOnExpense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	env.createEqualExpense(t, alice, group.ID, "20.00", alice, bob)

	notifications, err := env.store.ListNotificationsByUser(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListNotificationsByUser failed: %v", err)
	}
	var found bool
	for _, n := range notifications {
		if n.Type == models.NotifyGroupExpenseCreated {
			found = true
		}
	}
	if !found {
		t.Error("bob should have an expense notification")
	}

	// The payer gets none for their own expense.
	own, err := env.store.ListNotificationsByUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListNotificationsByUser failed: %v", err)
	}
	for _, n := range own {
		if n.Type == models.NotifyGroupExpenseCreated {
			t.Error("payer should not be notified about their own expense")
		}
	}
}
