package service

import (
	"context"
	"testing"
	"time"

	"github.com/splitledger/splitledger/internal/models"
)

// createDatedExpense records an equal-split expense with an explicit date so
// distribution ordering is deterministic.
func (e *testEnv) createDatedExpense(t *testing.T, payer *models.User, groupID, total string, date time.Time, participants ...*models.User) *models.GroupExpense {
	t.Helper()

	shares := make([]ShareInput, len(participants))
	for i, p := range participants {
		shares[i] = ShareInput{UserID: p.ID}
	}
	expense, err := e.expenses.CreateExpense(context.Background(), payer.ID, groupID, CreateExpenseInput{
		Name:        "Dated Expense",
		TotalAmount: mustDec(t, total),
		SplitMethod: models.SplitEqual,
		ExpenseDate: &date,
		Shares:      shares,
	})
	if err != nil {
		t.Fatalf("failed to create expense: %v", err)
	}
	return expense
}

func TestCreateSettlementRetiresOldestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	day1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	// Bob owes 30.00 on the older expense and 20.00 on the newer one.
	older := env.createDatedExpense(t, alice, group.ID, "60.00", day1, alice, bob)
	newer := env.createDatedExpense(t, alice, group.ID, "40.00", day2, alice, bob)

	result, err := env.settlements.CreateSettlement(ctx, bob.ID, group.ID, CreateSettlementInput{
		Amount:        mustDec(t, "45.00"),
		PaymentMethod: "cash",
	})
	if err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}
	if len(result.Splits) != 2 {
		t.Fatalf("settlement touched %d splits, want 2", len(result.Splits))
	}

	oldSplit, err := env.store.GetSplit(ctx, findSplit(t, older, bob.ID).ID)
	if err != nil {
		t.Fatalf("GetSplit failed: %v", err)
	}
	if !oldSplit.IsSettled {
		t.Error("older split should be fully retired")
	}
	if !oldSplit.AmountPaid.Equal(mustDec(t, "30.00")) {
		t.Errorf("older split paid = %s, want 30.00", oldSplit.AmountPaid)
	}

	newSplit, err := env.store.GetSplit(ctx, findSplit(t, newer, bob.ID).ID)
	if err != nil {
		t.Fatalf("GetSplit failed: %v", err)
	}
	if newSplit.IsSettled {
		t.Error("newer split should remain unsettled")
	}
	if !newSplit.AmountPaid.Equal(mustDec(t, "15.00")) {
		t.Errorf("newer split paid = %s, want 15.00", newSplit.AmountPaid)
	}
}

func TestCreateSettlementExactPayoff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	expense := env.createEqualExpense(t, alice, group.ID, "90.00", alice, bob)

	// Bob owes 45.00; paying it all nets him out.
	if _, err := env.settlements.CreateSettlement(ctx, bob.ID, group.ID, CreateSettlementInput{
		Amount: mustDec(t, "45.00"),
	}); err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}

	balances, err := env.reports.GetGroupBalances(ctx, alice.ID, group.ID)
	if err != nil {
		t.Fatalf("GetGroupBalances failed: %v", err)
	}
	for _, b := range balances {
		if b.UserID == bob.ID && !b.NetBalance.IsZero() {
			t.Errorf("bob net = %s, want 0", b.NetBalance)
		}
		if b.UserID == alice.ID && !b.NetBalance.Equal(mustDec(t, "45.00")) {
			t.Errorf("alice net = %s, want 45.00", b.NetBalance)
		}
	}

	reloaded, err := env.expenses.GetExpense(ctx, alice.ID, expense.ID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if !reloaded.IsSettled {
		t.Error("expense should be settled after full payoff")
	}
}

func TestCreateSettlementOverpaymentRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	expense := env.createEqualExpense(t, alice, group.ID, "20.00", alice, bob)

	// Bob owes 10.00; 15.00 exceeds it and must change nothing.
	_, err := env.settlements.CreateSettlement(ctx, bob.ID, group.ID, CreateSettlementInput{
		Amount: mustDec(t, "15.00"),
	})
	wantKind(t, err, KindBadRequest)

	split, err := env.store.GetSplit(ctx, findSplit(t, expense, bob.ID).ID)
	if err != nil {
		t.Fatalf("GetSplit failed: %v", err)
	}
	if !split.AmountPaid.IsZero() {
		t.Errorf("split paid = %s after rejected settlement, want 0", split.AmountPaid)
	}

	settlements, err := env.settlements.ListSettlements(ctx, alice.ID, group.ID)
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}
	if len(settlements) != 0 {
		t.Errorf("got %d settlements after rejection, want 0", len(settlements))
	}
}

func TestCreateSettlementSelfOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	env.createEqualExpense(t, alice, group.ID, "20.00", alice, bob)

	_, err := env.settlements.CreateSettlement(ctx, alice.ID, group.ID, CreateSettlementInput{
		PayerID: bob.ID,
		Amount:  mustDec(t, "10.00"),
	})
	wantKind(t, err, KindBadRequest)
}

func TestCreateSettlementValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)
	env.createEqualExpense(t, alice, group.ID, "20.00", alice, bob)

	_, err := env.settlements.CreateSettlement(ctx, bob.ID, group.ID, CreateSettlementInput{
		Amount: mustDec(t, "0.00"),
	})
	wantKind(t, err, KindBadRequest)

	_, err = env.settlements.CreateSettlement(ctx, bob.ID, "missing-group", CreateSettlementInput{
		Amount: mustDec(t, "5.00"),
	})
	wantKind(t, err, KindNotFound)

	outsider := env.createUser(t, "mallory@example.com")
	_, err = env.settlements.CreateSettlement(ctx, outsider.ID, group.ID, CreateSettlementInput{
		Amount: mustDec(t, "5.00"),
	})
	wantKind(t, err, KindForbidden)
}

func TestSettlementHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)

	env.createEqualExpense(t, alice, group.ID, "60.00", alice, bob)

	if _, err := env.settlements.CreateSettlement(ctx, bob.ID, group.ID, CreateSettlementInput{
		Amount: mustDec(t, "10.00"),
	}); err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}
	if _, err := env.settlements.CreateSettlement(ctx, bob.ID, group.ID, CreateSettlementInput{
		Amount: mustDec(t, "5.00"),
	}); err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}

	history, err := env.settlements.GetUserHistory(ctx, alice.ID, group.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetUserHistory failed: %v", err)
	}
	if len(history.Settlements) != 2 {
		t.Errorf("got %d settlements, want 2", len(history.Settlements))
	}
	if !history.TotalPaid.Equal(mustDec(t, "15.00")) {
		t.Errorf("total paid = %s, want 15.00", history.TotalPaid)
	}
	if !history.Outstanding.Equal(mustDec(t, "15.00")) {
		t.Errorf("outstanding = %s, want 15.00", history.Outstanding)
	}
}

func TestUpdateSettlementPayerOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	group := env.createGroup(t, alice, bob)
	env.createEqualExpense(t, alice, group.ID, "20.00", alice, bob)

	result, err := env.settlements.CreateSettlement(ctx, bob.ID, group.ID, CreateSettlementInput{
		Amount: mustDec(t, "10.00"),
	})
	if err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}
	id := result.Settlement.ID

	notes := "venmo ref 123"
	_, err = env.settlements.UpdateSettlement(ctx, alice.ID, id, UpdateSettlementInput{Notes: &notes})
	wantKind(t, err, KindForbidden)

	updated, err := env.settlements.UpdateSettlement(ctx, bob.ID, id, UpdateSettlementInput{Notes: &notes})
	if err != nil {
		t.Fatalf("UpdateSettlement failed: %v", err)
	}
	if updated.Notes != notes {
		t.Errorf("notes = %q, want %q", updated.Notes, notes)
	}
	if !updated.Amount.Equal(mustDec(t, "10.00")) {
		t.Errorf("amount changed to %s, want 10.00", updated.Amount)
	}

	err = env.settlements.DeleteSettlement(ctx, alice.ID, id)
	wantKind(t, err, KindForbidden)

	if err := env.settlements.DeleteSettlement(ctx, bob.ID, id); err != nil {
		t.Fatalf("DeleteSettlement failed: %v", err)
	}
	_, err = env.settlements.GetSettlement(ctx, bob.ID, id)
	wantKind(t, err, KindNotFound)
}
