package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/calculator"
	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/notify"
	"github.com/splitledger/splitledger/internal/storage"
)

// ExpenseService is the expense ledger: it records shared expenses, computes
// and persists their per-member splits, and applies payments to individual
// splits.
type ExpenseService struct {
	store    storage.Store
	groups   *GroupService
	notifier notify.Notifier
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(store storage.Store, groups *GroupService, notifier notify.Notifier) *ExpenseService {
	return &ExpenseService{store: store, groups: groups, notifier: notifier}
}

// ShareInput is one member's entry in an expense request. Amount is read for
// exact_amounts splits, Percentage for percentage splits; equal splits need
// only the user id.
type ShareInput struct {
	UserID     string           `json:"user_id"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
}

// CreateExpenseInput carries the fields for a new expense.
type CreateExpenseInput struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Currency    string             `json:"currency"`
	CategoryID  string             `json:"category_id"`
	SplitMethod models.SplitMethod `json:"split_method"`
	ExpenseDate *time.Time         `json:"expense_date"`
	ReceiptURL  string             `json:"receipt_url"`
	Notes       string             `json:"notes"`
	Shares      []ShareInput       `json:"shares"`
}

// CreateExpense records an expense paid by the actor and its computed splits
// in one atomic write. Every participant must be an active group member, the
// computed splits must reconcile with the total, and the payer's own split is
// created already settled. On any validation failure nothing is persisted.
func (s *ExpenseService) CreateExpense(ctx context.Context, actorID, groupID string, in CreateExpenseInput) (*models.GroupExpense, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, groupLookupErr(groupID, err)
	}
	if err := s.groups.requireMember(ctx, actorID, groupID); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, BadRequest("expense name is required")
	}
	if !in.SplitMethod.Valid() {
		return nil, BadRequest("unknown split method %q", in.SplitMethod)
	}
	if len(in.Shares) == 0 {
		return nil, BadRequest("at least one participant is required")
	}

	shares := make([]calculator.MemberShare, len(in.Shares))
	for i, sh := range in.Shares {
		ok, err := s.groups.IsMember(ctx, sh.UserID, groupID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, BadRequest("user %s is not an active member of this group", sh.UserID)
		}
		shares[i] = calculator.MemberShare{
			UserID:     sh.UserID,
			Amount:     sh.Amount,
			Percentage: sh.Percentage,
		}
	}

	computed, err := calculator.ComputeSplits(in.SplitMethod, in.TotalAmount, actorID, shares)
	if err != nil {
		return nil, BadRequest("%s", err)
	}
	if err := calculator.CheckReconciles(in.TotalAmount, computed); err != nil {
		return nil, BadRequest("%s", err)
	}

	now := time.Now().UTC()
	expenseDate := now
	if in.ExpenseDate != nil {
		expenseDate = in.ExpenseDate.UTC()
	}
	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}

	expense := &models.GroupExpense{
		GroupID:     groupID,
		PaidByID:    actorID,
		Name:        in.Name,
		Description: in.Description,
		TotalAmount: in.TotalAmount,
		Currency:    currency,
		CategoryID:  in.CategoryID,
		SplitMethod: in.SplitMethod,
		ExpenseDate: expenseDate,
		ReceiptURL:  in.ReceiptURL,
		Notes:       in.Notes,
	}

	splits := make([]*models.Split, len(computed))
	for i, c := range computed {
		split := &models.Split{
			UserID:     c.UserID,
			AmountOwed: c.AmountOwed,
			AmountPaid: decimal.Zero,
		}
		// The payer fronted the money; their share carries no debt.
		if c.UserID == actorID {
			split.AmountPaid = c.AmountOwed
			split.IsSettled = true
			settled := now
			split.SettledAt = &settled
		}
		splits[i] = split
	}

	if err := s.store.CreateExpense(ctx, expense, splits); err != nil {
		slog.Error("CreateExpense failed", "group_id", groupID, "actor", actorID, "error", err)
		return nil, Internal(err)
	}

	metrics.ExpensesCreated.WithLabelValues(string(expense.SplitMethod)).Inc()
	slog.Info("Expense created",
		"expense_id", expense.ID,
		"group_id", groupID,
		"paid_by", actorID,
		"total", expense.TotalAmount,
		"method", expense.SplitMethod)

	for _, sp := range splits {
		if sp.UserID == actorID {
			continue
		}
		notify.Send(ctx, s.notifier, &models.Notification{
			UserID:    sp.UserID,
			Type:      models.NotifyGroupExpenseCreated,
			Title:     "New Group Expense",
			Message:   fmt.Sprintf("You owe %s for %q", sp.AmountOwed.StringFixed(2), expense.Name),
			ActionURL: fmt.Sprintf("/groups/%s/expenses/%s", groupID, expense.ID),
		})
	}

	return expense, nil
}

// GetExpense retrieves an expense with its splits; the actor must be a group
// member.
func (s *ExpenseService) GetExpense(ctx context.Context, actorID, expenseID string) (*models.GroupExpense, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, expenseLookupErr(expenseID, err)
	}
	if err := s.groups.requireMember(ctx, actorID, expense.GroupID); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpenses retrieves a group's expenses, newest first, optionally
// filtered by date range and settled state; member-only.
func (s *ExpenseService) ListExpenses(ctx context.Context, actorID, groupID string, filter storage.ExpenseFilter) ([]*models.GroupExpense, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, groupLookupErr(groupID, err)
	}
	if err := s.groups.requireMember(ctx, actorID, groupID); err != nil {
		return nil, err
	}
	expenses, err := s.store.ListExpensesByGroup(ctx, groupID, filter)
	if err != nil {
		return nil, Internal(err)
	}
	return expenses, nil
}

// UpdateExpenseInput carries the mutable expense fields; nil means unchanged.
// Amounts and splits are immutable after creation; correcting an amount means
// deleting and re-creating the expense.
type UpdateExpenseInput struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	CategoryID  *string    `json:"category_id"`
	ExpenseDate *time.Time `json:"expense_date"`
	ReceiptURL  *string    `json:"receipt_url"`
	Notes       *string    `json:"notes"`
}

// UpdateExpense updates an expense's descriptive fields. Only the payer or a
// group admin may update.
func (s *ExpenseService) UpdateExpense(ctx context.Context, actorID, expenseID string, in UpdateExpenseInput) (*models.GroupExpense, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, expenseLookupErr(expenseID, err)
	}
	if err := s.requirePayerOrAdmin(ctx, actorID, expense); err != nil {
		return nil, err
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, BadRequest("expense name cannot be empty")
		}
		expense.Name = *in.Name
	}
	if in.Description != nil {
		expense.Description = *in.Description
	}
	if in.CategoryID != nil {
		expense.CategoryID = *in.CategoryID
	}
	if in.ExpenseDate != nil {
		expense.ExpenseDate = in.ExpenseDate.UTC()
	}
	if in.ReceiptURL != nil {
		expense.ReceiptURL = *in.ReceiptURL
	}
	if in.Notes != nil {
		expense.Notes = *in.Notes
	}

	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		return nil, Internal(err)
	}
	slog.Info("Expense updated", "expense_id", expenseID, "actor", actorID)
	return expense, nil
}

// DeleteExpense removes an expense and its splits. Only the payer or a group
// admin may delete, and not once any non-payer split has been settled, which
// would orphan settlement history.
func (s *ExpenseService) DeleteExpense(ctx context.Context, actorID, expenseID string) error {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return expenseLookupErr(expenseID, err)
	}
	if err := s.requirePayerOrAdmin(ctx, actorID, expense); err != nil {
		return err
	}

	for _, sp := range expense.Splits {
		if sp.UserID == expense.PaidByID {
			continue
		}
		if sp.IsSettled {
			return BadRequest("expense has settled splits and cannot be deleted")
		}
	}

	if err := s.store.DeleteExpense(ctx, expenseID); err != nil {
		return Internal(err)
	}
	slog.Info("Expense deleted", "expense_id", expenseID, "actor", actorID)
	return nil
}

// SettleSplit marks a split fully paid. The split's debtor, the expense's
// payer, or a group admin may settle.
func (s *ExpenseService) SettleSplit(ctx context.Context, actorID, splitID string) (*models.Split, error) {
	split, expense, err := s.loadSplit(ctx, splitID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSplitParty(ctx, actorID, split, expense); err != nil {
		return nil, err
	}
	if split.IsSettled {
		return nil, BadRequest("split is already settled")
	}

	updated, err := s.store.SettleSplit(ctx, splitID)
	if err != nil {
		return nil, Internal(err)
	}
	slog.Info("Split settled", "split_id", splitID, "actor", actorID)
	return updated, nil
}

// PaySplit applies a partial payment to a split. The payment must be positive
// and must not exceed the split's outstanding balance; a payment that covers
// the remainder settles the split.
func (s *ExpenseService) PaySplit(ctx context.Context, actorID, splitID string, amount decimal.Decimal) (*models.Split, error) {
	if !amount.IsPositive() {
		return nil, BadRequest("payment amount must be positive")
	}
	split, expense, err := s.loadSplit(ctx, splitID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSplitParty(ctx, actorID, split, expense); err != nil {
		return nil, err
	}

	updated, err := s.store.ApplySplitPayment(ctx, splitID, amount)
	switch {
	case err == nil:
		slog.Info("Split payment applied", "split_id", splitID, "amount", amount, "actor", actorID)
		return updated, nil
	case errors.Is(err, storage.ErrPaymentExceedsDebt):
		return nil, BadRequest("payment %s exceeds outstanding balance %s",
			amount.StringFixed(2), split.Outstanding().StringFixed(2))
	default:
		return nil, Internal(err)
	}
}

// UserExpenseSummary is a cross-group view of the actor's own position.
type UserExpenseSummary struct {
	ExpensesPaid []*models.GroupExpense     `json:"expenses_paid"`
	DebtsOwed    []storage.SplitWithExpense `json:"debts_owed"`
	TotalOwed    decimal.Decimal            `json:"total_owed"`
}

// GetUserExpenses summarizes the expenses the actor paid in a group and the
// unsettled debts they owe across all groups.
func (s *ExpenseService) GetUserExpenses(ctx context.Context, actorID, groupID string) (*UserExpenseSummary, error) {
	if err := s.groups.requireMember(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	paid, err := s.store.ListExpensesPaidBy(ctx, groupID, actorID)
	if err != nil {
		return nil, Internal(err)
	}
	debts, err := s.store.ListUnsettledDebts(ctx, groupID, actorID)
	if err != nil {
		return nil, Internal(err)
	}

	total := decimal.Zero
	for _, d := range debts {
		total = total.Add(d.Split.Outstanding())
	}

	return &UserExpenseSummary{
		ExpensesPaid: paid,
		DebtsOwed:    debts,
		TotalOwed:    total,
	}, nil
}

// ListExpenseSplits retrieves the splits of an expense; member-only.
func (s *ExpenseService) ListExpenseSplits(ctx context.Context, actorID, expenseID string) ([]*models.Split, error) {
	expense, err := s.GetExpense(ctx, actorID, expenseID)
	if err != nil {
		return nil, err
	}
	return expense.Splits, nil
}

// GetMyUnsettledSplits retrieves the actor's unsettled splits across all
// groups, paired with their owning expenses, newest first.
func (s *ExpenseService) GetMyUnsettledSplits(ctx context.Context, actorID string) ([]storage.SplitWithExpense, error) {
	splits, err := s.store.ListUnsettledSplitsByUser(ctx, actorID)
	if err != nil {
		return nil, Internal(err)
	}
	return splits, nil
}

func (s *ExpenseService) loadSplit(ctx context.Context, splitID string) (*models.Split, *models.GroupExpense, error) {
	split, err := s.store.GetSplit(ctx, splitID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, NotFound("split %s not found", splitID)
		}
		return nil, nil, Internal(err)
	}
	expense, err := s.store.GetExpense(ctx, split.GroupExpenseID)
	if err != nil {
		return nil, nil, expenseLookupErr(split.GroupExpenseID, err)
	}
	return split, expense, nil
}

func (s *ExpenseService) requirePayerOrAdmin(ctx context.Context, actorID string, expense *models.GroupExpense) error {
	if actorID == expense.PaidByID {
		return nil
	}
	admin, err := s.groups.IsAdmin(ctx, actorID, expense.GroupID)
	if err != nil {
		return err
	}
	if !admin {
		return Forbidden("only the payer or a group admin can modify this expense")
	}
	return nil
}

func (s *ExpenseService) requireSplitParty(ctx context.Context, actorID string, split *models.Split, expense *models.GroupExpense) error {
	if actorID == split.UserID || actorID == expense.PaidByID {
		return nil
	}
	admin, err := s.groups.IsAdmin(ctx, actorID, expense.GroupID)
	if err != nil {
		return err
	}
	if !admin {
		return Forbidden("only the debtor, the payer, or a group admin can modify this split")
	}
	return nil
}

func expenseLookupErr(expenseID string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NotFound("expense %s not found", expenseID)
	}
	return Internal(err)
}
