package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/storage"
)

const splitColumns = `id, group_expense_id, user_id, amount_owed, amount_paid, is_settled, settled_at, created_at, updated_at`

// GetSplit retrieves a split by ID.
func (s *SQLiteStore) GetSplit(ctx context.Context, splitID string) (*models.Split, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+splitColumns+" FROM recurring_splits WHERE id = ?", splitID,
	)
	split, err := scanSplit(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("split %s: %w", splitID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}
	return split, nil
}

// ListSplitsByExpense retrieves all splits of one expense in insertion order.
func (s *SQLiteStore) ListSplitsByExpense(ctx context.Context, expenseID string) ([]*models.Split, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+splitColumns+" FROM recurring_splits WHERE group_expense_id = ? ORDER BY created_at, id",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()
	return collectSplits(rows)
}

// ListUnsettledDebts retrieves the user's unsettled splits in a group on
// expenses fronted by someone else, oldest expense first. This is the order
// the settlement processor retires debt in.
func (s *SQLiteStore) ListUnsettledDebts(ctx context.Context, groupID, userID string) ([]storage.SplitWithExpense, error) {
	return s.listDebts(ctx,
		`SELECT s.id, s.group_expense_id, s.user_id, s.amount_owed, s.amount_paid, s.is_settled, s.settled_at, s.created_at, s.updated_at,
		        e.`+expenseJoinColumns(`e`)+`
		 FROM recurring_splits s
		 JOIN group_expenses e ON e.id = s.group_expense_id
		 WHERE e.group_id = ? AND s.user_id = ? AND e.paid_by != ? AND s.is_settled = 0
		 ORDER BY e.expense_date, e.created_at, s.id`,
		groupID, userID, userID,
	)
}

// ListUnsettledSplitsByUser retrieves all of the user's unsettled debts
// across groups, newest first.
func (s *SQLiteStore) ListUnsettledSplitsByUser(ctx context.Context, userID string) ([]storage.SplitWithExpense, error) {
	return s.listDebts(ctx,
		`SELECT s.id, s.group_expense_id, s.user_id, s.amount_owed, s.amount_paid, s.is_settled, s.settled_at, s.created_at, s.updated_at,
		        e.`+expenseJoinColumns(`e`)+`
		 FROM recurring_splits s
		 JOIN group_expenses e ON e.id = s.group_expense_id
		 WHERE s.user_id = ? AND e.paid_by != ? AND s.is_settled = 0
		 ORDER BY s.created_at DESC, s.id`,
		userID, userID,
	)
}

// SettleSplit marks a split fully paid and settled, bypassing settlement
// distribution. It refreshes the owning expense's settled cache in the same
// transaction.
func (s *SQLiteStore) SettleSplit(ctx context.Context, splitID string) (*models.Split, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	split, err := getSplitTx(ctx, tx, splitID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	split.AmountPaid = split.AmountOwed
	split.IsSettled = true
	split.SettledAt = &now
	split.UpdatedAt = now

	if err := updateSplitTx(ctx, tx, split); err != nil {
		return nil, err
	}
	if err := refreshExpenseSettled(ctx, tx, split.GroupExpenseID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return split, nil
}

// ApplySplitPayment adds a payment to a single split. The outstanding check
// runs inside the transaction, so concurrent payments cannot push amount_paid
// past amount_owed. Fails with ErrPaymentExceedsDebt on overpayment.
func (s *SQLiteStore) ApplySplitPayment(ctx context.Context, splitID string, amount decimal.Decimal) (*models.Split, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	split, err := getSplitTx(ctx, tx, splitID)
	if err != nil {
		return nil, err
	}

	newPaid := split.AmountPaid.Add(amount)
	if newPaid.GreaterThan(split.AmountOwed) {
		return nil, storage.ErrPaymentExceedsDebt
	}

	now := time.Now().UTC()
	split.AmountPaid = newPaid
	split.UpdatedAt = now
	if newPaid.GreaterThanOrEqual(split.AmountOwed) {
		split.IsSettled = true
		split.SettledAt = &now
	}

	if err := updateSplitTx(ctx, tx, split); err != nil {
		return nil, err
	}
	if err := refreshExpenseSettled(ctx, tx, split.GroupExpenseID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return split, nil
}

// --- shared split plumbing ---

func (s *SQLiteStore) listDebts(ctx context.Context, query string, args ...interface{}) ([]storage.SplitWithExpense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}
	defer rows.Close()

	var debts []storage.SplitWithExpense
	for rows.Next() {
		split := &models.Split{}
		expense := &models.GroupExpense{}
		if err := scanSplitWithExpense(rows, split, expense); err != nil {
			return nil, fmt.Errorf("failed to scan debt: %w", err)
		}
		debts = append(debts, storage.SplitWithExpense{Split: split, Expense: expense})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate debts: %w", err)
	}
	return debts, nil
}

func getSplitTx(ctx context.Context, tx *sql.Tx, splitID string) (*models.Split, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+splitColumns+" FROM recurring_splits WHERE id = ?", splitID,
	)
	split, err := scanSplit(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("split %s: %w", splitID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}
	return split, nil
}

func updateSplitTx(ctx context.Context, tx *sql.Tx, split *models.Split) error {
	var settledAt interface{}
	if split.SettledAt != nil {
		settledAt = toUnix(*split.SettledAt)
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE recurring_splits
		 SET amount_paid = ?, is_settled = ?, settled_at = ?, updated_at = ?
		 WHERE id = ?`,
		decStr(split.AmountPaid), boolToInt(split.IsSettled), settledAt,
		toUnix(split.UpdatedAt), split.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update split: %w", err)
	}
	return nil
}

// refreshExpenseSettled recomputes the expense-level settled cache from its
// splits. Split aggregation stays the ground truth; this cache only serves
// list filters.
func refreshExpenseSettled(ctx context.Context, tx *sql.Tx, expenseID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE group_expenses
		 SET is_settled = NOT EXISTS (
		     SELECT 1 FROM recurring_splits WHERE group_expense_id = ? AND is_settled = 0
		 ), updated_at = ?
		 WHERE id = ?`,
		expenseID, toUnix(time.Now().UTC()), expenseID,
	)
	if err != nil {
		return fmt.Errorf("failed to refresh expense settled flag: %w", err)
	}
	return nil
}

func scanSplit(row rowScanner) (*models.Split, error) {
	split := &models.Split{}
	var amountOwed, amountPaid string
	var isSettled int
	var settledAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&split.ID, &split.GroupExpenseID, &split.UserID,
		&amountOwed, &amountPaid, &isSettled, &settledAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return finishSplit(split, amountOwed, amountPaid, isSettled, settledAt, createdAt, updatedAt)
}

func finishSplit(split *models.Split, amountOwed, amountPaid string, isSettled int, settledAt sql.NullInt64, createdAt, updatedAt int64) (*models.Split, error) {
	var err error
	split.AmountOwed, err = parseDec(amountOwed)
	if err != nil {
		return nil, err
	}
	split.AmountPaid, err = parseDec(amountPaid)
	if err != nil {
		return nil, err
	}
	split.IsSettled = isSettled != 0
	if settledAt.Valid {
		t := fromUnix(settledAt.Int64)
		split.SettledAt = &t
	}
	split.CreatedAt = fromUnix(createdAt)
	split.UpdatedAt = fromUnix(updatedAt)
	return split, nil
}

func collectSplits(rows *sql.Rows) ([]*models.Split, error) {
	var splits []*models.Split
	for rows.Next() {
		split, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

// expenseJoinColumns renders the expense column list qualified by alias for
// joined queries, matching scanSplitWithExpense's scan order.
func expenseJoinColumns(alias string) string {
	return `id, ` + alias + `.group_id, ` + alias + `.paid_by, ` + alias + `.name, ` +
		alias + `.description, ` + alias + `.total_amount, ` + alias + `.currency, ` +
		alias + `.category_id, ` + alias + `.split_method, ` + alias + `.expense_date, ` +
		alias + `.receipt_url, ` + alias + `.notes, ` + alias + `.is_settled, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}

func scanSplitWithExpense(rows *sql.Rows, split *models.Split, expense *models.GroupExpense) error {
	var sAmountOwed, sAmountPaid string
	var sIsSettled int
	var sSettledAt sql.NullInt64
	var sCreatedAt, sUpdatedAt int64

	var eDescription, eCategoryID, eReceiptURL, eNotes sql.NullString
	var eTotalAmount, eSplitMethod string
	var eExpenseDate, eCreatedAt, eUpdatedAt int64
	var eIsSettled int

	err := rows.Scan(
		&split.ID, &split.GroupExpenseID, &split.UserID,
		&sAmountOwed, &sAmountPaid, &sIsSettled, &sSettledAt, &sCreatedAt, &sUpdatedAt,
		&expense.ID, &expense.GroupID, &expense.PaidByID, &expense.Name,
		&eDescription, &eTotalAmount, &expense.Currency,
		&eCategoryID, &eSplitMethod, &eExpenseDate,
		&eReceiptURL, &eNotes, &eIsSettled, &eCreatedAt, &eUpdatedAt,
	)
	if err != nil {
		return err
	}

	if _, err := finishSplit(split, sAmountOwed, sAmountPaid, sIsSettled, sSettledAt, sCreatedAt, sUpdatedAt); err != nil {
		return err
	}

	expense.Description = fromNullStr(eDescription)
	expense.CategoryID = fromNullStr(eCategoryID)
	expense.ReceiptURL = fromNullStr(eReceiptURL)
	expense.Notes = fromNullStr(eNotes)
	expense.SplitMethod = models.SplitMethod(eSplitMethod)
	expense.ExpenseDate = fromUnix(eExpenseDate)
	expense.IsSettled = eIsSettled != 0
	expense.CreatedAt = fromUnix(eCreatedAt)
	expense.UpdatedAt = fromUnix(eUpdatedAt)
	expense.TotalAmount, err = parseDec(eTotalAmount)
	return err
}
