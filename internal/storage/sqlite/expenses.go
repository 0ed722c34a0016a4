package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/storage"
)

const expenseColumns = `id, group_id, paid_by, name, description, total_amount, currency,
	category_id, split_method, expense_date, receipt_url, notes, is_settled, created_at, updated_at`

// CreateExpense persists an expense and all of its splits in one transaction.
// If anything fails, nothing is written.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.GroupExpense, splits []*models.Split) error {
	now := time.Now().UTC()
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	expense.CreatedAt = now
	expense.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_expenses (`+expenseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.PaidByID, expense.Name,
		nullStr(expense.Description), decStr(expense.TotalAmount), expense.Currency,
		nullStr(expense.CategoryID), string(expense.SplitMethod), toUnix(expense.ExpenseDate),
		nullStr(expense.ReceiptURL), nullStr(expense.Notes), boolToInt(expense.IsSettled),
		toUnix(now), toUnix(now),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for _, split := range splits {
		if split.ID == "" {
			split.ID = uuid.New().String()
		}
		split.GroupExpenseID = expense.ID
		split.CreatedAt = now
		split.UpdatedAt = now

		var settledAt interface{}
		if split.SettledAt != nil {
			settledAt = toUnix(*split.SettledAt)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO recurring_splits (id, group_expense_id, user_id, amount_owed, amount_paid, is_settled, settled_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			split.ID, expense.ID, split.UserID, decStr(split.AmountOwed), decStr(split.AmountPaid),
			boolToInt(split.IsSettled), settledAt, toUnix(now), toUnix(now),
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	expense.Splits = splits
	return nil
}

// GetExpense retrieves an expense by ID, including its splits.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.GroupExpense, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM group_expenses WHERE id = ?", expenseID,
	)
	expense, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	expense.Splits, err = s.ListSplitsByExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpensesByGroup retrieves a group's expenses, newest expense date first,
// with nested splits. The filter narrows by date range and settled state.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string, filter storage.ExpenseFilter) ([]*models.GroupExpense, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + expenseColumns + " FROM group_expenses WHERE group_id = ?")
	args := []interface{}{groupID}

	if filter.StartDate != nil && filter.EndDate != nil {
		sb.WriteString(" AND expense_date BETWEEN ? AND ?")
		args = append(args, toUnix(*filter.StartDate), toUnix(*filter.EndDate))
	}
	if filter.IsSettled != nil {
		sb.WriteString(" AND is_settled = ?")
		args = append(args, boolToInt(*filter.IsSettled))
	}
	sb.WriteString(" ORDER BY expense_date DESC, created_at DESC")

	return s.listExpenses(ctx, sb.String(), args...)
}

// ListExpensesPaidBy retrieves the expenses in a group fronted by one user,
// newest first, with nested splits.
func (s *SQLiteStore) ListExpensesPaidBy(ctx context.Context, groupID, userID string) ([]*models.GroupExpense, error) {
	return s.listExpenses(ctx,
		"SELECT "+expenseColumns+` FROM group_expenses
		 WHERE group_id = ? AND paid_by = ?
		 ORDER BY expense_date DESC, created_at DESC`,
		groupID, userID,
	)
}

func (s *SQLiteStore) listExpenses(ctx context.Context, query string, args ...interface{}) ([]*models.GroupExpense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.GroupExpense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for _, expense := range expenses {
		expense.Splits, err = s.ListSplitsByExpense(ctx, expense.ID)
		if err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

// UpdateExpense updates the mutable fields of an expense.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.GroupExpense) error {
	expense.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE group_expenses
		 SET name = ?, description = ?, currency = ?, category_id = ?, expense_date = ?,
		     receipt_url = ?, notes = ?, is_settled = ?, updated_at = ?
		 WHERE id = ?`,
		expense.Name, nullStr(expense.Description), expense.Currency, nullStr(expense.CategoryID),
		toUnix(expense.ExpenseDate), nullStr(expense.ReceiptURL), nullStr(expense.Notes),
		boolToInt(expense.IsSettled), toUnix(expense.UpdatedAt), expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}
	return nil
}

// DeleteExpense removes an expense and its splits.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM recurring_splits WHERE group_expense_id = ?", expenseID,
	); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM group_expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExpense(row rowScanner) (*models.GroupExpense, error) {
	expense := &models.GroupExpense{}
	var description, categoryID, receiptURL, notes sql.NullString
	var totalAmount, splitMethod string
	var expenseDate, createdAt, updatedAt int64
	var isSettled int

	err := row.Scan(
		&expense.ID, &expense.GroupID, &expense.PaidByID, &expense.Name,
		&description, &totalAmount, &expense.Currency,
		&categoryID, &splitMethod, &expenseDate,
		&receiptURL, &notes, &isSettled, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	expense.Description = fromNullStr(description)
	expense.CategoryID = fromNullStr(categoryID)
	expense.ReceiptURL = fromNullStr(receiptURL)
	expense.Notes = fromNullStr(notes)
	expense.SplitMethod = models.SplitMethod(splitMethod)
	expense.ExpenseDate = fromUnix(expenseDate)
	expense.IsSettled = isSettled != 0
	expense.CreatedAt = fromUnix(createdAt)
	expense.UpdatedAt = fromUnix(updatedAt)

	expense.TotalAmount, err = parseDec(totalAmount)
	if err != nil {
		return nil, err
	}
	return expense, nil
}
