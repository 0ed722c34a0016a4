package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/storage"
)

const settlementColumns = `id, group_id, payer_id, amount, payment_method, reference_number, notes, date, created_at, updated_at`

// CreateSettlement inserts a settlement and distributes its amount across the
// payer's outstanding splits, oldest expense first, all in one transaction.
// The overpayment check runs against the outstanding total read inside the
// same transaction, so concurrent settlements against the same splits cannot
// double-apply payment.
func (s *SQLiteStore) CreateSettlement(ctx context.Context, settlement *models.Settlement) ([]*models.Split, error) {
	now := time.Now().UTC()
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.Date.IsZero() {
		settlement.Date = now
	}
	settlement.CreatedAt = now
	settlement.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Candidate splits: the payer's own unsettled debt on expenses fronted
	// by someone else, retired oldest expense first.
	rows, err := tx.QueryContext(ctx,
		`SELECT `+splitColumns+`
		 FROM recurring_splits
		 WHERE is_settled = 0 AND user_id = ? AND group_expense_id IN (
		     SELECT id FROM group_expenses WHERE group_id = ? AND paid_by != ?
		 )
		 ORDER BY (SELECT expense_date FROM group_expenses WHERE id = group_expense_id),
		          (SELECT created_at FROM group_expenses WHERE id = group_expense_id),
		          id`,
		settlement.PayerID, settlement.GroupID, settlement.PayerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query outstanding splits: %w", err)
	}
	candidates, err := collectSplits(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	outstanding := decimal.Zero
	for _, split := range candidates {
		outstanding = outstanding.Add(split.Outstanding())
	}
	if settlement.Amount.GreaterThan(outstanding) {
		return nil, fmt.Errorf("amount %s exceeds outstanding %s: %w",
			decStr(settlement.Amount), decStr(outstanding), storage.ErrExcessSettlement)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settlements (`+settlementColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settlement.ID, settlement.GroupID, settlement.PayerID, decStr(settlement.Amount),
		nullStr(settlement.PaymentMethod), nullStr(settlement.ReferenceNumber), nullStr(settlement.Notes),
		toUnix(settlement.Date), toUnix(now), toUnix(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert settlement: %w", err)
	}

	remaining := settlement.Amount
	var touched []*models.Split
	touchedExpenses := make(map[string]bool)

	for _, split := range candidates {
		if remaining.IsZero() {
			break
		}
		due := split.Outstanding()

		if remaining.GreaterThanOrEqual(due) {
			split.AmountPaid = split.AmountOwed
			split.IsSettled = true
			settledAt := now
			split.SettledAt = &settledAt
			remaining = remaining.Sub(due)
		} else {
			split.AmountPaid = split.AmountPaid.Add(remaining)
			remaining = decimal.Zero
		}
		split.UpdatedAt = now

		if err := updateSplitTx(ctx, tx, split); err != nil {
			return nil, err
		}
		touched = append(touched, split)
		touchedExpenses[split.GroupExpenseID] = true
	}

	for expenseID := range touchedExpenses {
		if err := refreshExpenseSettled(ctx, tx, expenseID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return touched, nil
}

// GetSettlement retrieves a settlement by ID.
func (s *SQLiteStore) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE id = ?", settlementID,
	)
	settlement, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

// ListSettlementsByGroup retrieves all settlements for a group, newest first.
func (s *SQLiteStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	return s.listSettlements(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE group_id = ? ORDER BY date DESC, created_at DESC",
		groupID,
	)
}

// ListSettlementsByUser retrieves one payer's settlements in a group, newest first.
func (s *SQLiteStore) ListSettlementsByUser(ctx context.Context, groupID, userID string) ([]*models.Settlement, error) {
	return s.listSettlements(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE group_id = ? AND payer_id = ? ORDER BY date DESC, created_at DESC",
		groupID, userID,
	)
}

func (s *SQLiteStore) listSettlements(ctx context.Context, query string, args ...interface{}) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}

// UpdateSettlement updates a settlement's metadata. The amount is immutable
// once the payment has been distributed, so it is not touched here.
func (s *SQLiteStore) UpdateSettlement(ctx context.Context, settlement *models.Settlement) error {
	settlement.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE settlements SET payment_method = ?, reference_number = ?, notes = ?, date = ?, updated_at = ?
		 WHERE id = ?`,
		nullStr(settlement.PaymentMethod), nullStr(settlement.ReferenceNumber), nullStr(settlement.Notes),
		toUnix(settlement.Date), toUnix(settlement.UpdatedAt), settlement.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("settlement %s: %w", settlement.ID, storage.ErrNotFound)
	}
	return nil
}

// DeleteSettlement removes a settlement record. Splits it retired stay
// settled; the splits remain the authoritative paid state.
func (s *SQLiteStore) DeleteSettlement(ctx context.Context, settlementID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM settlements WHERE id = ?", settlementID)
	if err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	return nil
}

func scanSettlement(row rowScanner) (*models.Settlement, error) {
	settlement := &models.Settlement{}
	var amount string
	var paymentMethod, referenceNumber, notes sql.NullString
	var date, createdAt, updatedAt int64

	err := row.Scan(
		&settlement.ID, &settlement.GroupID, &settlement.PayerID, &amount,
		&paymentMethod, &referenceNumber, &notes, &date, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	settlement.Amount, err = parseDec(amount)
	if err != nil {
		return nil, err
	}
	settlement.PaymentMethod = fromNullStr(paymentMethod)
	settlement.ReferenceNumber = fromNullStr(referenceNumber)
	settlement.Notes = fromNullStr(notes)
	settlement.Date = fromUnix(date)
	settlement.CreatedAt = fromUnix(createdAt)
	settlement.UpdatedAt = fromUnix(updatedAt)
	return settlement, nil
}
