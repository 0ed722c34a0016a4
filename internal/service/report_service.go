package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/splitledger/splitledger/internal/calculator"
	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/storage"
)

// ReportService is the read-only balance and reporting view. It aggregates
// ledger and settlement state; it has no invariants of its own and never
// writes.
type ReportService struct {
	store  storage.Store
	groups *GroupService
}

// NewReportService creates a new ReportService.
func NewReportService(store storage.Store, groups *GroupService) *ReportService {
	return &ReportService{store: store, groups: groups}
}

// GetGroupBalances derives each member's owed/owed-to-them/net position from
// the group's expenses and splits; member-only.
func (s *ReportService) GetGroupBalances(ctx context.Context, actorID, groupID string) ([]calculator.MemberBalance, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, groupLookupErr(groupID, err)
	}
	if err := s.groups.requireMember(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	expenses, err := s.store.ListExpensesByGroup(ctx, groupID, storage.ExpenseFilter{})
	if err != nil {
		return nil, Internal(err)
	}
	return calculator.GroupBalances(expenses), nil
}

// UserBalanceSummary is the actor's position across all their groups.
type UserBalanceSummary struct {
	Groups   []GroupBalanceEntry `json:"groups"`
	TotalNet decimal.Decimal     `json:"total_net"`
}

// GroupBalanceEntry is the actor's balance within a single group.
type GroupBalanceEntry struct {
	GroupID    string          `json:"group_id"`
	GroupName  string          `json:"group_name"`
	Owed       decimal.Decimal `json:"owed"`
	OwedToThem decimal.Decimal `json:"owed_to_them"`
	NetBalance decimal.Decimal `json:"net_balance"`
}

// GetUserBalances aggregates the actor's balance in each group they belong to.
func (s *ReportService) GetUserBalances(ctx context.Context, actorID string) (*UserBalanceSummary, error) {
	groups, err := s.store.ListGroupsByUser(ctx, actorID)
	if err != nil {
		return nil, Internal(err)
	}

	summary := &UserBalanceSummary{
		Groups:   make([]GroupBalanceEntry, 0, len(groups)),
		TotalNet: decimal.Zero,
	}
	for _, g := range groups {
		expenses, err := s.store.ListExpensesByGroup(ctx, g.ID, storage.ExpenseFilter{})
		if err != nil {
			return nil, Internal(err)
		}
		for _, b := range calculator.GroupBalances(expenses) {
			if b.UserID != actorID {
				continue
			}
			summary.Groups = append(summary.Groups, GroupBalanceEntry{
				GroupID:    g.ID,
				GroupName:  g.Name,
				Owed:       b.Owed,
				OwedToThem: b.OwedToThem,
				NetBalance: b.NetBalance,
			})
			summary.TotalNet = summary.TotalNet.Add(b.NetBalance)
		}
	}
	return summary, nil
}

// expenseRows flattens a group's expenses into one row per split for export.
func (s *ReportService) expenseRows(ctx context.Context, actorID, groupID string) (*models.Group, []*models.GroupExpense, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, nil, groupLookupErr(groupID, err)
	}
	if err := s.groups.requireMember(ctx, actorID, groupID); err != nil {
		return nil, nil, err
	}
	expenses, err := s.store.ListExpensesByGroup(ctx, groupID, storage.ExpenseFilter{})
	if err != nil {
		return nil, nil, Internal(err)
	}
	return group, expenses, nil
}

var exportHeader = []string{
	"Expense", "Date", "Paid By", "Total", "Currency", "Split Method",
	"Member", "Owed", "Paid", "Settled",
}

// ExportCSV renders the group's expenses, one row per split, as CSV.
func (s *ReportService) ExportCSV(ctx context.Context, actorID, groupID string) ([]byte, error) {
	_, expenses, err := s.expenseRows(ctx, actorID, groupID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, Internal(err)
	}
	for _, e := range expenses {
		for _, sp := range e.Splits {
			record := []string{
				e.Name,
				e.ExpenseDate.Format("2006-01-02"),
				e.PaidByID,
				e.TotalAmount.StringFixed(2),
				e.Currency,
				string(e.SplitMethod),
				sp.UserID,
				sp.AmountOwed.StringFixed(2),
				sp.AmountPaid.StringFixed(2),
				fmt.Sprintf("%t", sp.IsSettled),
			}
			if err := w.Write(record); err != nil {
				return nil, Internal(err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, Internal(err)
	}
	return buf.Bytes(), nil
}

// ExportXLSX renders the group's expenses and member balances as a two-sheet
// Excel workbook.
func (s *ReportService) ExportXLSX(ctx context.Context, actorID, groupID string) ([]byte, error) {
	group, expenses, err := s.expenseRows(ctx, actorID, groupID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const expSheet = "Expenses"
	if err := f.SetSheetName("Sheet1", expSheet); err != nil {
		return nil, Internal(err)
	}
	for col, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(expSheet, cell, h); err != nil {
			return nil, Internal(err)
		}
	}
	row := 2
	for _, e := range expenses {
		for _, sp := range e.Splits {
			values := []interface{}{
				e.Name,
				e.ExpenseDate.Format("2006-01-02"),
				e.PaidByID,
				e.TotalAmount.StringFixed(2),
				e.Currency,
				string(e.SplitMethod),
				sp.UserID,
				sp.AmountOwed.StringFixed(2),
				sp.AmountPaid.StringFixed(2),
				sp.IsSettled,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				if err := f.SetCellValue(expSheet, cell, v); err != nil {
					return nil, Internal(err)
				}
			}
			row++
		}
	}

	const balSheet = "Balances"
	if _, err := f.NewSheet(balSheet); err != nil {
		return nil, Internal(err)
	}
	balHeader := []string{"Member", "Owed", "Owed To Them", "Net Balance"}
	for col, h := range balHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(balSheet, cell, h); err != nil {
			return nil, Internal(err)
		}
	}
	for i, b := range calculator.GroupBalances(expenses) {
		values := []interface{}{
			b.UserID,
			b.Owed.StringFixed(2),
			b.OwedToThem.StringFixed(2),
			b.NetBalance.StringFixed(2),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(balSheet, cell, v); err != nil {
				return nil, Internal(err)
			}
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{Title: group.Name}); err != nil {
		return nil, Internal(err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, Internal(err)
	}
	return buf.Bytes(), nil
}
