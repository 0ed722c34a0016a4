package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
)

// MemberBalance is one member's aggregated position in a group.
type MemberBalance struct {
	UserID string `json:"user_id"`

	// Owed is what the member still owes on unsettled splits of expenses
	// someone else paid.
	Owed decimal.Decimal `json:"owed"`

	// OwedToThem is what other members owe this member across the expenses
	// they fronted.
	OwedToThem decimal.Decimal `json:"owed_to_them"`

	// NetBalance is OwedToThem - Owed. Positive means the group owes them.
	NetBalance decimal.Decimal `json:"net_balance"`
}

// GroupBalances aggregates per-member balances across a group's expenses.
// Expenses must be loaded with their splits.
//
// The debtor side of each non-payer split contributes its outstanding
// remainder (owed minus paid), so a settled debt nets out for the debtor.
// The creditor side contributes the full amount owed to the expense's payer;
// settlements record only the payer, so received payments are not subtracted
// here (the declared asymmetry of the reporting view). The payer's own split
// is neither debt nor credit.
func GroupBalances(expenses []*models.GroupExpense) []MemberBalance {
	balances := make(map[string]*MemberBalance)

	get := func(userID string) *MemberBalance {
		b, ok := balances[userID]
		if !ok {
			b = &MemberBalance{
				UserID:     userID,
				Owed:       decimal.Zero,
				OwedToThem: decimal.Zero,
			}
			balances[userID] = b
		}
		return b
	}

	for _, expense := range expenses {
		for _, split := range expense.Splits {
			if split.UserID == expense.PaidByID {
				continue
			}
			debtor := get(split.UserID)
			debtor.Owed = debtor.Owed.Add(split.Outstanding())

			payer := get(expense.PaidByID)
			payer.OwedToThem = payer.OwedToThem.Add(split.AmountOwed)
		}
	}

	result := make([]MemberBalance, 0, len(balances))
	for _, b := range balances {
		b.NetBalance = b.OwedToThem.Sub(b.Owed)
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})
	return result
}
