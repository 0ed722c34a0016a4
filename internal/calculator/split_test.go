package calculator

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestComputeSplits(t *testing.T) {
	tests := []struct {
		name         string
		method       models.SplitMethod
		total        string
		payerID      string
		members      []MemberShare
		wantErr      bool
		validateFunc func(t *testing.T, splits []ComputedSplit)
	}{
		{
			name:    "equal split divides evenly",
			method:  models.SplitEqual,
			total:   "90.00",
			payerID: "alice",
			members: []MemberShare{{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"}},
			validateFunc: func(t *testing.T, splits []ComputedSplit) {
				for _, s := range splits {
					if !s.AmountOwed.Equal(dec("30.00")) {
						t.Errorf("%s owed = %s, want 30.00", s.UserID, s.AmountOwed)
					}
				}
			},
		},
		{
			name:    "equal split remainder goes to payer",
			method:  models.SplitEqual,
			total:   "100.00",
			payerID: "bob",
			members: []MemberShare{{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"}},
			validateFunc: func(t *testing.T, splits []ComputedSplit) {
				byUser := map[string]decimal.Decimal{}
				sum := decimal.Zero
				for _, s := range splits {
					byUser[s.UserID] = s.AmountOwed
					sum = sum.Add(s.AmountOwed)
				}
				if !byUser["bob"].Equal(dec("33.34")) {
					t.Errorf("payer owed = %s, want 33.34", byUser["bob"])
				}
				if !byUser["alice"].Equal(dec("33.33")) {
					t.Errorf("alice owed = %s, want 33.33", byUser["alice"])
				}
				if !sum.Equal(dec("100.00")) {
					t.Errorf("sum = %s, want 100.00", sum)
				}
			},
		},
		{
			name:    "equal split remainder to first member when payer not participating",
			method:  models.SplitEqual,
			total:   "10.00",
			payerID: "dave",
			members: []MemberShare{{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"}},
			validateFunc: func(t *testing.T, splits []ComputedSplit) {
				if !splits[0].AmountOwed.Equal(dec("3.34")) {
					t.Errorf("first member owed = %s, want 3.34", splits[0].AmountOwed)
				}
			},
		},
		{
			name:    "percentage split",
			method:  models.SplitPercentage,
			total:   "200.00",
			payerID: "alice",
			members: []MemberShare{
				{UserID: "alice", Percentage: decPtr("50")},
				{UserID: "bob", Percentage: decPtr("30")},
				{UserID: "carol", Percentage: decPtr("20")},
			},
			validateFunc: func(t *testing.T, splits []ComputedSplit) {
				want := map[string]string{"alice": "100", "bob": "60", "carol": "40"}
				for _, s := range splits {
					if !s.AmountOwed.Equal(dec(want[s.UserID])) {
						t.Errorf("%s owed = %s, want %s", s.UserID, s.AmountOwed, want[s.UserID])
					}
				}
			},
		},
		{
			name:    "percentage split missing percentage",
			method:  models.SplitPercentage,
			total:   "200.00",
			payerID: "alice",
			members: []MemberShare{{UserID: "alice", Percentage: decPtr("50")}, {UserID: "bob"}},
			wantErr: true,
		},
		{
			name:    "exact amounts",
			method:  models.SplitExact,
			total:   "75.50",
			payerID: "alice",
			members: []MemberShare{
				{UserID: "alice", Amount: decPtr("50.50")},
				{UserID: "bob", Amount: decPtr("25.00")},
			},
			validateFunc: func(t *testing.T, splits []ComputedSplit) {
				if !splits[1].AmountOwed.Equal(dec("25.00")) {
					t.Errorf("bob owed = %s, want 25.00", splits[1].AmountOwed)
				}
			},
		},
		{
			name:    "exact amounts missing amount",
			method:  models.SplitExact,
			total:   "75.50",
			payerID: "alice",
			members: []MemberShare{{UserID: "alice"}},
			wantErr: true,
		},
		{
			name:    "shares method rejected",
			method:  models.SplitShares,
			total:   "30.00",
			payerID: "alice",
			members: []MemberShare{{UserID: "alice"}},
			wantErr: true,
		},
		{
			name:    "unknown method rejected",
			method:  models.SplitMethod("random"),
			total:   "30.00",
			payerID: "alice",
			members: []MemberShare{{UserID: "alice"}},
			wantErr: true,
		},
		{
			name:    "zero total rejected",
			method:  models.SplitEqual,
			total:   "0.00",
			payerID: "alice",
			members: []MemberShare{{UserID: "alice"}},
			wantErr: true,
		},
		{
			name:    "negative total rejected",
			method:  models.SplitEqual,
			total:   "-5.00",
			payerID: "alice",
			members: []MemberShare{{UserID: "alice"}},
			wantErr: true,
		},
		{
			name:    "sub-cent total rejected",
			method:  models.SplitEqual,
			total:   "10.001",
			payerID: "alice",
			members: []MemberShare{{UserID: "alice"}},
			wantErr: true,
		},
		{
			name:    "no members rejected",
			method:  models.SplitEqual,
			total:   "10.00",
			payerID: "alice",
			members: []MemberShare{},
			wantErr: true,
		},
		{
			name:    "duplicate member rejected",
			method:  models.SplitEqual,
			total:   "10.00",
			payerID: "alice",
			members: []MemberShare{{UserID: "alice"}, {UserID: "alice"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splits, err := ComputeSplits(tt.method, dec(tt.total), tt.payerID, tt.members)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ComputeSplits failed: %v", err)
			}
			if len(splits) != len(tt.members) {
				t.Fatalf("got %d splits, want %d", len(splits), len(tt.members))
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, splits)
			}
		})
	}
}

func TestCheckReconciles(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		amounts []string
		wantErr bool
	}{
		{name: "exact match", total: "90.00", amounts: []string{"30.00", "30.00", "30.00"}},
		{name: "within tolerance", total: "10.00", amounts: []string{"3.33", "3.33", "3.33"}},
		{name: "over total", total: "50.00", amounts: []string{"30.00", "30.00"}, wantErr: true},
		{name: "under total", total: "100.00", amounts: []string{"30.00", "30.00"}, wantErr: true},
		{name: "off by two cents", total: "10.00", amounts: []string{"5.00", "4.98"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splits := make([]ComputedSplit, len(tt.amounts))
			for i, a := range tt.amounts {
				splits[i] = ComputedSplit{UserID: "u", AmountOwed: dec(a)}
			}
			err := CheckReconciles(dec(tt.total), splits)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
