package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/notify"
	"github.com/splitledger/splitledger/internal/storage"
)

// SettlementService is the settlement processor: it records payment events by
// a debtor in a group and distributes each payment greedily across the
// debtor's outstanding splits, oldest expense first.
type SettlementService struct {
	store    storage.Store
	groups   *GroupService
	notifier notify.Notifier
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(store storage.Store, groups *GroupService, notifier notify.Notifier) *SettlementService {
	return &SettlementService{store: store, groups: groups, notifier: notifier}
}

// CreateSettlementInput carries the fields for a new settlement. PayerID is
// the debtor making the payment; only self-settlement is modeled, so it must
// match the acting user when set.
type CreateSettlementInput struct {
	PayerID         string          `json:"payer_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   string          `json:"payment_method"`
	ReferenceNumber string          `json:"reference_number"`
	Notes           string          `json:"notes"`
	Date            *time.Time      `json:"date"`
}

// SettlementResult pairs the recorded settlement with the splits its
// distribution touched.
type SettlementResult struct {
	Settlement *models.Settlement `json:"settlement"`
	Splits     []*models.Split    `json:"splits_updated"`
}

// CreateSettlement records a payment by the payer against their outstanding
// debts in the group. The amount must be positive and must not exceed the
// payer's total outstanding balance; the distribution happens in a single
// transaction so a rejected settlement changes nothing. Only self-settlement
// is modeled: the payer must be the acting user.
func (s *SettlementService) CreateSettlement(ctx context.Context, actorID, groupID string, in CreateSettlementInput) (*SettlementResult, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, groupLookupErr(groupID, err)
	}

	payerID := in.PayerID
	if payerID == "" {
		payerID = actorID
	}
	if payerID != actorID {
		return nil, BadRequest("you can only record settlements for yourself")
	}
	if err := s.groups.requireMember(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	if !in.Amount.IsPositive() {
		return nil, BadRequest("settlement amount must be positive")
	}
	if in.Amount.Exponent() < -2 {
		return nil, BadRequest("settlement amount must have at most 2 decimal places")
	}

	date := time.Now().UTC()
	if in.Date != nil {
		date = in.Date.UTC()
	}

	settlement := &models.Settlement{
		GroupID:         groupID,
		PayerID:         payerID,
		Amount:          in.Amount,
		PaymentMethod:   in.PaymentMethod,
		ReferenceNumber: in.ReferenceNumber,
		Notes:           in.Notes,
		Date:            date,
	}

	touched, err := s.store.CreateSettlement(ctx, settlement)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrExcessSettlement):
		return nil, BadRequest("%s", err)
	default:
		slog.Error("CreateSettlement failed", "group_id", groupID, "payer", payerID, "error", err)
		return nil, Internal(err)
	}

	metrics.SettlementsCreated.Inc()
	slog.Info("Settlement recorded",
		"settlement_id", settlement.ID,
		"group_id", groupID,
		"payer", payerID,
		"amount", settlement.Amount,
		"splits_updated", len(touched))

	notify.Send(ctx, s.notifier, &models.Notification{
		UserID:    payerID,
		Type:      models.NotifySettlementRecorded,
		Title:     "Settlement Recorded",
		Message:   fmt.Sprintf("A payment of %s was applied to your debts", settlement.Amount.StringFixed(2)),
		ActionURL: fmt.Sprintf("/groups/%s/settlements/%s", groupID, settlement.ID),
	})

	return &SettlementResult{Settlement: settlement, Splits: touched}, nil
}

// GetSettlement retrieves a settlement; member-only.
func (s *SettlementService) GetSettlement(ctx context.Context, actorID, settlementID string) (*models.Settlement, error) {
	settlement, err := s.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, settlementLookupErr(settlementID, err)
	}
	if err := s.groups.requireMember(ctx, actorID, settlement.GroupID); err != nil {
		return nil, err
	}
	return settlement, nil
}

// ListSettlements retrieves a group's settlements, newest first; member-only.
func (s *SettlementService) ListSettlements(ctx context.Context, actorID, groupID string) ([]*models.Settlement, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, groupLookupErr(groupID, err)
	}
	if err := s.groups.requireMember(ctx, actorID, groupID); err != nil {
		return nil, err
	}
	settlements, err := s.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		return nil, Internal(err)
	}
	return settlements, nil
}

// UserSettlementHistory is one member's payment history in a group.
type UserSettlementHistory struct {
	Settlements []*models.Settlement `json:"settlements"`
	TotalPaid   decimal.Decimal      `json:"total_paid"`
	Outstanding decimal.Decimal      `json:"outstanding"`
}

// GetUserHistory retrieves a member's settlement history in a group with
// their total paid and remaining outstanding debt; member-only.
func (s *SettlementService) GetUserHistory(ctx context.Context, actorID, groupID, userID string) (*UserSettlementHistory, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, groupLookupErr(groupID, err)
	}
	if err := s.groups.requireMember(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	settlements, err := s.store.ListSettlementsByUser(ctx, groupID, userID)
	if err != nil {
		return nil, Internal(err)
	}
	debts, err := s.store.ListUnsettledDebts(ctx, groupID, userID)
	if err != nil {
		return nil, Internal(err)
	}

	totalPaid := decimal.Zero
	for _, st := range settlements {
		totalPaid = totalPaid.Add(st.Amount)
	}
	outstanding := decimal.Zero
	for _, d := range debts {
		outstanding = outstanding.Add(d.Split.Outstanding())
	}

	return &UserSettlementHistory{
		Settlements: settlements,
		TotalPaid:   totalPaid,
		Outstanding: outstanding,
	}, nil
}

// UpdateSettlementInput carries the mutable settlement metadata; nil means
// unchanged. The amount is immutable because the distribution has already
// been applied to splits.
type UpdateSettlementInput struct {
	PaymentMethod   *string    `json:"payment_method"`
	ReferenceNumber *string    `json:"reference_number"`
	Notes           *string    `json:"notes"`
	Date            *time.Time `json:"date"`
}

// UpdateSettlement updates a settlement's metadata; only the payer may
// update their own settlement record.
func (s *SettlementService) UpdateSettlement(ctx context.Context, actorID, settlementID string, in UpdateSettlementInput) (*models.Settlement, error) {
	settlement, err := s.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, settlementLookupErr(settlementID, err)
	}
	if settlement.PayerID != actorID {
		return nil, Forbidden("only the payer can update this settlement")
	}

	if in.PaymentMethod != nil {
		settlement.PaymentMethod = *in.PaymentMethod
	}
	if in.ReferenceNumber != nil {
		settlement.ReferenceNumber = *in.ReferenceNumber
	}
	if in.Notes != nil {
		settlement.Notes = *in.Notes
	}
	if in.Date != nil {
		settlement.Date = in.Date.UTC()
	}

	if err := s.store.UpdateSettlement(ctx, settlement); err != nil {
		return nil, Internal(err)
	}
	slog.Info("Settlement updated", "settlement_id", settlementID, "actor", actorID)
	return settlement, nil
}

// DeleteSettlement removes a settlement record; only the payer may delete.
// Deletion does not reverse the split payments the settlement applied.
func (s *SettlementService) DeleteSettlement(ctx context.Context, actorID, settlementID string) error {
	settlement, err := s.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return settlementLookupErr(settlementID, err)
	}
	if settlement.PayerID != actorID {
		return Forbidden("only the payer can delete this settlement")
	}

	if err := s.store.DeleteSettlement(ctx, settlementID); err != nil {
		return Internal(err)
	}
	slog.Info("Settlement deleted", "settlement_id", settlementID, "actor", actorID)
	return nil
}

func settlementLookupErr(settlementID string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NotFound("settlement %s not found", settlementID)
	}
	return Internal(err)
}
