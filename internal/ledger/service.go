package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

// Service records and reports what each agent is owed.
type Service interface {
	RecordEarning(ctx context.Context, tx *gorm.DB, input RecordEarningInput) (*models.AgentEarning, error)
	SetStatus(ctx context.Context, tx *gorm.DB, commissionIDs []int64, status enums.CommissionStatus) error
	ListAgentEarnings(ctx context.Context, agentID uuid.UUID, status *enums.CommissionStatus) ([]models.AgentEarning, error)
	Summary(ctx context.Context, agentID uuid.UUID) (*EarningsSummary, error)
}

type service struct {
	repo Repository
}

// RecordEarningInput pairs an earning with the commission line it mirrors.
type RecordEarningInput struct {
	CommissionTransactionID int64                `json:"commission_transaction_id"`
	OrderID                 int64                `json:"order_id"`
	AgentID                 uuid.UUID            `json:"agent_id"`
	Type                    enums.CommissionType `json:"commission_type"`
	Amount                  decimal.Decimal      `json:"amount"`
}

// EarningsSummary aggregates an agent's earnings by status.
type EarningsSummary struct {
	AgentID  uuid.UUID       `json:"agent_id"`
	Pending  decimal.Decimal `json:"pending"`
	Approved decimal.Decimal `json:"approved"`
	Paid     decimal.Decimal `json:"paid"`
	Reversed decimal.Decimal `json:"reversed"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RecordEarning(ctx context.Context, tx *gorm.DB, input RecordEarningInput) (*models.AgentEarning, error) {
	if input.CommissionTransactionID == 0 {
		return nil, fmt.Errorf("commission transaction id is required")
	}
	if input.OrderID == 0 {
		return nil, fmt.Errorf("order id is required")
	}
	if input.AgentID == uuid.Nil {
		return nil, fmt.Errorf("agent id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid commission type %q", input.Type)
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("earning amount must be positive")
	}

	earning := &models.AgentEarning{
		CommissionTransactionID: input.CommissionTransactionID,
		OrderID:                 input.OrderID,
		AgentID:                 input.AgentID,
		Type:                    input.Type,
		Amount:                  input.Amount,
		Status:                  enums.CommissionStatusPending,
	}
	if err := s.repo.WithTx(tx).Create(ctx, earning); err != nil {
		return nil, err
	}
	return earning, nil
}

func (s *service) SetStatus(ctx context.Context, tx *gorm.DB, commissionIDs []int64, status enums.CommissionStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid commission status %q", status)
	}
	_, err := s.repo.WithTx(tx).UpdateStatusByCommission(ctx, commissionIDs, status)
	return err
}

func (s *service) ListAgentEarnings(ctx context.Context, agentID uuid.UUID, status *enums.CommissionStatus) ([]models.AgentEarning, error) {
	if agentID == uuid.Nil {
		return nil, fmt.Errorf("agent id is required")
	}
	if status != nil && !status.IsValid() {
		return nil, fmt.Errorf("invalid commission status %q", *status)
	}
	return s.repo.ListByAgent(ctx, agentID, status)
}

func (s *service) Summary(ctx context.Context, agentID uuid.UUID) (*EarningsSummary, error) {
	if agentID == uuid.Nil {
		return nil, fmt.Errorf("agent id is required")
	}
	totals, err := s.repo.SumByStatus(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return &EarningsSummary{
		AgentID:  agentID,
		Pending:  totals[enums.CommissionStatusPending].Round(2),
		Approved: totals[enums.CommissionStatusApproved].Round(2),
		Paid:     totals[enums.CommissionStatusPaid].Round(2),
		Reversed: totals[enums.CommissionStatusReversed].Round(2),
	}, nil
}
