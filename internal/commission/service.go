package commission

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/internal/ledger"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pdalogistics-backend/pkg/errors"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox/payloads"
)

const defaultApprovalBatch = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the commission lines of every order: recording them once,
// scheduling their approval, and voiding them when an order aborts.
type Service interface {
	Rates(ctx context.Context) (Rates, error)
	CalculateCommission(ctx context.Context, in Input) (Breakdown, error)
	Record(ctx context.Context, tx *gorm.DB, order *models.Order, rates Rates) (*Breakdown, error)
	Release(ctx context.Context, tx *gorm.DB, orderID int64, now time.Time) (int64, error)
	Reverse(ctx context.Context, tx *gorm.DB, orderID int64, reason enums.OrderStatus, now time.Time) ([]int64, error)
	ApproveDue(ctx context.Context, now time.Time, limit int) (int, error)
	ListByOrder(ctx context.Context, orderID int64) ([]models.CommissionTransaction, error)
}

// ServiceParams wires the commission service.
type ServiceParams struct {
	Repository  Repository
	Rates       RateSource
	Ledger      ledger.Service
	Tx          txRunner
	Outbox      outboxPublisher
	Logger      *logger.Logger
	GracePeriod time.Duration
}

type service struct {
	repo   Repository
	rates  RateSource
	ledger ledger.Service
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	grace  time.Duration
}

// NewService builds a commission service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	if params.Rates == nil {
		return nil, fmt.Errorf("rate source required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.GracePeriod < 0 {
		return nil, fmt.Errorf("grace period must not be negative")
	}
	return &service{
		repo:   params.Repository,
		rates:  params.Rates,
		ledger: params.Ledger,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
		grace:  params.GracePeriod,
	}, nil
}

func (s *service) Rates(ctx context.Context) (Rates, error) {
	rates, err := s.rates.GetRates(ctx)
	if err != nil {
		return Rates{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission rates")
	}
	return rates, nil
}

// CalculateCommission loads the rate table once and splits in.FinalAmount.
func (s *service) CalculateCommission(ctx context.Context, in Input) (Breakdown, error) {
	rates, err := s.Rates(ctx)
	if err != nil {
		return Breakdown{}, err
	}
	return Calculate(in, rates), nil
}

// Record writes the party lines and earnings for an order that has not
// been settled yet and stamps the totals on the order row. The caller must
// hold the order's row lock inside tx. An order already marked calculated is
// left untouched and nil is returned.
func (s *service) Record(ctx context.Context, tx *gorm.DB, order *models.Order, rates Rates) (*Breakdown, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.CommissionCalculated {
		return nil, nil
	}

	breakdown := Calculate(InputFromOrder(order), rates)
	repo := s.repo.WithTx(tx)
	for _, line := range breakdown.PartyLines() {
		row := &models.CommissionTransaction{
			OrderID:    order.ID,
			PartyID:    line.PartyID,
			PartyRole:  line.PartyRole,
			Type:       line.Type,
			Amount:     line.Amount,
			Percentage: line.Percentage(),
			BaseAmount: line.BaseAmount,
			Status:     enums.CommissionStatusPending,
		}
		if err := repo.Create(ctx, row); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create commission transaction")
		}
		if _, err := s.ledger.RecordEarning(ctx, tx, ledger.RecordEarningInput{
			CommissionTransactionID: row.ID,
			OrderID:                 order.ID,
			AgentID:                 line.PartyID,
			Type:                    line.Type,
			Amount:                  line.Amount,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record agent earning")
		}
	}
	if err := repo.ApplyToOrder(ctx, order.ID, breakdown); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store order commission totals")
	}

	applyToModel(order, breakdown)

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"final_amount": breakdown.Final.String(),
			"platform_net": breakdown.PlatformNet.String(),
			"lines":        len(breakdown.PartyLines()),
		})
		s.logg.Info(logCtx, "commission recorded")
	}
	return &breakdown, nil
}

// Release starts the grace period on the order's pending lines.
func (s *service) Release(ctx context.Context, tx *gorm.DB, orderID int64, now time.Time) (int64, error) {
	affected, err := s.repo.WithTx(tx).ScheduleApproval(ctx, orderID, now.UTC().Add(s.grace))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule commission approval")
	}
	return affected, nil
}

// Reverse voids unpaid lines and their earnings and emits one event when
// anything changed.
func (s *service) Reverse(ctx context.Context, tx *gorm.DB, orderID int64, reason enums.OrderStatus, now time.Time) ([]int64, error) {
	ids, err := s.repo.WithTx(tx).Reverse(ctx, orderID, now.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse commission")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.ledger.SetStatus(ctx, tx, ids, enums.CommissionStatusReversed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse agent earnings")
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventCommissionReversed,
		AggregateType: enums.AggregateCommission,
		AggregateID:   outbox.OrderAggregateID(orderID),
		Version:       1,
		OccurredAt:    now.UTC(),
		Data: payloads.CommissionReversedEvent{
			OrderID:       orderID,
			CommissionIDs: ids,
			Reason:        reason,
			ReversedAt:    now.UTC(),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	return ids, nil
}

// ApproveDue approves every pending line whose grace period has elapsed and
// returns how many lines changed.
func (s *service) ApproveDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultApprovalBatch
	}
	now = now.UTC()
	approved := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		due, err := repo.FindDueForApproval(ctx, now, limit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find due commission")
		}
		if len(due) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(due))
		byOrder := make(map[int64][]models.CommissionTransaction)
		for _, row := range due {
			ids = append(ids, row.ID)
			byOrder[row.OrderID] = append(byOrder[row.OrderID], row)
		}
		affected, err := repo.MarkApproved(ctx, ids, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve commission")
		}
		if err := s.ledger.SetStatus(ctx, tx, ids, enums.CommissionStatusApproved); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve agent earnings")
		}

		orderIDs := make([]int64, 0, len(byOrder))
		for orderID := range byOrder {
			orderIDs = append(orderIDs, orderID)
		}
		sort.Slice(orderIDs, func(i, j int) bool { return orderIDs[i] < orderIDs[j] })

		for _, orderID := range orderIDs {
			rows := byOrder[orderID]
			lines := make([]payloads.CommissionLine, 0, len(rows))
			for _, row := range rows {
				lines = append(lines, payloads.CommissionLine{
					CommissionID: row.ID,
					PartyID:      row.PartyID,
					PartyRole:    row.PartyRole,
					Type:         row.Type,
					Amount:       row.Amount.StringFixed(moneyPlaces),
				})
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventCommissionApproved,
				AggregateType: enums.AggregateCommission,
				AggregateID:   outbox.OrderAggregateID(orderID),
				Version:       1,
				OccurredAt:    now,
				Data: payloads.CommissionApprovedEvent{
					OrderID:    orderID,
					Lines:      lines,
					ApprovedAt: now,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		approved = int(affected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return approved, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID int64) ([]models.CommissionTransaction, error) {
	rows, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commission")
	}
	return rows, nil
}

func applyToModel(order *models.Order, b Breakdown) {
	order.BaseAmount = b.Base
	order.PlatformMargin = b.PlatformMargin
	order.SystemMaintenance = b.SystemMaintenance
	order.HomeDeliveryFee = b.HomeDeliveryFee
	order.AgentCommission = b.AmountFor(enums.CommissionTypeFastDeliveryAgent)
	order.PSMCommission = b.AmountFor(enums.CommissionTypePSMHelped).Add(b.AmountFor(enums.CommissionTypePSMReceived))
	order.PickupAgentCommission = b.AmountFor(enums.CommissionTypePickupDeliveryAgent)
	order.ReferralCommission = b.AmountFor(enums.CommissionTypeReferral)
	order.CommissionCalculated = true
}
