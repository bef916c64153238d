package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/internal/commission"
	"github.com/angelmondragon/pdalogistics-backend/internal/orders"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pdalogistics-backend/pkg/errors"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
	"github.com/angelmondragon/pdalogistics-backend/pkg/metrics"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/pdalogistics-backend/pkg/security"
	"github.com/angelmondragon/pdalogistics-backend/pkg/types"
	"github.com/angelmondragon/pdalogistics-backend/pkg/validate"
)

const (
	defaultMaxOpenOrders      = 5
	defaultDeliveryCodeLength = 6
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AcceptOrderInput is an agent's claim on an open order. OrderKind is
// optional; when set the order must be of that kind.
type AcceptOrderInput struct {
	OrderID   int64           `json:"order_id" validate:"gt=0"`
	AgentID   uuid.UUID       `json:"agent_id" validate:"required"`
	OrderKind enums.OrderKind `json:"order_kind" validate:"enum"`
}

// AcceptResult describes a won assignment.
type AcceptResult struct {
	Order        *models.Order
	DeliveryCode string
	Commission   *commission.Breakdown
}

// Service hands open orders to agents.
type Service interface {
	AcceptOrder(ctx context.Context, input AcceptOrderInput) (*AcceptResult, error)
}

// ServiceParams wires the assignment service.
type ServiceParams struct {
	Orders             orders.Repository
	Commission         commission.Service
	Tx                 txRunner
	Outbox             outboxPublisher
	Logger             *logger.Logger
	Metrics            *metrics.OrderMetrics
	MaxOpenOrders      int
	DeliveryCodeLength int
	Clock              func() time.Time
}

type service struct {
	orders     orders.Repository
	commission commission.Service
	tx         txRunner
	outbox     outboxPublisher
	logg       *logger.Logger
	metrics    *metrics.OrderMetrics
	maxOpen    int64
	codeLength int
	now        func() time.Time
}

// NewService builds an assignment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Commission == nil {
		return nil, fmt.Errorf("commission service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	maxOpen := params.MaxOpenOrders
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenOrders
	}
	codeLength := params.DeliveryCodeLength
	if codeLength <= 0 {
		codeLength = defaultDeliveryCodeLength
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		orders:     params.Orders,
		commission: params.Commission,
		tx:         params.Tx,
		outbox:     params.Outbox,
		logg:       params.Logger,
		metrics:    params.Metrics,
		maxOpen:    int64(maxOpen),
		codeLength: codeLength,
		now:        clock,
	}, nil
}

// AcceptOrder assigns the order to the agent. Under concurrent calls for one
// order exactly one succeeds; the rest get CodeOrderAlreadyAssigned and
// write nothing.
func (s *service) AcceptOrder(ctx context.Context, input AcceptOrderInput) (*AcceptResult, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	ctx = s.withFields(ctx, input)

	rates, err := s.commission.Rates(ctx)
	if err != nil {
		return nil, err
	}
	code, err := security.GenerateCode(s.codeLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate delivery code")
	}

	var result *AcceptResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)

		// READ COMMITTED lets two accepts for one agent both see the old
		// count, so the count runs under a per-agent lock
		if err := repo.LockAgent(ctx, input.AgentID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock agent")
		}
		open, err := repo.CountOpenByAgent(ctx, input.AgentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count agent orders")
		}
		if open >= s.maxOpen {
			return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "agent has reached the open order limit").
				WithDetails(map[string]any{"open_orders": open, "max_open_orders": s.maxOpen})
		}

		order, err := repo.FindForUpdate(ctx, input.OrderID)
		if err != nil {
			return orders.MapLookupError(err, input.OrderID)
		}
		if input.OrderKind != "" && order.Kind != input.OrderKind {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %d not found", input.OrderID))
		}
		if order.AgentID != nil {
			return alreadyAssigned(order.ID)
		}
		if !order.Status.OpenForAssignment() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not open for assignment").
				WithDetails(map[string]any{"status": order.Status})
		}

		now := s.now().UTC()
		claimed, err := repo.ClaimIfUnassigned(ctx, orders.Claim{
			OrderID:      order.ID,
			AgentID:      input.AgentID,
			DeliveryCode: code,
			AssignedAt:   now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
		}
		if !claimed {
			return alreadyAssigned(order.ID)
		}

		from := order.Status
		agentID := input.AgentID
		order.AgentID = &agentID
		order.Status = enums.OrderStatusAssignedToAgent
		order.DeliveryCode = &code
		order.AssignedAt = &now

		breakdown, err := s.commission.Record(ctx, tx, order, rates)
		if err != nil {
			return err
		}

		if err := repo.AppendHistory(ctx, &models.StatusHistory{
			OrderID:    order.ID,
			FromStatus: &from,
			ToStatus:   enums.OrderStatusAssignedToAgent,
			ChangedBy:  agentID,
			Metadata:   types.JSONMap{"order_kind": string(order.Kind)},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderAssigned,
			AggregateType: enums.AggregateOrder,
			AggregateID:   outbox.OrderAggregateID(order.ID),
			Actor:         &outbox.ActorRef{UserID: agentID, Role: enums.PartyRoleAgent},
			OccurredAt:    now,
			Data: payloads.OrderAssignedEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				Kind:           order.Kind,
				DeliveryMethod: order.DeliveryMethod,
				AgentID:        agentID,
				BuyerID:        order.BuyerID,
				SellerID:       order.SellerID,
				AssignedAt:     now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order assigned")
		}

		result = &AcceptResult{Order: order, DeliveryCode: code, Commission: breakdown}
		return nil
	})
	if err != nil {
		s.reject(ctx, err)
		return nil, err
	}

	s.metrics.IncAssignment("accepted")
	if s.logg != nil {
		s.logg.Info(ctx, "order accepted")
	}
	return result, nil
}

func alreadyAssigned(orderID int64) error {
	return pkgerrors.New(pkgerrors.CodeOrderAlreadyAssigned, "order already assigned").
		WithDetails(map[string]any{"order_id": orderID})
}

func (s *service) reject(ctx context.Context, err error) {
	typed := pkgerrors.As(err)
	result := "error"
	if typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeOrderAlreadyAssigned:
			result = "already_assigned"
		case pkgerrors.CodeCapacityExceeded:
			result = "capacity_exceeded"
		case pkgerrors.CodeNotFound:
			result = "not_found"
		case pkgerrors.CodeStateConflict:
			result = "not_open"
		}
	}
	s.metrics.IncAssignment(result)
	if s.logg == nil {
		return
	}
	if pkgerrors.IsExpected(err) || pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		s.logg.Info(s.logg.WithField(ctx, "reason", err.Error()), "order acceptance rejected")
		return
	}
	s.logg.Error(ctx, "order acceptance failed", err)
}

func (s *service) withFields(ctx context.Context, input AcceptOrderInput) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID)
	return s.logg.WithAgentID(ctx, input.AgentID.String())
}
