package lifecycle

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
	"github.com/angelmondragon/pdalogistics-backend/pkg/types"
	"github.com/angelmondragon/pdalogistics-backend/pkg/validate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ConfirmationLookup answers whether a handover has been confirmed, reading
// through the caller's transaction.
type ConfirmationLookup interface {
	HasConfirmation(ctx context.Context, tx *gorm.DB, orderID int64, confirmationType enums.ConfirmationType) (bool, error)
}

// Location is where the actor stood when requesting the change.
type Location struct {
	Lat      float64  `json:"lat" validate:"latitude"`
	Lng      float64  `json:"lng" validate:"longitude"`
	Accuracy *float64 `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
}

// TransitionInput requests a single status step.
type TransitionInput struct {
	OrderID   int64             `json:"order_id" validate:"gt=0"`
	NewStatus enums.OrderStatus `json:"new_status" validate:"required,enum"`
	ActorID   uuid.UUID         `json:"actor_id" validate:"required"`
	ActorRole enums.PartyRole   `json:"actor_role" validate:"enum"`
	Reason    string            `json:"reason" validate:"max=1000"`
	Location  *Location         `json:"location,omitempty"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
}

// TransitionResult describes a committed step.
type TransitionResult struct {
	Order *models.Order
	From  enums.OrderStatus
	To    enums.OrderStatus
	// ReversedCommissionIDs is set when the step voided commission lines.
	ReversedCommissionIDs []int64
}

// Service advances orders through their lifecycle.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error)
	AllowedTransitions(ctx context.Context, orderID int64) ([]enums.OrderStatus, error)
}

// ServiceParams wires the lifecycle service.
type ServiceParams struct {
	Orders        orders.Repository
	Commission    commission.Service
	Confirmations ConfirmationLookup
	Tx            txRunner
	Outbox        outboxPublisher
	Logger        *logger.Logger
	Metrics       *metrics.OrderMetrics
	// ReleaseSellerPayoutOnPSMDeposit releases the seller payout when goods
	// reach the pickup site rather than when the buyer collects them.
	ReleaseSellerPayoutOnPSMDeposit bool
	Clock                           func() time.Time
}

type service struct {
	orders        orders.Repository
	commission    commission.Service
	confirmations ConfirmationLookup
	tx            txRunner
	outbox        outboxPublisher
	logg          *logger.Logger
	metrics       *metrics.OrderMetrics
	payoutOnPSM   bool
	now           func() time.Time
}

// NewService builds a lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Commission == nil {
		return nil, fmt.Errorf("commission service required")
	}
	if params.Confirmations == nil {
		return nil, fmt.Errorf("confirmation lookup required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		orders:        params.Orders,
		commission:    params.Commission,
		confirmations: params.Confirmations,
		tx:            params.Tx,
		outbox:        params.Outbox,
		logg:          params.Logger,
		metrics:       params.Metrics,
		payoutOnPSM:   params.ReleaseSellerPayoutOnPSMDeposit,
		now:           clock,
	}, nil
}

func (s *service) AllowedTransitions(ctx context.Context, orderID int64) ([]enums.OrderStatus, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, orders.MapLookupError(err, orderID)
	}
	return NextStatuses(order.DeliveryMethod, order.Status), nil
}

// Transition moves the order one step. Rejected steps write nothing.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, input.OrderID)
		ctx = s.logg.WithField(ctx, "to_status", string(input.NewStatus))
	}

	var rates *commission.Rates
	if commissionStatus(input.NewStatus) {
		loaded, err := s.commission.Rates(ctx)
		if err != nil {
			return nil, err
		}
		rates = &loaded
	}

	var result *TransitionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, input.OrderID)
		if err != nil {
			return orders.MapLookupError(err, input.OrderID)
		}
		from, to := order.Status, input.NewStatus
		if !Allowed(order.DeliveryMethod, from, to) {
			return invalidTransition(order, to)
		}

		if gate, ok := RequiredConfirmation(to); ok {
			confirmed, err := s.confirmations.HasConfirmation(ctx, tx, order.ID, gate)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check confirmation")
			}
			if !confirmed {
				return pkgerrors.New(pkgerrors.CodeConfirmationRequired, fmt.Sprintf("%s confirmation required", gate)).
					WithDetails(map[string]any{"confirmation_type": gate, "to_status": to})
			}
		}

		now := s.now().UTC()
		updates := s.statusUpdates(to, now)
		moved, err := repo.UpdateStatus(ctx, order.ID, from, to, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return invalidTransition(order, to)
		}
		applyUpdates(order, to, updates)

		if err := repo.AppendHistory(ctx, historyEntry(order.ID, from, input)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		result = &TransitionResult{Order: order, From: from, To: to}
		if err := s.sideEffects(ctx, tx, order, rates, result, now); err != nil {
			return err
		}

		role := input.ActorRole
		if role == "" {
			role = ResolveActorRole(order, input.ActorID)
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   outbox.OrderAggregateID(order.ID),
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: role},
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:               order.ID,
				OrderNumber:           order.OrderNumber,
				Kind:                  order.Kind,
				DeliveryMethod:        order.DeliveryMethod,
				FromStatus:            from,
				ToStatus:              to,
				ActorID:               input.ActorID,
				ActorRole:             role,
				BuyerID:               order.BuyerID,
				SellerID:              order.SellerID,
				AgentID:               order.AgentID,
				PSMID:                 order.PSMID,
				PickupDeliveryAgentID: order.PickupDeliveryAgentID,
				Notes:                 input.Reason,
				ChangedAt:             now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status change")
		}
		return nil
	})
	if err != nil {
		s.logRejection(ctx, err)
		return nil, err
	}

	s.metrics.IncTransition(string(result.From), string(result.To))
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "from_status", string(result.From)), "order status changed")
	}
	return result, nil
}

// statusUpdates returns the columns written alongside the status itself.
func (s *service) statusUpdates(to enums.OrderStatus, now time.Time) map[string]any {
	updates := map[string]any{}
	switch to {
	case enums.OrderStatusPickedFromSeller:
		updates["picked_at"] = now
	case enums.OrderStatusDeliveredToPSM:
		if s.payoutOnPSM {
			updates["seller_payout_released"] = true
		}
	case enums.OrderStatusDeliveredToBuyer, enums.OrderStatusCollectedByBuyer:
		updates["delivered_at"] = now
		updates["seller_payout_released"] = true
		updates["agent_commission_released"] = true
	case enums.OrderStatusCompleted:
		updates["completed_at"] = now
		updates["seller_payout_released"] = true
		updates["agent_commission_released"] = true
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
	}
	return updates
}

func applyUpdates(order *models.Order, to enums.OrderStatus, updates map[string]any) {
	order.Status = to
	for column, value := range updates {
		switch column {
		case "picked_at":
			at := value.(time.Time)
			order.PickedAt = &at
		case "delivered_at":
			at := value.(time.Time)
			order.DeliveredAt = &at
		case "completed_at":
			at := value.(time.Time)
			order.CompletedAt = &at
		case "cancelled_at":
			at := value.(time.Time)
			order.CancelledAt = &at
		case "seller_payout_released":
			order.SellerPayoutReleased = true
		case "agent_commission_released":
			order.AgentCommissionReleased = true
		}
	}
}

func (s *service) sideEffects(ctx context.Context, tx *gorm.DB, order *models.Order, rates *commission.Rates, result *TransitionResult, now time.Time) error {
	to := result.To
	if commissionStatus(to) && !order.CommissionCalculated && rates != nil {
		if _, err := s.commission.Record(ctx, tx, order, *rates); err != nil {
			return err
		}
	}

	switch to {
	case enums.OrderStatusDeliveredToBuyer, enums.OrderStatusCollectedByBuyer, enums.OrderStatusCompleted:
		if _, err := s.commission.Release(ctx, tx, order.ID, now); err != nil {
			return err
		}
	case enums.OrderStatusCancelled, enums.OrderStatusDisputed:
		ids, err := s.commission.Reverse(ctx, tx, order.ID, to, now)
		if err != nil {
			return err
		}
		result.ReversedCommissionIDs = ids
	}
	return nil
}

func historyEntry(orderID int64, from enums.OrderStatus, input TransitionInput) *models.StatusHistory {
	entry := &models.StatusHistory{
		OrderID:    orderID,
		FromStatus: &from,
		ToStatus:   input.NewStatus,
		ChangedBy:  input.ActorID,
	}
	if input.Reason != "" {
		reason := input.Reason
		entry.Reason = &reason
	}
	if input.Location != nil {
		lat, lng := input.Location.Lat, input.Location.Lng
		entry.Latitude = &lat
		entry.Longitude = &lng
	}
	if len(input.Metadata) > 0 {
		entry.Metadata = types.JSONMap(input.Metadata)
	}
	return entry
}

func invalidTransition(order *models.Order, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", order.Status, to)).
		WithDetails(map[string]any{
			"from_status": order.Status,
			"to_status":   to,
			"allowed":     NextStatuses(order.DeliveryMethod, order.Status),
		})
}

// ResolveActorRole infers the actor's role from the parties on the order.
func ResolveActorRole(order *models.Order, actor uuid.UUID) enums.PartyRole {
	switch {
	case order.AgentID != nil && *order.AgentID == actor:
		return enums.PartyRoleAgent
	case order.PickupDeliveryAgentID != nil && *order.PickupDeliveryAgentID == actor:
		return enums.PartyRolePickupDeliveryAgent
	case order.PSMID != nil && *order.PSMID == actor:
		return enums.PartyRolePSM
	case order.BuyerID == actor:
		return enums.PartyRoleBuyer
	case order.SellerID == actor:
		return enums.PartyRoleSeller
	default:
		return enums.PartyRoleSystem
	}
}

func (s *service) logRejection(ctx context.Context, err error) {
	if s.logg == nil {
		return
	}
	if pkgerrors.IsExpected(err) || pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		s.logg.Info(s.logg.WithField(ctx, "reason", err.Error()), "order transition rejected")
		return
	}
	s.logg.Error(ctx, "order transition failed", err)
}
