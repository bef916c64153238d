package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

// OrderAssignedEvent is emitted when an agent wins an order.
type OrderAssignedEvent struct {
	OrderID        int64                `json:"order_id"`
	OrderNumber    string               `json:"order_number"`
	Kind           enums.OrderKind      `json:"order_kind"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method"`
	AgentID        uuid.UUID            `json:"agent_id"`
	BuyerID        uuid.UUID            `json:"buyer_id"`
	SellerID       uuid.UUID            `json:"seller_id"`
	AssignedAt     time.Time            `json:"assigned_at"`
}

// OrderStatusChangedEvent carries every party a status change may concern so
// consumers never need to reload the order.
type OrderStatusChangedEvent struct {
	OrderID               int64                `json:"order_id"`
	OrderNumber           string               `json:"order_number"`
	Kind                  enums.OrderKind      `json:"order_kind"`
	DeliveryMethod        enums.DeliveryMethod `json:"delivery_method"`
	FromStatus            enums.OrderStatus    `json:"from_status"`
	ToStatus              enums.OrderStatus    `json:"to_status"`
	ActorID               uuid.UUID            `json:"actor_id"`
	ActorRole             enums.PartyRole      `json:"actor_role"`
	BuyerID               uuid.UUID            `json:"buyer_id"`
	SellerID              uuid.UUID            `json:"seller_id"`
	AgentID               *uuid.UUID           `json:"agent_id,omitempty"`
	PSMID                 *uuid.UUID           `json:"psm_id,omitempty"`
	PickupDeliveryAgentID *uuid.UUID           `json:"pickup_delivery_agent_id,omitempty"`
	Notes                 string               `json:"notes,omitempty"`
	ChangedAt             time.Time            `json:"changed_at"`
}

// CommissionLine is one approved or reversed commission row.
type CommissionLine struct {
	CommissionID int64                `json:"commission_id"`
	PartyID      uuid.UUID            `json:"party_id"`
	PartyRole    enums.PartyRole      `json:"party_role"`
	Type         enums.CommissionType `json:"commission_type"`
	Amount       string               `json:"amount"`
}

// CommissionApprovedEvent is emitted once the grace period on an order's
// commission lines elapses.
type CommissionApprovedEvent struct {
	OrderID    int64            `json:"order_id"`
	Lines      []CommissionLine `json:"lines"`
	ApprovedAt time.Time        `json:"approved_at"`
}

// CommissionReversedEvent is emitted when a cancelled or disputed order voids
// its unpaid commission.
type CommissionReversedEvent struct {
	OrderID       int64             `json:"order_id"`
	CommissionIDs []int64           `json:"commission_ids"`
	Reason        enums.OrderStatus `json:"reason"`
	ReversedAt    time.Time         `json:"reversed_at"`
}
