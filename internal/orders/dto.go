package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/pagination"
)

// AvailableOrderFilters narrows the open-order queue.
type AvailableOrderFilters struct {
	Kind           *enums.OrderKind
	DeliveryMethod *enums.DeliveryMethod
}

// OrderSummary is the queue row shown to agents browsing work.
type OrderSummary struct {
	ID              int64                `json:"id"`
	OrderNumber     string               `json:"order_number"`
	Kind            enums.OrderKind      `json:"order_kind"`
	Status          enums.OrderStatus    `json:"status"`
	DeliveryMethod  enums.DeliveryMethod `json:"delivery_method"`
	FinalAmount     string               `json:"final_amount"`
	PickupAddress   string               `json:"pickup_address"`
	PickupLat       float64              `json:"pickup_lat"`
	PickupLng       float64              `json:"pickup_lng"`
	DeliveryAddress string               `json:"delivery_address"`
	AgentID         *uuid.UUID           `json:"agent_id,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// OrderList is a cursor-paginated page of summaries.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ListAvailableInput is the request for the open-order queue.
type ListAvailableInput struct {
	Kind           *enums.OrderKind
	DeliveryMethod *enums.DeliveryMethod
	Page           pagination.Params
}

// HistoryEntry is one row of an order's audit trail.
type HistoryEntry struct {
	FromStatus *enums.OrderStatus `json:"from_status,omitempty"`
	ToStatus   enums.OrderStatus  `json:"to_status"`
	ChangedBy  uuid.UUID          `json:"changed_by"`
	Reason     *string            `json:"reason,omitempty"`
	Latitude   *float64           `json:"latitude,omitempty"`
	Longitude  *float64           `json:"longitude,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

func summaryFromModel(o models.Order) OrderSummary {
	return OrderSummary{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Kind:            o.Kind,
		Status:          o.Status,
		DeliveryMethod:  o.DeliveryMethod,
		FinalAmount:     o.FinalAmount.StringFixed(2),
		PickupAddress:   o.PickupAddress,
		PickupLat:       o.PickupLat,
		PickupLng:       o.PickupLng,
		DeliveryAddress: o.DeliveryAddress,
		AgentID:         o.AgentID,
		CreatedAt:       o.CreatedAt,
	}
}

// HistoryFromModels converts stored history rows for API responses.
func HistoryFromModels(rows []models.StatusHistory) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, HistoryEntry{
			FromStatus: row.FromStatus,
			ToStatus:   row.ToStatus,
			ChangedBy:  row.ChangedBy,
			Reason:     row.Reason,
			Latitude:   row.Latitude,
			Longitude:  row.Longitude,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out
}
