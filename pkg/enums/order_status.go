package enums

import (
	"fmt"
	"strings"
)

// OrderStatus is the closed set of lifecycle states shared by every order kind.
type OrderStatus string

const (
	OrderStatusOrderPlaced      OrderStatus = "ORDER_PLACED"
	OrderStatusPaymentConfirmed OrderStatus = "PAYMENT_CONFIRMED"
	OrderStatusAssignedToAgent  OrderStatus = "ASSIGNED_TO_AGENT"
	OrderStatusEnRouteToSeller  OrderStatus = "EN_ROUTE_TO_SELLER"
	OrderStatusAtSeller         OrderStatus = "AT_SELLER"
	OrderStatusPickedFromSeller OrderStatus = "PICKED_FROM_SELLER"
	OrderStatusEnRouteToPSM     OrderStatus = "EN_ROUTE_TO_PSM"
	OrderStatusDeliveredToPSM   OrderStatus = "DELIVERED_TO_PSM"
	OrderStatusReadyForPickup   OrderStatus = "READY_FOR_PICKUP"
	OrderStatusCollectedByBuyer OrderStatus = "COLLECTED_BY_BUYER"
	OrderStatusEnRouteToBuyer   OrderStatus = "EN_ROUTE_TO_BUYER"
	OrderStatusDeliveredToBuyer OrderStatus = "DELIVERED_TO_BUYER"
	OrderStatusCompleted        OrderStatus = "COMPLETED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
	OrderStatusDisputed         OrderStatus = "DISPUTED"
)

// validOrderStatuses is ordered by lifecycle position. The pickup and home
// branches share a rank from PICKED_FROM_SELLER onward.
var validOrderStatuses = []OrderStatus{
	OrderStatusOrderPlaced,
	OrderStatusPaymentConfirmed,
	OrderStatusAssignedToAgent,
	OrderStatusEnRouteToSeller,
	OrderStatusAtSeller,
	OrderStatusPickedFromSeller,
	OrderStatusEnRouteToPSM,
	OrderStatusDeliveredToPSM,
	OrderStatusReadyForPickup,
	OrderStatusCollectedByBuyer,
	OrderStatusEnRouteToBuyer,
	OrderStatusDeliveredToBuyer,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusDisputed,
}

var orderStatusRank = map[OrderStatus]int{
	OrderStatusOrderPlaced:      0,
	OrderStatusPaymentConfirmed: 1,
	OrderStatusAssignedToAgent:  2,
	OrderStatusEnRouteToSeller:  3,
	OrderStatusAtSeller:         4,
	OrderStatusPickedFromSeller: 5,
	OrderStatusEnRouteToPSM:     6,
	OrderStatusDeliveredToPSM:   7,
	OrderStatusReadyForPickup:   8,
	OrderStatusCollectedByBuyer: 9,
	OrderStatusEnRouteToBuyer:   6,
	OrderStatusDeliveredToBuyer: 7,
	OrderStatusCompleted:        10,
}

// legacyOrderStatuses maps spellings found in older clients and imports.
var legacyOrderStatuses = map[string]OrderStatus{
	"pending":            OrderStatusOrderPlaced,
	"placed":             OrderStatusOrderPlaced,
	"confirmed":          OrderStatusPaymentConfirmed,
	"paid":               OrderStatusPaymentConfirmed,
	"assigned":           OrderStatusAssignedToAgent,
	"accepted":           OrderStatusAssignedToAgent,
	"en_route":           OrderStatusEnRouteToSeller,
	"at_seller":          OrderStatusAtSeller,
	"picked_up":          OrderStatusPickedFromSeller,
	"picked_from_seller": OrderStatusPickedFromSeller,
	"in_transit":         OrderStatusEnRouteToBuyer,
	"at_psm":             OrderStatusDeliveredToPSM,
	"ready":              OrderStatusReadyForPickup,
	"collected":          OrderStatusCollectedByBuyer,
	"delivered":          OrderStatusDeliveredToBuyer,
	"completed":          OrderStatusCompleted,
	"canceled":           OrderStatusCancelled,
	"cancelled":          OrderStatusCancelled,
	"disputed":           OrderStatusDisputed,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusDisputed:
		return true
	default:
		return false
	}
}

// Rank returns the lifecycle position, or -1 for the abort states.
func (s OrderStatus) Rank() int {
	if rank, ok := orderStatusRank[s]; ok {
		return rank
	}
	return -1
}

// AtLeast reports whether s is at or beyond other along the lifecycle.
func (s OrderStatus) AtLeast(other OrderStatus) bool {
	return s.Rank() >= other.Rank() && s.Rank() >= 0
}

// OpenForAssignment reports whether an agent may still claim the order.
func (s OrderStatus) OpenForAssignment() bool {
	return s == OrderStatusOrderPlaced || s == OrderStatusPaymentConfirmed
}

// OpenOrderStatuses lists statuses that count against an agent's capacity.
func OpenOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusAssignedToAgent,
		OrderStatusEnRouteToSeller,
		OrderStatusAtSeller,
		OrderStatusPickedFromSeller,
		OrderStatusEnRouteToPSM,
		OrderStatusEnRouteToBuyer,
	}
}

// OrderStatuses lists every status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return append([]OrderStatus(nil), validOrderStatuses...)
}

// ParseOrderStatus converts raw input into an OrderStatus, accepting the
// canonical upper-case names and known legacy spellings.
func ParseOrderStatus(value string) (OrderStatus, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validOrderStatuses {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	if mapped, ok := legacyOrderStatuses[strings.ToLower(trimmed)]; ok {
		return mapped, nil
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
