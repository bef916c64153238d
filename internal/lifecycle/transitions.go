package lifecycle

import (
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

// Transition tables per delivery method. ASSIGNED_TO_AGENT never appears as
// a target: only order acceptance may enter it.
var (
	pickupPath = map[enums.OrderStatus][]enums.OrderStatus{
		enums.OrderStatusOrderPlaced:      {enums.OrderStatusPaymentConfirmed},
		enums.OrderStatusAssignedToAgent:  {enums.OrderStatusEnRouteToSeller},
		enums.OrderStatusEnRouteToSeller:  {enums.OrderStatusAtSeller},
		enums.OrderStatusAtSeller:         {enums.OrderStatusPickedFromSeller},
		enums.OrderStatusPickedFromSeller: {enums.OrderStatusEnRouteToPSM},
		enums.OrderStatusEnRouteToPSM:     {enums.OrderStatusDeliveredToPSM},
		enums.OrderStatusDeliveredToPSM:   {enums.OrderStatusReadyForPickup},
		enums.OrderStatusReadyForPickup:   {enums.OrderStatusCollectedByBuyer},
		enums.OrderStatusCollectedByBuyer: {enums.OrderStatusCompleted},
	}
	homePath = map[enums.OrderStatus][]enums.OrderStatus{
		enums.OrderStatusOrderPlaced:      {enums.OrderStatusPaymentConfirmed},
		enums.OrderStatusAssignedToAgent:  {enums.OrderStatusEnRouteToSeller},
		enums.OrderStatusEnRouteToSeller:  {enums.OrderStatusAtSeller},
		enums.OrderStatusAtSeller:         {enums.OrderStatusPickedFromSeller},
		enums.OrderStatusPickedFromSeller: {enums.OrderStatusEnRouteToBuyer},
		enums.OrderStatusEnRouteToBuyer:   {enums.OrderStatusDeliveredToBuyer},
		enums.OrderStatusDeliveredToBuyer: {enums.OrderStatusCompleted},
	}
)

// confirmationGates lists the handover that must be on record before the
// order may enter the status.
var confirmationGates = map[enums.OrderStatus]enums.ConfirmationType{
	enums.OrderStatusPickedFromSeller: enums.ConfirmationTypeSellerHandover,
	enums.OrderStatusDeliveredToPSM:   enums.ConfirmationTypePSMDeposit,
	enums.OrderStatusDeliveredToBuyer: enums.ConfirmationTypeBuyerDelivery,
	enums.OrderStatusCollectedByBuyer: enums.ConfirmationTypeBuyerPickup,
}

// NextStatuses returns every status reachable in one step from the current
// status under the delivery method, abort states included.
func NextStatuses(method enums.DeliveryMethod, from enums.OrderStatus) []enums.OrderStatus {
	if from.IsTerminal() {
		return nil
	}
	table := homePath
	if method == enums.DeliveryMethodPickup {
		table = pickupPath
	} else if method != enums.DeliveryMethodHomeDelivery {
		return nil
	}

	next := append([]enums.OrderStatus(nil), table[from]...)
	if cancellable(from) {
		next = append(next, enums.OrderStatusCancelled)
	}
	if disputable(from) {
		next = append(next, enums.OrderStatusDisputed)
	}
	return next
}

// Allowed reports whether from -> to is a legal single step.
func Allowed(method enums.DeliveryMethod, from, to enums.OrderStatus) bool {
	for _, candidate := range NextStatuses(method, from) {
		if candidate == to {
			return true
		}
	}
	return false
}

// RequiredConfirmation returns the handover that gates entering status.
func RequiredConfirmation(status enums.OrderStatus) (enums.ConfirmationType, bool) {
	t, ok := confirmationGates[status]
	return t, ok
}

// cancellable holds up to and including PICKED_FROM_SELLER.
func cancellable(s enums.OrderStatus) bool {
	return s.Rank() >= 0 && s.Rank() <= enums.OrderStatusPickedFromSeller.Rank()
}

func disputable(s enums.OrderStatus) bool {
	return s.AtLeast(enums.OrderStatusAssignedToAgent)
}

// commissionStatus reports the revenue-bearing states at which commission is
// recorded if acceptance did not already do it.
func commissionStatus(s enums.OrderStatus) bool {
	switch s {
	case enums.OrderStatusDeliveredToPSM, enums.OrderStatusDeliveredToBuyer, enums.OrderStatusCollectedByBuyer:
		return true
	}
	return false
}
