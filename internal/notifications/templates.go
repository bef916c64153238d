package notifications

import (
	"fmt"

	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

type template struct {
	Type       enums.NotificationType
	Title      string
	Message    string
	Recipients []enums.PartyRole
}

var (
	buyer  = enums.PartyRoleBuyer
	seller = enums.PartyRoleSeller
	agent  = enums.PartyRoleAgent
	psm    = enums.PartyRolePSM
	admin  = enums.PartyRoleAdmin
)

// statusTemplates maps every order status to exactly one notification type.
var statusTemplates = map[enums.OrderStatus]template{
	enums.OrderStatusOrderPlaced: {
		Type: enums.NotificationTypeOrderPlaced, Title: "Order placed",
		Message: "Order %s has been placed.", Recipients: []enums.PartyRole{buyer, seller},
	},
	enums.OrderStatusPaymentConfirmed: {
		Type: enums.NotificationTypePaymentConfirmed, Title: "Payment confirmed",
		Message: "Payment for order %s is confirmed.", Recipients: []enums.PartyRole{buyer, seller},
	},
	enums.OrderStatusAssignedToAgent: {
		Type: enums.NotificationTypeOrderAssigned, Title: "Agent assigned",
		Message: "An agent accepted order %s.", Recipients: []enums.PartyRole{buyer, seller, agent},
	},
	enums.OrderStatusEnRouteToSeller: {
		Type: enums.NotificationTypeAgentEnRoute, Title: "Agent on the way",
		Message: "The agent is heading to collect order %s.", Recipients: []enums.PartyRole{seller, buyer},
	},
	enums.OrderStatusAtSeller: {
		Type: enums.NotificationTypeAgentAtSeller, Title: "Agent arrived",
		Message: "The agent has arrived to collect order %s.", Recipients: []enums.PartyRole{seller},
	},
	enums.OrderStatusPickedFromSeller: {
		Type: enums.NotificationTypeOrderPickedUp, Title: "Order picked up",
		Message: "Order %s was picked up from the seller.", Recipients: []enums.PartyRole{buyer, seller},
	},
	enums.OrderStatusEnRouteToPSM: {
		Type: enums.NotificationTypeEnRouteToPSM, Title: "Heading to pickup site",
		Message: "Order %s is on its way to the pickup site.", Recipients: []enums.PartyRole{psm, buyer},
	},
	enums.OrderStatusDeliveredToPSM: {
		Type: enums.NotificationTypeDeliveredToPSM, Title: "Delivered to pickup site",
		Message: "Order %s was handed to the pickup site.", Recipients: []enums.PartyRole{psm, buyer, seller},
	},
	enums.OrderStatusReadyForPickup: {
		Type: enums.NotificationTypeReadyForPickup, Title: "Ready for pickup",
		Message: "Order %s is ready for you to collect.", Recipients: []enums.PartyRole{buyer},
	},
	enums.OrderStatusCollectedByBuyer: {
		Type: enums.NotificationTypeCollectedByBuyer, Title: "Order collected",
		Message: "Order %s was collected by the buyer.", Recipients: []enums.PartyRole{buyer, seller, agent, psm},
	},
	enums.OrderStatusEnRouteToBuyer: {
		Type: enums.NotificationTypeEnRouteToBuyer, Title: "Out for delivery",
		Message: "Order %s is on its way to you.", Recipients: []enums.PartyRole{buyer},
	},
	enums.OrderStatusDeliveredToBuyer: {
		Type: enums.NotificationTypeDeliveredToBuyer, Title: "Order delivered",
		Message: "Order %s was delivered.", Recipients: []enums.PartyRole{buyer, seller, agent},
	},
	enums.OrderStatusCompleted: {
		Type: enums.NotificationTypeOrderCompleted, Title: "Order completed",
		Message: "Order %s is complete.", Recipients: []enums.PartyRole{buyer, seller, agent},
	},
	enums.OrderStatusCancelled: {
		Type: enums.NotificationTypeOrderCancelled, Title: "Order cancelled",
		Message: "Order %s was cancelled.", Recipients: []enums.PartyRole{buyer, seller, agent},
	},
	enums.OrderStatusDisputed: {
		Type: enums.NotificationTypeOrderDisputed, Title: "Order disputed",
		Message: "A dispute was opened on order %s.", Recipients: []enums.PartyRole{buyer, seller, agent, admin},
	},
}

func (t template) render(orderNumber string) string {
	return fmt.Sprintf(t.Message, orderNumber)
}
