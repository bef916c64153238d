package enums

import "fmt"

// NotificationType maps to the notification_type column. Each order status
// has exactly one notification type.
type NotificationType string

const (
	NotificationTypeOrderPlaced        NotificationType = "order_placed"
	NotificationTypePaymentConfirmed   NotificationType = "payment_confirmed"
	NotificationTypeOrderAssigned      NotificationType = "order_assigned"
	NotificationTypeAgentEnRoute       NotificationType = "agent_en_route_to_seller"
	NotificationTypeAgentAtSeller      NotificationType = "agent_at_seller"
	NotificationTypeOrderPickedUp      NotificationType = "order_picked_up"
	NotificationTypeEnRouteToPSM       NotificationType = "order_en_route_to_psm"
	NotificationTypeDeliveredToPSM     NotificationType = "order_delivered_to_psm"
	NotificationTypeReadyForPickup     NotificationType = "order_ready_for_pickup"
	NotificationTypeCollectedByBuyer   NotificationType = "order_collected"
	NotificationTypeEnRouteToBuyer     NotificationType = "order_en_route_to_buyer"
	NotificationTypeDeliveredToBuyer   NotificationType = "order_delivered"
	NotificationTypeOrderCompleted     NotificationType = "order_completed"
	NotificationTypeOrderCancelled     NotificationType = "order_cancelled"
	NotificationTypeOrderDisputed      NotificationType = "order_disputed"
	NotificationTypeCommissionApproved NotificationType = "commission_approved"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderPlaced,
	NotificationTypePaymentConfirmed,
	NotificationTypeOrderAssigned,
	NotificationTypeAgentEnRoute,
	NotificationTypeAgentAtSeller,
	NotificationTypeOrderPickedUp,
	NotificationTypeEnRouteToPSM,
	NotificationTypeDeliveredToPSM,
	NotificationTypeReadyForPickup,
	NotificationTypeCollectedByBuyer,
	NotificationTypeEnRouteToBuyer,
	NotificationTypeDeliveredToBuyer,
	NotificationTypeOrderCompleted,
	NotificationTypeOrderCancelled,
	NotificationTypeOrderDisputed,
	NotificationTypeCommissionApproved,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
