package enums

import "fmt"

// CommissionType tags one line of a commission split.
type CommissionType string

const (
	CommissionTypeFastDeliveryAgent   CommissionType = "fast_delivery_agent"
	CommissionTypePSMHelped           CommissionType = "psm_helped"
	CommissionTypePSMReceived         CommissionType = "psm_received"
	CommissionTypePickupDeliveryAgent CommissionType = "pickup_delivery_agent"
	CommissionTypeReferral            CommissionType = "referral"
	CommissionTypeSystemMaintenance   CommissionType = "system_maintenance"
	CommissionTypePlatform            CommissionType = "platform"
)

var validCommissionTypes = []CommissionType{
	CommissionTypeFastDeliveryAgent,
	CommissionTypePSMHelped,
	CommissionTypePSMReceived,
	CommissionTypePickupDeliveryAgent,
	CommissionTypeReferral,
	CommissionTypeSystemMaintenance,
	CommissionTypePlatform,
}

func (c CommissionType) String() string {
	return string(c)
}

func (c CommissionType) IsValid() bool {
	for _, candidate := range validCommissionTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsPlatformShare reports whether the line stays with the platform. Platform
// shares have no payee and no earnings row.
func (c CommissionType) IsPlatformShare() bool {
	return c == CommissionTypeSystemMaintenance || c == CommissionTypePlatform
}

// PayeeRole returns the party that earns this line.
func (c CommissionType) PayeeRole() PartyRole {
	switch c {
	case CommissionTypeFastDeliveryAgent:
		return PartyRoleAgent
	case CommissionTypePSMHelped, CommissionTypePSMReceived:
		return PartyRolePSM
	case CommissionTypePickupDeliveryAgent:
		return PartyRolePickupDeliveryAgent
	case CommissionTypeReferral:
		return PartyRoleReferrer
	default:
		return PartyRoleSystem
	}
}

// ParseCommissionType converts raw input into a CommissionType.
func ParseCommissionType(value string) (CommissionType, error) {
	for _, candidate := range validCommissionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission type %q", value)
}

// CommissionStatus tracks a commission line from creation to payout.
type CommissionStatus string

const (
	CommissionStatusPending  CommissionStatus = "pending"
	CommissionStatusApproved CommissionStatus = "approved"
	CommissionStatusPaid     CommissionStatus = "paid"
	CommissionStatusReversed CommissionStatus = "reversed"
)

var validCommissionStatuses = []CommissionStatus{
	CommissionStatusPending,
	CommissionStatusApproved,
	CommissionStatusPaid,
	CommissionStatusReversed,
}

func (s CommissionStatus) IsValid() bool {
	for _, candidate := range validCommissionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCommissionStatus converts raw input into a CommissionStatus.
func ParseCommissionStatus(value string) (CommissionStatus, error) {
	for _, candidate := range validCommissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission status %q", value)
}
