package enums

import "fmt"

// PartyRole identifies who acts on or is notified about an order.
type PartyRole string

const (
	PartyRoleBuyer               PartyRole = "buyer"
	PartyRoleSeller              PartyRole = "seller"
	PartyRoleAgent               PartyRole = "agent"
	PartyRolePickupDeliveryAgent PartyRole = "pickup_delivery_agent"
	PartyRolePSM                 PartyRole = "psm"
	PartyRoleReferrer            PartyRole = "referrer"
	PartyRoleAdmin               PartyRole = "admin"
	PartyRoleSystem              PartyRole = "system"
)

var validPartyRoles = []PartyRole{
	PartyRoleBuyer,
	PartyRoleSeller,
	PartyRoleAgent,
	PartyRolePickupDeliveryAgent,
	PartyRolePSM,
	PartyRoleReferrer,
	PartyRoleAdmin,
	PartyRoleSystem,
}

func (r PartyRole) String() string {
	return string(r)
}

func (r PartyRole) IsValid() bool {
	for _, candidate := range validPartyRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParsePartyRole converts raw input into a PartyRole.
func ParsePartyRole(value string) (PartyRole, error) {
	for _, candidate := range validPartyRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid party role %q", value)
}

// PSMRole records how a pickup-site manager participated in an order.
type PSMRole string

const (
	PSMRoleHelped   PSMRole = "helped"
	PSMRoleReceived PSMRole = "received"
)

func (r PSMRole) IsValid() bool {
	return r == PSMRoleHelped || r == PSMRoleReceived
}

// ParsePSMRole converts raw input into a PSMRole.
func ParsePSMRole(value string) (PSMRole, error) {
	role := PSMRole(value)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid psm role %q", value)
	}
	return role, nil
}
