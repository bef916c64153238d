package enums

import "testing"

func TestParseOrderStatusAcceptsLegacySpellings(t *testing.T) {
	cases := map[string]OrderStatus{
		"PICKED_FROM_SELLER": OrderStatusPickedFromSeller,
		"picked_from_seller": OrderStatusPickedFromSeller,
		"picked_up":          OrderStatusPickedFromSeller,
		" delivered ":        OrderStatusDeliveredToBuyer,
		"canceled":           OrderStatusCancelled,
		"pending":            OrderStatusOrderPlaced,
	}
	for raw, want := range cases {
		got, err := ParseOrderStatus(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s got %s", raw, want, got)
		}
	}

	if _, err := ParseOrderStatus("teleported"); err == nil {
		t.Fatalf("expected unknown status to fail")
	}
}

func TestOrderStatusOrdering(t *testing.T) {
	if !OrderStatusEnRouteToSeller.AtLeast(OrderStatusAssignedToAgent) {
		t.Fatalf("en route should be at least assigned")
	}
	if OrderStatusPaymentConfirmed.AtLeast(OrderStatusAssignedToAgent) {
		t.Fatalf("payment confirmed is before assignment")
	}
	if OrderStatusCancelled.Rank() != -1 {
		t.Fatalf("abort states carry no rank")
	}
	for _, s := range []OrderStatus{OrderStatusCompleted, OrderStatusCancelled, OrderStatusDisputed} {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	if OrderStatusDeliveredToBuyer.IsTerminal() {
		t.Fatalf("delivered is not terminal")
	}
}

func TestCommissionTypePayeeRole(t *testing.T) {
	if CommissionTypePSMReceived.PayeeRole() != PartyRolePSM {
		t.Fatalf("psm received pays the psm")
	}
	if CommissionTypeFastDeliveryAgent.PayeeRole() != PartyRoleAgent {
		t.Fatalf("fast delivery pays the agent")
	}
}
