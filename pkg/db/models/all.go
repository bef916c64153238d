package models

// All lists every model the service persists, in dependency order.
func All() []any {
	return []any{
		&Order{},
		&StatusHistory{},
		&CommissionRate{},
		&CommissionTransaction{},
		&AgentEarning{},
		&Confirmation{},
		&OTPCode{},
		&QRCode{},
		&GPSTrackingLog{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
