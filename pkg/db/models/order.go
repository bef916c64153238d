package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/types"
)

// Order is the single order shape shared by every storefront kind. Fields
// that only one kind needs live in KindAttributes.
type Order struct {
	ID             int64                `gorm:"column:id;primaryKey;autoIncrement"`
	OrderNumber    string               `gorm:"column:order_number;type:varchar(40);not null;uniqueIndex"`
	Kind           enums.OrderKind      `gorm:"column:order_kind;type:varchar(20);not null;index:idx_orders_kind_status"`
	Status         enums.OrderStatus    `gorm:"column:status;type:varchar(32);not null;index:idx_orders_kind_status"`
	DeliveryMethod enums.DeliveryMethod `gorm:"column:delivery_method;type:varchar(20);not null"`

	BuyerID               uuid.UUID      `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID              uuid.UUID      `gorm:"column:seller_id;type:uuid;not null;index"`
	AgentID               *uuid.UUID     `gorm:"column:agent_id;type:uuid;index"`
	PSMID                 *uuid.UUID     `gorm:"column:psm_id;type:uuid"`
	PSMRole               *enums.PSMRole `gorm:"column:psm_role;type:varchar(16)"`
	PickupDeliveryAgentID *uuid.UUID     `gorm:"column:pickup_delivery_agent_id;type:uuid"`
	ReferrerID            *uuid.UUID     `gorm:"column:referrer_id;type:uuid"`

	FinalAmount           decimal.Decimal `gorm:"column:final_amount;type:numeric(14,2);not null"`
	BaseAmount            decimal.Decimal `gorm:"column:base_amount;type:numeric(14,2);not null;default:0"`
	PlatformMargin        decimal.Decimal `gorm:"column:platform_margin;type:numeric(14,2);not null;default:0"`
	SystemMaintenance     decimal.Decimal `gorm:"column:system_maintenance;type:numeric(14,2);not null;default:0"`
	HomeDeliveryFee       decimal.Decimal `gorm:"column:home_delivery_fee;type:numeric(14,2);not null;default:0"`
	AgentCommission       decimal.Decimal `gorm:"column:agent_commission;type:numeric(14,2);not null;default:0"`
	PSMCommission         decimal.Decimal `gorm:"column:psm_commission;type:numeric(14,2);not null;default:0"`
	PickupAgentCommission decimal.Decimal `gorm:"column:pickup_agent_commission;type:numeric(14,2);not null;default:0"`
	ReferralCommission    decimal.Decimal `gorm:"column:referral_commission;type:numeric(14,2);not null;default:0"`
	CommissionCalculated  bool            `gorm:"column:commission_calculated;not null;default:false"`

	PickupLat       float64  `gorm:"column:pickup_lat;not null;default:0"`
	PickupLng       float64  `gorm:"column:pickup_lng;not null;default:0"`
	PickupAddress   string   `gorm:"column:pickup_address;type:text;not null;default:''"`
	DeliveryLat     float64  `gorm:"column:delivery_lat;not null;default:0"`
	DeliveryLng     float64  `gorm:"column:delivery_lng;not null;default:0"`
	DeliveryAddress string   `gorm:"column:delivery_address;type:text;not null;default:''"`
	PSMLat          *float64 `gorm:"column:psm_lat"`
	PSMLng          *float64 `gorm:"column:psm_lng"`
	DeliveryCode    *string  `gorm:"column:delivery_code;type:varchar(12)"`

	SellerPayoutReleased    bool `gorm:"column:seller_payout_released;not null;default:false"`
	AgentCommissionReleased bool `gorm:"column:agent_commission_released;not null;default:false"`

	KindAttributes types.JSONMap `gorm:"column:kind_attributes;type:jsonb;serializer:json"`

	AssignedAt  *time.Time `gorm:"column:assigned_at"`
	PickedAt    *time.Time `gorm:"column:picked_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// PickupPoint is where the agent collects goods from the seller.
func (o Order) PickupPoint() types.GeographyPoint {
	return types.GeographyPoint{Lat: o.PickupLat, Lng: o.PickupLng}
}

// DeliveryPoint is the buyer's drop-off location for home delivery.
func (o Order) DeliveryPoint() types.GeographyPoint {
	return types.GeographyPoint{Lat: o.DeliveryLat, Lng: o.DeliveryLng}
}

// PSMPoint returns the pickup site location when one is recorded.
func (o Order) PSMPoint() (types.GeographyPoint, bool) {
	if o.PSMLat == nil || o.PSMLng == nil {
		return types.GeographyPoint{}, false
	}
	return types.GeographyPoint{Lat: *o.PSMLat, Lng: *o.PSMLng}, true
}
