package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

// CommissionTransaction is one party's share of an order's margin. A given
// order carries at most one row per commission type.
type CommissionTransaction struct {
	ID           int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID      int64                  `gorm:"column:order_id;not null;uniqueIndex:ux_commission_order_type"`
	PartyID      uuid.UUID              `gorm:"column:party_id;type:uuid;not null;index"`
	PartyRole    enums.PartyRole        `gorm:"column:party_role;type:varchar(32);not null"`
	Type         enums.CommissionType   `gorm:"column:commission_type;type:varchar(32);not null;uniqueIndex:ux_commission_order_type"`
	Amount       decimal.Decimal        `gorm:"column:amount;type:numeric(14,2);not null"`
	Percentage   decimal.Decimal        `gorm:"column:percentage;type:numeric(7,4);not null"`
	BaseAmount   decimal.Decimal        `gorm:"column:base_amount;type:numeric(14,2);not null"`
	Status       enums.CommissionStatus `gorm:"column:status;type:varchar(16);not null;index"`
	ApproveAfter *time.Time             `gorm:"column:approve_after;index"`
	ApprovedAt   *time.Time             `gorm:"column:approved_at"`
	PaidAt       *time.Time             `gorm:"column:paid_at"`
	ReversedAt   *time.Time             `gorm:"column:reversed_at"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
