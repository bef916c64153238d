package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/types"
)

// Confirmation is written once per successful handover confirmation.
// WithinRadius is only ever true or nil here: an attempt outside the radius
// writes no confirmation and is recorded only in the GPS tracking log.
type Confirmation struct {
	ID             int64                    `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID        int64                    `gorm:"column:order_id;not null;index:idx_confirmations_order_type"`
	Type           enums.ConfirmationType   `gorm:"column:confirmation_type;type:varchar(32);not null;index:idx_confirmations_order_type"`
	Method         enums.ConfirmationMethod `gorm:"column:method;type:varchar(16);not null"`
	ConfirmerRole  enums.PartyRole          `gorm:"column:confirmer_role;type:varchar(32);not null"`
	ConfirmerID    uuid.UUID                `gorm:"column:confirmer_id;type:uuid;not null"`
	Latitude       *float64                 `gorm:"column:latitude"`
	Longitude      *float64                 `gorm:"column:longitude"`
	AccuracyMeters *float64                 `gorm:"column:accuracy_meters"`
	DistanceMeters *float64                 `gorm:"column:distance_meters"`
	WithinRadius   *bool                    `gorm:"column:within_radius"`
	Data           types.JSONMap            `gorm:"column:data;type:jsonb;serializer:json"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
}
