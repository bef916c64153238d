package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/types"
)

// StatusHistory is the append-only audit trail of order transitions.
type StatusHistory struct {
	ID         int64              `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID    int64              `gorm:"column:order_id;not null;index"`
	FromStatus *enums.OrderStatus `gorm:"column:from_status;type:varchar(32)"`
	ToStatus   enums.OrderStatus  `gorm:"column:to_status;type:varchar(32);not null"`
	ChangedBy  uuid.UUID          `gorm:"column:changed_by;type:uuid;not null"`
	Reason     *string            `gorm:"column:reason;type:text"`
	Latitude   *float64           `gorm:"column:latitude"`
	Longitude  *float64           `gorm:"column:longitude"`
	Metadata   types.JSONMap      `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (StatusHistory) TableName() string {
	return "order_status_history"
}
