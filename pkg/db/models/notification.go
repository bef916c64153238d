package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/types"
)

// Notification stores in-app notification payloads addressed to one user.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Role      enums.PartyRole        `gorm:"column:role;type:varchar(32);not null"`
	OrderID   *int64                 `gorm:"column:order_id;index"`
	Type      enums.NotificationType `gorm:"column:type;type:varchar(40);not null"`
	Title     string                 `gorm:"column:title;type:text;not null"`
	Message   string                 `gorm:"column:message;type:text;not null"`
	Data      types.JSONMap          `gorm:"column:data;type:jsonb;serializer:json"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
