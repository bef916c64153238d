package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

// OTPCode stores a hashed one-time code. The plaintext is never persisted.
type OTPCode struct {
	ID           int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID      int64                  `gorm:"column:order_id;not null;index:idx_otp_order_type"`
	Type         enums.ConfirmationType `gorm:"column:confirmation_type;type:varchar(32);not null;index:idx_otp_order_type"`
	CodeHash     string                 `gorm:"column:code_hash;type:text;not null"`
	TargetRole   enums.PartyRole        `gorm:"column:target_role;type:varchar(32);not null"`
	TargetUserID uuid.UUID              `gorm:"column:target_user_id;type:uuid;not null"`
	ExpiresAt    time.Time              `gorm:"column:expires_at;not null;index"`
	Used         bool                   `gorm:"column:used;not null;default:false"`
	UsedAt       *time.Time             `gorm:"column:used_at"`
	UsedBy       *uuid.UUID             `gorm:"column:used_by;type:uuid"`
	Attempts     int                    `gorm:"column:attempts;not null;default:0"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}
