package models

import (
	"time"

	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

// QRCode keeps the payload issued for an order handover so scans can be
// checked against what was printed.
type QRCode struct {
	ID        int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   int64                  `gorm:"column:order_id;not null;uniqueIndex:ux_qr_order_type"`
	Type      enums.ConfirmationType `gorm:"column:confirmation_type;type:varchar(32);not null;uniqueIndex:ux_qr_order_type"`
	IssuedAt  int64                  `gorm:"column:issued_at;not null"`
	Checksum  string                 `gorm:"column:checksum;type:varchar(64);not null"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
