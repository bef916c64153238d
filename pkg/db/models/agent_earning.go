package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

// AgentEarning ties a commission amount to the party it is owed to, so
// payouts can aggregate by agent without scanning orders.
type AgentEarning struct {
	ID                      int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	CommissionTransactionID int64                  `gorm:"column:commission_transaction_id;not null;uniqueIndex"`
	OrderID                 int64                  `gorm:"column:order_id;not null;index"`
	AgentID                 uuid.UUID              `gorm:"column:agent_id;type:uuid;not null;index"`
	Type                    enums.CommissionType   `gorm:"column:commission_type;type:varchar(32);not null"`
	Amount                  decimal.Decimal        `gorm:"column:amount;type:numeric(14,2);not null"`
	Status                  enums.CommissionStatus `gorm:"column:status;type:varchar(16);not null"`
	CreatedAt               time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
