package models

import "time"

// CommissionRate is one row of the admin-maintained rate table. Percentage
// holds a whole-number percent (21 == 21%).
type CommissionRate struct {
	Key        string    `gorm:"column:key;type:varchar(64);primaryKey"`
	Percentage string    `gorm:"column:percentage;type:varchar(32);not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
