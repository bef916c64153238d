package models

import (
	"time"

	"github.com/google/uuid"
)

// GPSTrackingLog records every proximity check, passing or not.
type GPSTrackingLog struct {
	ID                int64      `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID           int64      `gorm:"column:order_id;not null;index"`
	ActorID           *uuid.UUID `gorm:"column:actor_id;type:uuid"`
	Purpose           string     `gorm:"column:purpose;type:varchar(32);not null"`
	Latitude          float64    `gorm:"column:latitude;not null"`
	Longitude         float64    `gorm:"column:longitude;not null"`
	AccuracyMeters    *float64   `gorm:"column:accuracy_meters"`
	ExpectedLatitude  float64    `gorm:"column:expected_latitude;not null"`
	ExpectedLongitude float64    `gorm:"column:expected_longitude;not null"`
	DistanceMeters    float64    `gorm:"column:distance_meters;not null"`
	ToleranceMeters   float64    `gorm:"column:tolerance_meters;not null"`
	WithinRadius      bool       `gorm:"column:within_radius;not null"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
}
