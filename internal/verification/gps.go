package verification

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pdalogistics-backend/pkg/errors"
	"github.com/angelmondragon/pdalogistics-backend/pkg/types"
	"github.com/angelmondragon/pdalogistics-backend/pkg/validate"
)

// GPS check purposes stored on the tracking log.
const (
	PurposeCheck        = "check"
	PurposeConfirmation = "confirmation"
)

// GPSInput is a reported position and the point it should be near.
type GPSInput struct {
	OrderID     int64      `json:"order_id" validate:"gt=0"`
	ActorID     *uuid.UUID `json:"actor_id,omitempty"`
	Lat         float64    `json:"lat" validate:"latitude"`
	Lng         float64    `json:"lng" validate:"longitude"`
	Accuracy    *float64   `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
	ExpectedLat float64    `json:"expected_lat" validate:"latitude"`
	ExpectedLng float64    `json:"expected_lng" validate:"longitude"`
	Purpose     string     `json:"purpose" validate:"max=32"`
}

// GPSResult is the proximity outcome.
type GPSResult struct {
	WithinRadius    bool    `json:"within_radius"`
	DistanceMeters  float64 `json:"distance_meters"`
	ToleranceMeters float64 `json:"tolerance_meters"`
}

// ValidateGPS measures the great-circle distance to the expected point. The
// check is logged whether or not it passes.
func (s *service) ValidateGPS(ctx context.Context, input GPSInput) (*GPSResult, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	reported := types.GeographyPoint{Lat: input.Lat, Lng: input.Lng}
	expected := types.GeographyPoint{Lat: input.ExpectedLat, Lng: input.ExpectedLng}
	distance := reported.DistanceMeters(expected)
	tolerance := s.cfg.GPSToleranceMeters
	within := distance <= tolerance

	purpose := input.Purpose
	if purpose == "" {
		purpose = PurposeCheck
	}
	if err := s.repo.AppendGPSLog(ctx, &models.GPSTrackingLog{
		OrderID:           input.OrderID,
		ActorID:           input.ActorID,
		Purpose:           purpose,
		Latitude:          input.Lat,
		Longitude:         input.Lng,
		AccuracyMeters:    input.Accuracy,
		ExpectedLatitude:  input.ExpectedLat,
		ExpectedLongitude: input.ExpectedLng,
		DistanceMeters:    distance,
		ToleranceMeters:   tolerance,
		WithinRadius:      within,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append gps log")
	}

	s.metrics.ObserveGPSDistance(distance)
	result := "within"
	if !within {
		result = "outside"
	}
	s.metrics.IncVerification("gps", result)
	return &GPSResult{WithinRadius: within, DistanceMeters: distance, ToleranceMeters: tolerance}, nil
}
