package verification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pdalogistics-backend/pkg/errors"
	"github.com/angelmondragon/pdalogistics-backend/pkg/types"
	"github.com/angelmondragon/pdalogistics-backend/pkg/validate"
)

// ConfirmationLocation is where the confirmer stood. Expected coordinates
// default to the order's point for the handover.
type ConfirmationLocation struct {
	Lat         float64  `json:"lat" validate:"latitude"`
	Lng         float64  `json:"lng" validate:"longitude"`
	Accuracy    *float64 `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
	ExpectedLat *float64 `json:"expected_lat,omitempty" validate:"omitempty,latitude"`
	ExpectedLng *float64 `json:"expected_lng,omitempty" validate:"omitempty,longitude"`
}

// ConfirmationInput records a handover. OTP and QR confirmations carry the
// proof, which is verified before anything is written.
type ConfirmationInput struct {
	OrderID       int64                    `json:"order_id" validate:"gt=0"`
	Type          enums.ConfirmationType   `json:"confirmation_type" validate:"required,enum"`
	Method        enums.ConfirmationMethod `json:"method" validate:"required,enum"`
	ConfirmerRole enums.PartyRole          `json:"confirmer_role" validate:"required,enum"`
	ConfirmerID   uuid.UUID                `json:"confirmer_id" validate:"required"`
	OTPCode       string                   `json:"otp_code,omitempty" validate:"required_if=Method otp"`
	QR            *QRPayload               `json:"qr,omitempty" validate:"required_if=Method qr"`
	Location      *ConfirmationLocation    `json:"location,omitempty"`
	Data          map[string]any           `json:"data,omitempty"`
}

// CreateConfirmation checks the confirmer's position when supplied, verifies
// the proof for the chosen method and writes the confirmation.
func (s *service) CreateConfirmation(ctx context.Context, input ConfirmationInput) (*models.Confirmation, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, input.OrderID)
		ctx = s.logg.WithActorRole(ctx, string(input.ConfirmerRole))
	}
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	record := &models.Confirmation{
		OrderID:       order.ID,
		Type:          input.Type,
		Method:        input.Method,
		ConfirmerRole: input.ConfirmerRole,
		ConfirmerID:   input.ConfirmerID,
	}
	if len(input.Data) > 0 {
		record.Data = types.JSONMap(input.Data)
	}

	if loc := input.Location; loc != nil {
		lat, lng := loc.Lat, loc.Lng
		record.Latitude = &lat
		record.Longitude = &lng
		record.AccuracyMeters = loc.Accuracy

		if expected, ok := expectedPoint(order, input.Type, loc); ok {
			actor := input.ConfirmerID
			gps, err := s.ValidateGPS(ctx, GPSInput{
				OrderID:     order.ID,
				ActorID:     &actor,
				Lat:         lat,
				Lng:         lng,
				Accuracy:    loc.Accuracy,
				ExpectedLat: expected.Lat,
				ExpectedLng: expected.Lng,
				Purpose:     PurposeConfirmation,
			})
			if err != nil {
				return nil, err
			}
			distance, within := gps.DistanceMeters, gps.WithinRadius
			record.DistanceMeters = &distance
			record.WithinRadius = &within
			if !within {
				return nil, pkgerrors.New(pkgerrors.CodeVerificationFailed, "confirmer is outside the handover radius").
					WithDetails(map[string]any{
						"distance_meters":  distance,
						"tolerance_meters": gps.ToleranceMeters,
					})
			}
		}
	}

	// the position is checked first so a confirmer out of range does not
	// burn their one-time code. Redeeming the code and storing the
	// confirmation commit together.
	var failed *VerifyResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		result, err := s.verifyProof(ctx, repo, input)
		if err != nil {
			return err
		}
		if !result.Valid {
			// attempt counters still commit
			failed = result
			return nil
		}
		if err := repo.CreateConfirmation(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store confirmation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if failed != nil {
		return nil, pkgerrors.New(pkgerrors.CodeVerificationFailed, failed.Reason).
			WithDetails(map[string]any{"method": input.Method, "reason": failed.Reason})
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"confirmation_type": string(record.Type),
			"method":            string(record.Method),
		}), "handover confirmed")
	}
	return record, nil
}

func (s *service) verifyProof(ctx context.Context, repo Repository, input ConfirmationInput) (*VerifyResult, error) {
	switch input.Method {
	case enums.ConfirmationMethodOTP:
		otp := VerifyOTPInput{
			OrderID:    input.OrderID,
			Code:       input.OTPCode,
			Type:       input.Type,
			VerifierID: input.ConfirmerID,
		}
		if err := validate.Struct(otp); err != nil {
			return nil, err
		}
		return s.verifyOTP(ctx, repo, otp)
	case enums.ConfirmationMethodQR:
		if input.QR.OrderID != input.OrderID || input.QR.Type != input.Type {
			return nil, pkgerrors.New(pkgerrors.CodeVerificationFailed, "qr code belongs to another handover")
		}
		if err := validate.Struct(*input.QR); err != nil {
			return nil, err
		}
		return s.verifyQR(ctx, repo, *input.QR)
	default:
		if len(input.Data) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s confirmation requires data", input.Method))
		}
		s.record(ctx, input.Method, true, "")
		return &VerifyResult{Valid: true}, nil
	}
}

// expectedPoint picks the coordinate the confirmer must be near.
func expectedPoint(order *models.Order, t enums.ConfirmationType, loc *ConfirmationLocation) (types.GeographyPoint, bool) {
	if loc.ExpectedLat != nil && loc.ExpectedLng != nil {
		return types.GeographyPoint{Lat: *loc.ExpectedLat, Lng: *loc.ExpectedLng}, true
	}
	switch t {
	case enums.ConfirmationTypeSellerHandover:
		return order.PickupPoint(), !order.PickupPoint().IsZero()
	case enums.ConfirmationTypeBuyerDelivery:
		return order.DeliveryPoint(), !order.DeliveryPoint().IsZero()
	case enums.ConfirmationTypePSMDeposit, enums.ConfirmationTypeBuyerPickup:
		return order.PSMPoint()
	}
	return types.GeographyPoint{}, false
}
