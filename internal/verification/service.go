package verification

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/internal/orders"
	"github.com/angelmondragon/pdalogistics-backend/pkg/config"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pdalogistics-backend/pkg/errors"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
	"github.com/angelmondragon/pdalogistics-backend/pkg/metrics"
)

const (
	otpLength           = 6
	defaultOTPTTL       = 30 * time.Minute
	defaultGPSTolerance = 100.0
)

// Reasons reported on failed verifications.
const (
	ReasonInvalidCode     = "invalid code"
	ReasonNoActiveCode    = "no active code"
	ReasonAlreadyUsed     = "code already used"
	ReasonTooManyAttempts = "too many attempts"
	ReasonChecksum        = "checksum mismatch"
	ReasonUnknownQR       = "qr code not issued"
)

// AttemptLimiter caps verification attempts per scope within a window.
type AttemptLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// VerifyResult is the outcome of an OTP or QR check. A failed check is not
// an error.
type VerifyResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Service proves handovers between parties.
type Service interface {
	GenerateOTP(ctx context.Context, input GenerateOTPInput) (*IssuedOTP, error)
	VerifyOTP(ctx context.Context, input VerifyOTPInput) (*VerifyResult, error)
	GenerateQR(ctx context.Context, orderID int64, t enums.ConfirmationType) (*QRCode, error)
	VerifyQR(ctx context.Context, payload QRPayload) (*VerifyResult, error)
	ValidateGPS(ctx context.Context, input GPSInput) (*GPSResult, error)
	CreateConfirmation(ctx context.Context, input ConfirmationInput) (*models.Confirmation, error)
	HasConfirmation(ctx context.Context, tx *gorm.DB, orderID int64, t enums.ConfirmationType) (bool, error)
	ListConfirmations(ctx context.Context, orderID int64) ([]models.Confirmation, error)
	ListGPSTrail(ctx context.Context, orderID int64) ([]models.GPSTrackingLog, error)
	PurgeExpiredOTPs(ctx context.Context, before time.Time) (int64, error)
}

// ServiceParams wires the verification service.
type ServiceParams struct {
	Repository Repository
	Orders     orders.Repository
	Tx         txRunner
	Limiter    AttemptLimiter
	Config     config.VerificationConfig
	Logger     *logger.Logger
	Metrics    *metrics.OrderMetrics
	Clock      func() time.Time
}

type service struct {
	repo    Repository
	orders  orders.Repository
	tx      txRunner
	limiter AttemptLimiter
	cfg     config.VerificationConfig
	logg    *logger.Logger
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// NewService builds a verification service. Limiter is optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("verification repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	cfg := params.Config
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = defaultOTPTTL
	}
	if cfg.GPSToleranceMeters <= 0 {
		cfg.GPSToleranceMeters = defaultGPSTolerance
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repository,
		orders:  params.Orders,
		tx:      params.Tx,
		limiter: params.Limiter,
		cfg:     cfg,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     clock,
	}, nil
}

func (s *service) HasConfirmation(ctx context.Context, tx *gorm.DB, orderID int64, t enums.ConfirmationType) (bool, error) {
	return s.repo.WithTx(tx).HasConfirmation(ctx, orderID, t)
}

func (s *service) ListConfirmations(ctx context.Context, orderID int64) ([]models.Confirmation, error) {
	rows, err := s.repo.ListConfirmations(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list confirmations")
	}
	return rows, nil
}

func (s *service) ListGPSTrail(ctx context.Context, orderID int64) ([]models.GPSTrackingLog, error) {
	rows, err := s.repo.ListGPSLogs(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list gps trail")
	}
	return rows, nil
}

// PurgeExpiredOTPs deletes codes that expired before the cutoff.
func (s *service) PurgeExpiredOTPs(ctx context.Context, before time.Time) (int64, error) {
	deleted, err := s.repo.DeleteExpiredOTPs(ctx, before.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete expired otp codes")
	}
	return deleted, nil
}

func (s *service) loadOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, orders.MapLookupError(err, orderID)
	}
	return order, nil
}

func (s *service) record(ctx context.Context, method enums.ConfirmationMethod, valid bool, reason string) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	s.metrics.IncVerification(string(method), result)
	if s.logg == nil || valid {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"method": string(method),
		"reason": reason,
	}), "verification failed")
}
