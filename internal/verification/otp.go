package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pdalogistics-backend/pkg/errors"
	"github.com/angelmondragon/pdalogistics-backend/pkg/security"
	"github.com/angelmondragon/pdalogistics-backend/pkg/validate"
)

// GenerateOTPInput names the handover and the user who will enter the code.
type GenerateOTPInput struct {
	OrderID      int64                  `json:"order_id" validate:"gt=0"`
	Type         enums.ConfirmationType `json:"confirmation_type" validate:"required,enum"`
	TargetRole   enums.PartyRole        `json:"target_role" validate:"required,enum"`
	TargetUserID uuid.UUID              `json:"target_user_id" validate:"required"`
}

// IssuedOTP carries the plaintext code. It is never readable again.
type IssuedOTP struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyOTPInput is a code entry by the verifier.
type VerifyOTPInput struct {
	OrderID    int64                  `json:"order_id" validate:"gt=0"`
	Code       string                 `json:"code" validate:"required,len=6,numeric"`
	Type       enums.ConfirmationType `json:"confirmation_type" validate:"required,enum"`
	VerifierID uuid.UUID              `json:"verifier_id" validate:"required"`
}

// GenerateOTP issues a fresh code and retires any earlier unused code for
// the same handover.
func (s *service) GenerateOTP(ctx context.Context, input GenerateOTPInput) (*IssuedOTP, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if _, err := s.loadOrder(ctx, input.OrderID); err != nil {
		return nil, err
	}

	code, err := security.GenerateDigits(otpLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp")
	}
	hash, err := security.HashSecret(code, s.cfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash otp")
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.OTPTTL)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.InvalidateOTPs(ctx, input.OrderID, input.Type, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate otp codes")
		}
		if err := repo.CreateOTP(ctx, &models.OTPCode{
			OrderID:      input.OrderID,
			Type:         input.Type,
			CodeHash:     hash,
			TargetRole:   input.TargetRole,
			TargetUserID: input.TargetUserID,
			ExpiresAt:    expiresAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store otp")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &IssuedOTP{Code: code, ExpiresAt: expiresAt}, nil
}

// VerifyOTP redeems a code. Each code verifies at most once.
func (s *service) VerifyOTP(ctx context.Context, input VerifyOTPInput) (*VerifyResult, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, input.OrderID)
	}
	return s.verifyOTP(ctx, s.repo, input)
}

// verifyOTP redeems against repo so a caller holding a transaction can bind
// the redemption to its own writes.
func (s *service) verifyOTP(ctx context.Context, repo Repository, input VerifyOTPInput) (*VerifyResult, error) {
	if s.limiter != nil && s.cfg.OTPAttemptLimit > 0 {
		scope := fmt.Sprintf("otp:%d:%s", input.OrderID, input.Type)
		allowed, _, err := s.limiter.FixedWindowAllow(ctx, scope, int64(s.cfg.OTPAttemptLimit), s.cfg.OTPAttemptWindow)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check otp attempt limit")
		}
		if !allowed {
			return s.otpResult(ctx, false, ReasonTooManyAttempts), nil
		}
	}

	now := s.now().UTC()
	active, err := repo.FindActiveOTPs(ctx, input.OrderID, input.Type, input.VerifierID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp codes")
	}
	if len(active) == 0 {
		return s.otpResult(ctx, false, ReasonNoActiveCode), nil
	}

	ids := make([]int64, 0, len(active))
	for _, candidate := range active {
		ids = append(ids, candidate.ID)
		ok, err := security.VerifySecret(input.Code, candidate.CodeHash)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compare otp")
		}
		if !ok {
			continue
		}
		redeemed, err := repo.MarkOTPUsed(ctx, candidate.ID, input.VerifierID, now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem otp")
		}
		if !redeemed {
			return s.otpResult(ctx, false, ReasonAlreadyUsed), nil
		}
		return s.otpResult(ctx, true, ""), nil
	}

	if err := repo.IncrementOTPAttempts(ctx, ids); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count otp attempt")
	}
	return s.otpResult(ctx, false, ReasonInvalidCode), nil
}

func (s *service) otpResult(ctx context.Context, valid bool, reason string) *VerifyResult {
	s.record(ctx, enums.ConfirmationMethodOTP, valid, reason)
	return &VerifyResult{Valid: valid, Reason: reason}
}
