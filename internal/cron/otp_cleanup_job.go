package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
)

const defaultOTPRetention = 24 * time.Hour

type otpPurger interface {
	PurgeExpiredOTPs(ctx context.Context, before time.Time) (int64, error)
}

// OTPCleanupJobParams wires the expired-code sweep.
type OTPCleanupJobParams struct {
	Logger       *logger.Logger
	Verification otpPurger
	Retention    time.Duration
}

// NewOTPCleanupJob deletes one-time codes that expired more than Retention ago.
func NewOTPCleanupJob(params OTPCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Verification == nil {
		return nil, fmt.Errorf("verification service required")
	}
	return &otpCleanupJob{
		logg:      params.Logger,
		purger:    params.Verification,
		retention: orDefault(params.Retention, defaultOTPRetention),
		now:       time.Now,
	}, nil
}

type otpCleanupJob struct {
	logg      *logger.Logger
	purger    otpPurger
	retention time.Duration
	now       func() time.Time
}

func (j *otpCleanupJob) Name() string { return "otp-cleanup" }

func (j *otpCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.purger.PurgeExpiredOTPs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("otp cleanup: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "otp cleanup complete")
	return nil
}
