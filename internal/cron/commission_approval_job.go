package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
)

const (
	defaultApprovalBatch = 200
	maxApprovalBatches   = 20
)

type commissionApprover interface {
	ApproveDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// CommissionApprovalJobParams wires the grace-period approval job.
type CommissionApprovalJobParams struct {
	Logger     *logger.Logger
	Commission commissionApprover
	BatchSize  int
}

// NewCommissionApprovalJob approves commission lines whose grace period has
// elapsed, draining up to maxApprovalBatches batches per run.
func NewCommissionApprovalJob(params CommissionApprovalJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Commission == nil {
		return nil, fmt.Errorf("commission service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultApprovalBatch
	}
	return &commissionApprovalJob{
		logg:       params.Logger,
		commission: params.Commission,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type commissionApprovalJob struct {
	logg       *logger.Logger
	commission commissionApprover
	batch      int
	now        func() time.Time
}

func (j *commissionApprovalJob) Name() string { return "commission-approval" }

func (j *commissionApprovalJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	total := 0
	for i := 0; i < maxApprovalBatches; i++ {
		approved, err := j.commission.ApproveDue(ctx, now, j.batch)
		if err != nil {
			return fmt.Errorf("approve due commission: %w", err)
		}
		total += approved
		if approved < j.batch {
			break
		}
	}
	if total > 0 {
		j.logg.Info(j.logg.WithField(ctx, "lines_approved", total), "commission approval complete")
	}
	return nil
}
