package commission

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

// Repository manages commission transaction rows and the commission columns
// of the owning order.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.CommissionTransaction) error
	ListByOrder(ctx context.Context, orderID int64) ([]models.CommissionTransaction, error)
	ApplyToOrder(ctx context.Context, orderID int64, breakdown Breakdown) error
	ScheduleApproval(ctx context.Context, orderID int64, approveAfter time.Time) (int64, error)
	FindDueForApproval(ctx context.Context, now time.Time, limit int) ([]models.CommissionTransaction, error)
	MarkApproved(ctx context.Context, ids []int64, at time.Time) (int64, error)
	Reverse(ctx context.Context, orderID int64, at time.Time) ([]int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commission repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.CommissionTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListByOrder(ctx context.Context, orderID int64) ([]models.CommissionTransaction, error) {
	var rows []models.CommissionTransaction
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ApplyToOrder(ctx context.Context, orderID int64, b Breakdown) error {
	psm := b.AmountFor(enums.CommissionTypePSMHelped).Add(b.AmountFor(enums.CommissionTypePSMReceived))
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"base_amount":             b.Base,
			"platform_margin":         b.PlatformMargin,
			"system_maintenance":      b.SystemMaintenance,
			"home_delivery_fee":       b.HomeDeliveryFee,
			"agent_commission":        b.AmountFor(enums.CommissionTypeFastDeliveryAgent),
			"psm_commission":          psm,
			"pickup_agent_commission": b.AmountFor(enums.CommissionTypePickupDeliveryAgent),
			"referral_commission":     b.AmountFor(enums.CommissionTypeReferral),
			"commission_calculated":   true,
		}).Error
}

// ScheduleApproval stamps the grace deadline on pending lines that do not
// have one yet, so repeated releases never push the deadline back.
func (r *repository) ScheduleApproval(ctx context.Context, orderID int64, approveAfter time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CommissionTransaction{}).
		Where("order_id = ? AND status = ? AND approve_after IS NULL", orderID, enums.CommissionStatusPending).
		Update("approve_after", approveAfter)
	return res.RowsAffected, res.Error
}

// FindDueForApproval returns pending lines past their grace deadline whose
// order has not been disputed or cancelled.
func (r *repository) FindDueForApproval(ctx context.Context, now time.Time, limit int) ([]models.CommissionTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.CommissionTransaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND approve_after IS NOT NULL AND approve_after <= ?", enums.CommissionStatusPending, now).
		Where("order_id NOT IN (?)",
			r.db.Model(&models.Order{}).Select("id").
				Where("status IN ?", []enums.OrderStatus{enums.OrderStatusDisputed, enums.OrderStatusCancelled})).
		Order("approve_after ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) MarkApproved(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.CommissionTransaction{}).
		Where("id IN ? AND status = ?", ids, enums.CommissionStatusPending).
		Updates(map[string]any{
			"status":      enums.CommissionStatusApproved,
			"approved_at": at,
		})
	return res.RowsAffected, res.Error
}

// Reverse voids every line of the order that has not been paid yet and
// returns the affected ids.
func (r *repository) Reverse(ctx context.Context, orderID int64, at time.Time) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.CommissionTransaction{}).
		Where("order_id = ? AND status IN ?", orderID,
			[]enums.CommissionStatus{enums.CommissionStatusPending, enums.CommissionStatusApproved}).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).
		Model(&models.CommissionTransaction{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"status":      enums.CommissionStatusReversed,
			"reversed_at": at,
		}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
