package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

// Repository persists confirmations, one-time codes, QR records and GPS
// checks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateConfirmation(ctx context.Context, c *models.Confirmation) error
	HasConfirmation(ctx context.Context, orderID int64, t enums.ConfirmationType) (bool, error)
	ListConfirmations(ctx context.Context, orderID int64) ([]models.Confirmation, error)

	CreateOTP(ctx context.Context, code *models.OTPCode) error
	InvalidateOTPs(ctx context.Context, orderID int64, t enums.ConfirmationType, at time.Time) (int64, error)
	FindActiveOTPs(ctx context.Context, orderID int64, t enums.ConfirmationType, target uuid.UUID, now time.Time) ([]models.OTPCode, error)
	MarkOTPUsed(ctx context.Context, id int64, by uuid.UUID, at time.Time) (bool, error)
	IncrementOTPAttempts(ctx context.Context, ids []int64) error
	DeleteExpiredOTPs(ctx context.Context, before time.Time) (int64, error)

	FindQR(ctx context.Context, orderID int64, t enums.ConfirmationType) (*models.QRCode, error)
	CreateQR(ctx context.Context, qr *models.QRCode) error

	AppendGPSLog(ctx context.Context, entry *models.GPSTrackingLog) error
	ListGPSLogs(ctx context.Context, orderID int64) ([]models.GPSTrackingLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a verification repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateConfirmation(ctx context.Context, c *models.Confirmation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *repository) HasConfirmation(ctx context.Context, orderID int64, t enums.ConfirmationType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Confirmation{}).
		Where("order_id = ? AND confirmation_type = ?", orderID, t).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListConfirmations(ctx context.Context, orderID int64) ([]models.Confirmation, error) {
	var rows []models.Confirmation
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateOTP(ctx context.Context, code *models.OTPCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// InvalidateOTPs burns every unused code for the handover so only the
// newest one can be redeemed.
func (r *repository) InvalidateOTPs(ctx context.Context, orderID int64, t enums.ConfirmationType, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OTPCode{}).
		Where("order_id = ? AND confirmation_type = ? AND used = ?", orderID, t, false).
		Updates(map[string]any{"used": true, "used_at": at})
	return res.RowsAffected, res.Error
}

func (r *repository) FindActiveOTPs(ctx context.Context, orderID int64, t enums.ConfirmationType, target uuid.UUID, now time.Time) ([]models.OTPCode, error) {
	var rows []models.OTPCode
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND confirmation_type = ? AND target_user_id = ? AND used = ? AND expires_at > ?", orderID, t, target, false, now).
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkOTPUsed redeems the code. It reports false if another verifier
// redeemed it first.
func (r *repository) MarkOTPUsed(ctx context.Context, id int64, by uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OTPCode{}).
		Where("id = ? AND used = ?", id, false).
		Updates(map[string]any{"used": true, "used_at": at, "used_by": by})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) IncrementOTPAttempts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.OTPCode{}).
		Where("id IN ?", ids).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}

func (r *repository) DeleteExpiredOTPs(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&models.OTPCode{})
	return res.RowsAffected, res.Error
}

func (r *repository) FindQR(ctx context.Context, orderID int64, t enums.ConfirmationType) (*models.QRCode, error) {
	var qr models.QRCode
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND confirmation_type = ?", orderID, t).
		First(&qr).Error; err != nil {
		return nil, err
	}
	return &qr, nil
}

func (r *repository) CreateQR(ctx context.Context, qr *models.QRCode) error {
	return r.db.WithContext(ctx).Create(qr).Error
}

func (r *repository) AppendGPSLog(ctx context.Context, entry *models.GPSTrackingLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListGPSLogs(ctx context.Context, orderID int64) ([]models.GPSTrackingLog, error) {
	var rows []models.GPSTrackingLog
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
