package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

// Repository manages persistence for agent earnings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, earning *models.AgentEarning) error
	ListByAgent(ctx context.Context, agentID uuid.UUID, status *enums.CommissionStatus) ([]models.AgentEarning, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]models.AgentEarning, error)
	UpdateStatusByCommission(ctx context.Context, commissionIDs []int64, status enums.CommissionStatus) (int64, error)
	SumByStatus(ctx context.Context, agentID uuid.UUID) (map[enums.CommissionStatus]decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, earning *models.AgentEarning) error {
	return r.db.WithContext(ctx).Create(earning).Error
}

func (r *repository) ListByAgent(ctx context.Context, agentID uuid.UUID, status *enums.CommissionStatus) ([]models.AgentEarning, error) {
	query := r.db.WithContext(ctx).Where("agent_id = ?", agentID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var earnings []models.AgentEarning
	if err := query.Order("created_at DESC").Order("id DESC").Find(&earnings).Error; err != nil {
		return nil, err
	}
	return earnings, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID int64) ([]models.AgentEarning, error) {
	var earnings []models.AgentEarning
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&earnings).Error; err != nil {
		return nil, err
	}
	return earnings, nil
}

func (r *repository) UpdateStatusByCommission(ctx context.Context, commissionIDs []int64, status enums.CommissionStatus) (int64, error) {
	if len(commissionIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.AgentEarning{}).
		Where("commission_transaction_id IN ? AND status <> ?", commissionIDs, enums.CommissionStatusPaid).
		Update("status", status)
	return res.RowsAffected, res.Error
}

type statusTotal struct {
	Status enums.CommissionStatus
	Total  decimal.Decimal
}

func (r *repository) SumByStatus(ctx context.Context, agentID uuid.UUID) (map[enums.CommissionStatus]decimal.Decimal, error) {
	var rows []statusTotal
	if err := r.db.WithContext(ctx).
		Model(&models.AgentEarning{}).
		Select("status, SUM(amount) AS total").
		Where("agent_id = ?", agentID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.CommissionStatus]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
