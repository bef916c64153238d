package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table and its
// status history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	FindForUpdate(ctx context.Context, id int64) (*models.Order, error)
	ClaimIfUnassigned(ctx context.Context, claim Claim) (bool, error)
	LockAgent(ctx context.Context, agentID uuid.UUID) error
	CountOpenByAgent(ctx context.Context, agentID uuid.UUID) (int64, error)
	ListAvailable(ctx context.Context, filters AvailableOrderFilters, params pagination.Params) ([]models.Order, string, error)
	ListAssignedToAgent(ctx context.Context, agentID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	UpdateStatus(ctx context.Context, id int64, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	AppendHistory(ctx context.Context, entry *models.StatusHistory) error
	ListHistory(ctx context.Context, orderID int64) ([]models.StatusHistory, error)
}

// Claim is the conditional write that hands an order to one agent.
type Claim struct {
	OrderID      int64
	AgentID      uuid.UUID
	DeliveryCode string
	AssignedAt   time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate reads the order holding its row lock until the surrounding
// transaction ends.
func (r *repository) FindForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ClaimIfUnassigned sets the agent only while nobody holds the order. It
// reports false when another claim got there first.
func (r *repository) ClaimIfUnassigned(ctx context.Context, claim Claim) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND agent_id IS NULL AND status IN ?", claim.OrderID, openForAssignment()).
		Updates(map[string]any{
			"agent_id":      claim.AgentID,
			"status":        enums.OrderStatusAssignedToAgent,
			"delivery_code": claim.DeliveryCode,
			"assigned_at":   claim.AssignedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// LockAgent serializes capacity checks for one agent until the enclosing
// transaction ends. Postgres takes a transaction-scoped advisory lock; other
// dialects rely on their writer serialization, as sqlite does.
func (r *repository) LockAgent(ctx context.Context, agentID uuid.UUID) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "agent:"+agentID.String()).Error
}

func (r *repository) CountOpenByAgent(ctx context.Context, agentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("agent_id = ? AND status IN ?", agentID, enums.OpenOrderStatuses()).
		Count(&count).Error
	return count, err
}

// ListAvailable returns unassigned open orders oldest first.
func (r *repository) ListAvailable(ctx context.Context, filters AvailableOrderFilters, params pagination.Params) ([]models.Order, string, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("agent_id IS NULL AND status IN ?", openForAssignment())
	if filters.Kind != nil {
		query = query.Where("order_kind = ?", *filters.Kind)
	}
	if filters.DeliveryMethod != nil {
		query = query.Where("delivery_method = ?", *filters.DeliveryMethod)
	}
	return r.page(query, params)
}

func (r *repository) ListAssignedToAgent(ctx context.Context, agentID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("agent_id = ?", agentID)
	return r.page(query, params)
}

func (r *repository) page(query *gorm.DB, params pagination.Params) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		sql, args := cursor.Predicate()
		query = query.Where(sql, args...)
	}

	var rows []models.Order
	if err := query.
		Order("created_at ASC").
		Order("id ASC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, "", err
	}

	rows, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return rows, next, nil
}

// UpdateStatus moves the order from one status to another. The write only
// lands while the row still holds from, so a stale caller changes nothing.
func (r *repository) UpdateStatus(ctx context.Context, id int64, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AppendHistory(ctx context.Context, entry *models.StatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListHistory(ctx context.Context, orderID int64) ([]models.StatusHistory, error) {
	var rows []models.StatusHistory
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func openForAssignment() []enums.OrderStatus {
	return []enums.OrderStatus{enums.OrderStatusOrderPlaced, enums.OrderStatusPaymentConfirmed}
}
