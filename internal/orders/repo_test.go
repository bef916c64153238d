package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/pagination"
)

func TestRepository_ClaimIfUnassignedOnlyOnce(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := dbtest.CreateOrder(t, db)

	first := uuid.New()
	ok, err := repo.ClaimIfUnassigned(ctx, Claim{OrderID: order.ID, AgentID: first, DeliveryCode: "ABC234", AssignedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimIfUnassigned(ctx, Claim{OrderID: order.ID, AgentID: uuid.New(), DeliveryCode: "XYZ789", AssignedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.False(t, ok)

	stored := dbtest.ReloadOrder(t, db, order.ID)
	require.NotNil(t, stored.AgentID)
	assert.Equal(t, first, *stored.AgentID)
	assert.Equal(t, enums.OrderStatusAssignedToAgent, stored.Status)
	require.NotNil(t, stored.DeliveryCode)
	assert.Equal(t, "ABC234", *stored.DeliveryCode)
	assert.NotNil(t, stored.AssignedAt)
}

func TestRepository_ClaimIgnoresClosedOrders(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	order := dbtest.CreateOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusCancelled
	})

	ok, err := repo.ClaimIfUnassigned(context.Background(), Claim{OrderID: order.ID, AgentID: uuid.New(), DeliveryCode: "ABC234", AssignedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_CountOpenByAgent(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	agent := uuid.New()

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusAssignedToAgent,
		enums.OrderStatusEnRouteToSeller,
		enums.OrderStatusEnRouteToBuyer,
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelled,
	} {
		status := status
		dbtest.CreateOrder(t, db, func(o *models.Order) {
			o.AgentID = &agent
			o.Status = status
		})
	}
	other := uuid.New()
	dbtest.CreateOrder(t, db, func(o *models.Order) {
		o.AgentID = &other
		o.Status = enums.OrderStatusAtSeller
		o.Kind = enums.OrderKindGrocery
	})

	count, err := repo.CountOpenByAgent(context.Background(), agent)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestRepository_LockAgentInsideTransaction(t *testing.T) {
	db := dbtest.Open(t)
	agent := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(db).WithTx(tx)
		if err := repo.LockAgent(context.Background(), agent); err != nil {
			return err
		}
		_, err := repo.CountOpenByAgent(context.Background(), agent)
		return err
	})
	require.NoError(t, err)
}

func TestRepository_ListAvailablePagesOldestFirst(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		ids = append(ids, dbtest.CreateOrder(t, db).ID)
	}
	agent := uuid.New()
	dbtest.CreateOrder(t, db, func(o *models.Order) {
		o.AgentID = &agent
		o.Status = enums.OrderStatusAssignedToAgent
	})
	grocery := enums.OrderKindGrocery
	dbtest.CreateOrder(t, db, func(o *models.Order) { o.Kind = grocery })

	standard := enums.OrderKindStandard
	filters := AvailableOrderFilters{Kind: &standard}
	page, next, err := repo.ListAvailable(ctx, filters, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[0], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)
	require.NotEmpty(t, next)

	page, next, err = repo.ListAvailable(ctx, filters, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Empty(t, next)

	all, _, err := repo.ListAvailable(ctx, AvailableOrderFilters{}, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRepository_UpdateStatusRequiresExpectedFrom(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	agent := uuid.New()
	order := dbtest.CreateOrder(t, db, func(o *models.Order) {
		o.AgentID = &agent
		o.Status = enums.OrderStatusAssignedToAgent
	})

	ok, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusAtSeller, enums.OrderStatusPickedFromSeller, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	picked := time.Now().UTC()
	ok, err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatusAssignedToAgent, enums.OrderStatusEnRouteToSeller, map[string]any{"picked_at": picked})
	require.NoError(t, err)
	assert.True(t, ok)

	stored := dbtest.ReloadOrder(t, db, order.ID)
	assert.Equal(t, enums.OrderStatusEnRouteToSeller, stored.Status)
	assert.NotNil(t, stored.PickedAt)
}

func TestRepository_HistoryIsOrdered(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := dbtest.CreateOrder(t, db)
	actor := uuid.New()

	from := enums.OrderStatusPaymentConfirmed
	require.NoError(t, repo.AppendHistory(ctx, &models.StatusHistory{OrderID: order.ID, FromStatus: &from, ToStatus: enums.OrderStatusAssignedToAgent, ChangedBy: actor}))
	next := enums.OrderStatusAssignedToAgent
	require.NoError(t, repo.AppendHistory(ctx, &models.StatusHistory{OrderID: order.ID, FromStatus: &next, ToStatus: enums.OrderStatusEnRouteToSeller, ChangedBy: actor}))

	rows, err := repo.ListHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, enums.OrderStatusAssignedToAgent, rows[0].ToStatus)
	assert.Equal(t, enums.OrderStatusEnRouteToSeller, rows[1].ToStatus)
}
