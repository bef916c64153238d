package assignment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/internal/commission"
	"github.com/angelmondragon/pdalogistics-backend/internal/ledger"
	"github.com/angelmondragon/pdalogistics-backend/internal/orders"
	dbpkg "github.com/angelmondragon/pdalogistics-backend/pkg/db"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pdalogistics-backend/pkg/errors"
	"github.com/angelmondragon/pdalogistics-backend/pkg/metrics"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox"
)

type harness struct {
	db  *gorm.DB
	svc Service
	reg *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	client := dbpkg.Wrap(db)
	emitter := outbox.NewService(outbox.NewRepository(db), nil)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)
	commissionSvc, err := commission.NewService(commission.ServiceParams{
		Repository:  commission.NewRepository(db),
		Rates:       commission.StaticRates(commission.DefaultRates()),
		Ledger:      ledgerSvc,
		Tx:          client,
		Outbox:      emitter,
		GracePeriod: 5 * time.Minute,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Orders:        orders.NewRepository(db),
		Commission:    commissionSvc,
		Tx:            client,
		Outbox:        emitter,
		Metrics:       metrics.NewOrderMetrics(reg),
		MaxOpenOrders: 5,
	})
	require.NoError(t, err)
	return &harness{db: db, svc: svc, reg: reg}
}

func (h *harness) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func (h *harness) assignmentsCounter(t *testing.T, result string) float64 {
	t.Helper()
	mfs, err := h.reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "order_assignments_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabel(m, "result", result) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func TestAcceptOrder_AssignsAndRecordsCommission(t *testing.T) {
	h := newHarness(t)
	order := dbtest.CreateOrder(t, h.db)
	agent := uuid.New()

	res, err := h.svc.AcceptOrder(context.Background(), AcceptOrderInput{OrderID: order.ID, AgentID: agent, OrderKind: enums.OrderKindStandard})
	require.NoError(t, err)
	require.NotNil(t, res.Commission)
	assert.Len(t, res.DeliveryCode, 6)
	assert.Regexp(t, "^[A-Z0-9]{6}$", res.DeliveryCode)

	stored := dbtest.ReloadOrder(t, h.db, order.ID)
	require.NotNil(t, stored.AgentID)
	assert.Equal(t, agent, *stored.AgentID)
	assert.Equal(t, enums.OrderStatusAssignedToAgent, stored.Status)
	assert.Equal(t, res.DeliveryCode, *stored.DeliveryCode)
	assert.True(t, stored.CommissionCalculated)
	assert.True(t, stored.AgentCommission.Equal(res.Commission.AmountFor(enums.CommissionTypeFastDeliveryAgent)))
	assert.Equal(t, "14553.00", stored.AgentCommission.StringFixed(2))

	var history []models.StatusHistory
	require.NoError(t, h.db.Where("order_id = ?", order.ID).Find(&history).Error)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].FromStatus)
	assert.Equal(t, enums.OrderStatusPaymentConfirmed, *history[0].FromStatus)
	assert.Equal(t, agent, history[0].ChangedBy)

	assert.Equal(t, int64(1), h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderAssigned))
	assert.Equal(t, int64(1), h.count(t, &models.CommissionTransaction{}, "order_id = ?", order.ID))
	assert.Equal(t, float64(1), h.assignmentsCounter(t, "accepted"))
}

func TestAcceptOrder_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	order := dbtest.CreateOrder(t, h.db)

	const contenders = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses int
		others []error
	)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.svc.AcceptOrder(context.Background(), AcceptOrderInput{OrderID: order.ID, AgentID: uuid.New()})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case pkgerrors.HasCode(err, pkgerrors.CodeOrderAlreadyAssigned):
				losses++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, others)
	assert.Equal(t, 1, wins)
	assert.Equal(t, contenders-1, losses)
	assert.Equal(t, int64(1), h.count(t, &models.StatusHistory{}, "order_id = ?", order.ID))
	assert.Equal(t, int64(1), h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderAssigned))
	assert.Equal(t, float64(contenders-1), h.assignmentsCounter(t, "already_assigned"))
}

func TestAcceptOrder_RaceOnOrder42LeavesOneHistoryRow(t *testing.T) {
	h := newHarness(t)
	dbtest.CreateOrder(t, h.db, func(o *models.Order) { o.ID = 42 })

	first, second := uuid.New(), uuid.New()
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, agent := range []uuid.UUID{first, second} {
		wg.Add(1)
		go func(i int, agent uuid.UUID) {
			defer wg.Done()
			_, errs[i] = h.svc.AcceptOrder(context.Background(), AcceptOrderInput{OrderID: 42, AgentID: agent})
		}(i, agent)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeOrderAlreadyAssigned), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)

	var history []models.StatusHistory
	require.NoError(t, h.db.Where("order_id = ?", 42).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Contains(t, []uuid.UUID{first, second}, history[0].ChangedBy)
	stored := dbtest.ReloadOrder(t, h.db, 42)
	assert.Equal(t, history[0].ChangedBy, *stored.AgentID)
}

func TestAcceptOrder_CapacityExceeded(t *testing.T) {
	h := newHarness(t)
	agent := uuid.New()
	for _, status := range []enums.OrderStatus{
		enums.OrderStatusAssignedToAgent,
		enums.OrderStatusEnRouteToSeller,
		enums.OrderStatusAtSeller,
		enums.OrderStatusPickedFromSeller,
		enums.OrderStatusEnRouteToBuyer,
	} {
		status := status
		dbtest.CreateOrder(t, h.db, func(o *models.Order) {
			o.AgentID = &agent
			o.Status = status
			o.Kind = enums.OrderKindGrocery
		})
	}
	order := dbtest.CreateOrder(t, h.db)

	_, err := h.svc.AcceptOrder(context.Background(), AcceptOrderInput{OrderID: order.ID, AgentID: agent})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCapacityExceeded))

	stored := dbtest.ReloadOrder(t, h.db, order.ID)
	assert.Nil(t, stored.AgentID)
	assert.Equal(t, enums.OrderStatusPaymentConfirmed, stored.Status)
	assert.Equal(t, int64(0), h.count(t, &models.StatusHistory{}, "order_id = ?", order.ID))
	assert.Equal(t, float64(1), h.assignmentsCounter(t, "capacity_exceeded"))
}

func TestAcceptOrder_ConcurrentAcceptsRespectAgentCapacity(t *testing.T) {
	h := newHarness(t)
	agent := uuid.New()
	for i := 0; i < 4; i++ {
		dbtest.CreateOrder(t, h.db, func(o *models.Order) {
			o.AgentID = &agent
			o.Status = enums.OrderStatusEnRouteToSeller
		})
	}
	const contenders = 5
	ids := make([]int64, contenders)
	for i := range ids {
		ids[i] = dbtest.CreateOrder(t, h.db).ID
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	start := make(chan struct{})
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			<-start
			_, errs[i] = h.svc.AcceptOrder(context.Background(), AcceptOrderInput{OrderID: id, AgentID: agent})
		}(i, id)
	}
	close(start)
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCapacityExceeded), "unexpected error %v", err)
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, int64(5), h.count(t, &models.Order{}, "agent_id = ?", agent))
}

func TestAcceptOrder_CompletedOrdersDoNotCountTowardCapacity(t *testing.T) {
	h := newHarness(t)
	agent := uuid.New()
	for i := 0; i < 6; i++ {
		dbtest.CreateOrder(t, h.db, func(o *models.Order) {
			o.AgentID = &agent
			o.Status = enums.OrderStatusCompleted
		})
	}
	order := dbtest.CreateOrder(t, h.db)

	_, err := h.svc.AcceptOrder(context.Background(), AcceptOrderInput{OrderID: order.ID, AgentID: agent})
	require.NoError(t, err)
}

func TestAcceptOrder_Rejections(t *testing.T) {
	h := newHarness(t)
	taken := uuid.New()
	assigned := dbtest.CreateOrder(t, h.db, func(o *models.Order) {
		o.AgentID = &taken
		o.Status = enums.OrderStatusAssignedToAgent
	})
	cancelled := dbtest.CreateOrder(t, h.db, func(o *models.Order) { o.Status = enums.OrderStatusCancelled })
	grocery := dbtest.CreateOrder(t, h.db, func(o *models.Order) { o.Kind = enums.OrderKindGrocery })

	tests := []struct {
		name  string
		input AcceptOrderInput
		code  pkgerrors.Code
	}{
		{name: "missing order", input: AcceptOrderInput{OrderID: 999999, AgentID: uuid.New()}, code: pkgerrors.CodeNotFound},
		{name: "already assigned", input: AcceptOrderInput{OrderID: assigned.ID, AgentID: uuid.New()}, code: pkgerrors.CodeOrderAlreadyAssigned},
		{name: "not open", input: AcceptOrderInput{OrderID: cancelled.ID, AgentID: uuid.New()}, code: pkgerrors.CodeStateConflict},
		{name: "kind mismatch", input: AcceptOrderInput{OrderID: grocery.ID, AgentID: uuid.New(), OrderKind: enums.OrderKindStandard}, code: pkgerrors.CodeNotFound},
		{name: "missing agent", input: AcceptOrderInput{OrderID: grocery.ID}, code: pkgerrors.CodeValidation},
		{name: "bad kind", input: AcceptOrderInput{OrderID: grocery.ID, AgentID: uuid.New(), OrderKind: "pharmacy"}, code: pkgerrors.CodeValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.AcceptOrder(context.Background(), tc.input)
			require.Error(t, err)
			assert.True(t, pkgerrors.HasCode(err, tc.code), "got %v", err)
		})
	}
	assert.Equal(t, int64(0), h.count(t, &models.StatusHistory{}, "1 = 1"))
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
