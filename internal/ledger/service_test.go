package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

type fakeRepository struct {
	createFn func(ctx context.Context, earning *models.AgentEarning) error
	sumFn    func(ctx context.Context, agentID uuid.UUID) (map[enums.CommissionStatus]decimal.Decimal, error)
	updated  []int64
	status   enums.CommissionStatus
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, earning *models.AgentEarning) error {
	if f.createFn != nil {
		return f.createFn(ctx, earning)
	}
	return nil
}

func (f *fakeRepository) ListByAgent(ctx context.Context, agentID uuid.UUID, status *enums.CommissionStatus) ([]models.AgentEarning, error) {
	return nil, nil
}

func (f *fakeRepository) ListByOrderID(ctx context.Context, orderID int64) ([]models.AgentEarning, error) {
	return nil, nil
}

func (f *fakeRepository) UpdateStatusByCommission(ctx context.Context, commissionIDs []int64, status enums.CommissionStatus) (int64, error) {
	f.updated = append(f.updated, commissionIDs...)
	f.status = status
	return int64(len(commissionIDs)), nil
}

func (f *fakeRepository) SumByStatus(ctx context.Context, agentID uuid.UUID) (map[enums.CommissionStatus]decimal.Decimal, error) {
	if f.sumFn != nil {
		return f.sumFn(ctx, agentID)
	}
	return map[enums.CommissionStatus]decimal.Decimal{}, nil
}

func validInput() RecordEarningInput {
	return RecordEarningInput{
		CommissionTransactionID: 11,
		OrderID:                 42,
		AgentID:                 uuid.New(),
		Type:                    enums.CommissionTypeFastDeliveryAgent,
		Amount:                  decimal.RequireFromString("14580.00"),
	}
}

func TestService_RecordEarning(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	input := validInput()
	var created *models.AgentEarning
	repo.createFn = func(ctx context.Context, earning *models.AgentEarning) error {
		created = earning
		return nil
	}

	got, err := svc.RecordEarning(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("RecordEarning error: %v", err)
	}
	if created == nil {
		t.Fatal("expected earning to be created")
	}
	if created.OrderID != input.OrderID || created.Type != input.Type || !created.Amount.Equal(input.Amount) {
		t.Fatalf("unexpected earning data: %+v", created)
	}
	if created.Status != enums.CommissionStatusPending {
		t.Fatalf("expected pending status, got %s", created.Status)
	}
	if got != created {
		t.Fatalf("service should return created earning")
	}
}

func TestService_RecordEarningValidation(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	cases := map[string]func(in *RecordEarningInput){
		"missing commission": func(in *RecordEarningInput) { in.CommissionTransactionID = 0 },
		"missing order":      func(in *RecordEarningInput) { in.OrderID = 0 },
		"missing agent":      func(in *RecordEarningInput) { in.AgentID = uuid.Nil },
		"bad type":           func(in *RecordEarningInput) { in.Type = "tip" },
		"zero amount":        func(in *RecordEarningInput) { in.Amount = decimal.Zero },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := validInput()
			mutate(&input)
			if _, err := svc.RecordEarning(context.Background(), nil, input); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestService_RecordEarningRepositoryError(t *testing.T) {
	repo := &fakeRepository{
		createFn: func(ctx context.Context, earning *models.AgentEarning) error {
			return errors.New("db down")
		},
	}
	svc, _ := NewService(repo)
	if _, err := svc.RecordEarning(context.Background(), nil, validInput()); err == nil {
		t.Fatal("expected repository error to propagate")
	}
}

func TestService_SetStatus(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)

	if err := svc.SetStatus(context.Background(), nil, []int64{1, 2}, enums.CommissionStatusApproved); err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	if len(repo.updated) != 2 || repo.status != enums.CommissionStatusApproved {
		t.Fatalf("unexpected update: ids=%v status=%s", repo.updated, repo.status)
	}
	if err := svc.SetStatus(context.Background(), nil, []int64{1}, "settled"); err == nil {
		t.Fatal("expected invalid status to fail")
	}
}

func TestService_Summary(t *testing.T) {
	agentID := uuid.New()
	repo := &fakeRepository{
		sumFn: func(ctx context.Context, id uuid.UUID) (map[enums.CommissionStatus]decimal.Decimal, error) {
			if id != agentID {
				t.Fatalf("unexpected agent %s", id)
			}
			return map[enums.CommissionStatus]decimal.Decimal{
				enums.CommissionStatusPending:  decimal.RequireFromString("100.5"),
				enums.CommissionStatusApproved: decimal.RequireFromString("20"),
			}, nil
		},
	}
	svc, _ := NewService(repo)

	summary, err := svc.Summary(context.Background(), agentID)
	if err != nil {
		t.Fatalf("Summary error: %v", err)
	}
	if !summary.Pending.Equal(decimal.RequireFromString("100.50")) {
		t.Fatalf("unexpected pending %s", summary.Pending)
	}
	if !summary.Approved.Equal(decimal.NewFromInt(20)) || !summary.Paid.IsZero() || !summary.Reversed.IsZero() {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestRepository_UpdateStatusSkipsPaid(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	agentID := uuid.New()

	rows := []models.AgentEarning{
		{CommissionTransactionID: 1, OrderID: 7, AgentID: agentID, Type: enums.CommissionTypeFastDeliveryAgent, Amount: decimal.NewFromInt(10), Status: enums.CommissionStatusPending},
		{CommissionTransactionID: 2, OrderID: 7, AgentID: agentID, Type: enums.CommissionTypeReferral, Amount: decimal.NewFromInt(5), Status: enums.CommissionStatusPaid},
	}
	for i := range rows {
		if err := repo.Create(ctx, &rows[i]); err != nil {
			t.Fatalf("create earning: %v", err)
		}
	}

	affected, err := repo.UpdateStatusByCommission(ctx, []int64{1, 2}, enums.CommissionStatusReversed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected only the unpaid row to change, got %d", affected)
	}

	earnings, err := repo.ListByOrderID(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if earnings[0].Status != enums.CommissionStatusReversed || earnings[1].Status != enums.CommissionStatusPaid {
		t.Fatalf("unexpected statuses %s/%s", earnings[0].Status, earnings[1].Status)
	}
}
