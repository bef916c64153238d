package verification

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/internal/orders"
	"github.com/angelmondragon/pdalogistics-backend/pkg/config"
	dbpkg "github.com/angelmondragon/pdalogistics-backend/pkg/db"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pdalogistics-backend/pkg/errors"
)

type memoryLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (l *memoryLimiter) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = map[string]int64{}
	}
	l.counts[scope]++
	return l.counts[scope] <= limit, l.counts[scope], nil
}

type harness struct {
	db    *gorm.DB
	svc   Service
	now   time.Time
	order *models.Order
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	h := &harness{db: db, now: time.Now().UTC()}
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(db),
		Orders:     orders.NewRepository(db),
		Tx:         dbpkg.Wrap(db),
		Limiter:    &memoryLimiter{},
		Config: config.VerificationConfig{
			OTPTTL:             30 * time.Minute,
			OTPAttemptLimit:    5,
			OTPAttemptWindow:   15 * time.Minute,
			GPSToleranceMeters: 100,
			ArgonMemoryKB:      64,
			ArgonTime:          1,
			ArgonParallelism:   1,
			ArgonSaltLen:       16,
			ArgonKeyLen:        32,
		},
		Clock: func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.svc = svc
	h.order = dbtest.CreateOrder(t, db)
	return h
}

func (h *harness) issue(t *testing.T, target uuid.UUID, ct enums.ConfirmationType) string {
	t.Helper()
	issued, err := h.svc.GenerateOTP(context.Background(), GenerateOTPInput{
		OrderID:      h.order.ID,
		Type:         ct,
		TargetRole:   enums.PartyRoleAgent,
		TargetUserID: target,
	})
	require.NoError(t, err)
	return issued.Code
}

func (h *harness) verify(t *testing.T, code string, verifier uuid.UUID) *VerifyResult {
	t.Helper()
	res, err := h.svc.VerifyOTP(context.Background(), VerifyOTPInput{
		OrderID:    h.order.ID,
		Code:       code,
		Type:       enums.ConfirmationTypeBuyerDelivery,
		VerifierID: verifier,
	})
	require.NoError(t, err)
	return res
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestOTP_SingleUse(t *testing.T) {
	h := newHarness(t)
	agent := uuid.New()
	code := h.issue(t, agent, enums.ConfirmationTypeBuyerDelivery)
	assert.Regexp(t, "^[0-9]{6}$", code)

	var stored models.OTPCode
	require.NoError(t, h.db.Where("order_id = ?", h.order.ID).First(&stored).Error)
	assert.NotEqual(t, code, stored.CodeHash)
	assert.WithinDuration(t, h.now.Add(30*time.Minute), stored.ExpiresAt, time.Second)

	first := h.verify(t, code, agent)
	assert.True(t, first.Valid)

	second := h.verify(t, code, agent)
	assert.False(t, second.Valid)
	assert.Equal(t, ReasonNoActiveCode, second.Reason)

	require.NoError(t, h.db.First(&stored, stored.ID).Error)
	assert.True(t, stored.Used)
	require.NotNil(t, stored.UsedBy)
	assert.Equal(t, agent, *stored.UsedBy)
}

func TestOTP_Rejections(t *testing.T) {
	h := newHarness(t)
	agent := uuid.New()
	code := h.issue(t, agent, enums.ConfirmationTypeBuyerDelivery)

	res := h.verify(t, wrongCode(code), agent)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonInvalidCode, res.Reason)
	var stored models.OTPCode
	require.NoError(t, h.db.Where("order_id = ?", h.order.ID).First(&stored).Error)
	assert.Equal(t, 1, stored.Attempts)

	res = h.verify(t, code, uuid.New())
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonNoActiveCode, res.Reason)

	h.now = h.now.Add(31 * time.Minute)
	res = h.verify(t, code, agent)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonNoActiveCode, res.Reason)
}

func TestOTP_RegenerationRetiresEarlierCode(t *testing.T) {
	h := newHarness(t)
	agent := uuid.New()
	old := h.issue(t, agent, enums.ConfirmationTypeBuyerDelivery)
	fresh := h.issue(t, agent, enums.ConfirmationTypeBuyerDelivery)

	if old != fresh {
		res := h.verify(t, old, agent)
		assert.False(t, res.Valid)
	}
	assert.True(t, h.verify(t, fresh, agent).Valid)
}

func TestOTP_AttemptLimit(t *testing.T) {
	h := newHarness(t)
	agent := uuid.New()
	code := h.issue(t, agent, enums.ConfirmationTypeBuyerDelivery)

	for i := 0; i < 5; i++ {
		res := h.verify(t, wrongCode(code), agent)
		require.Equal(t, ReasonInvalidCode, res.Reason)
	}
	res := h.verify(t, code, agent)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonTooManyAttempts, res.Reason)
}

func TestOTP_ValidatesInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.VerifyOTP(context.Background(), VerifyOTPInput{OrderID: h.order.ID, Code: "12ab", Type: enums.ConfirmationTypeBuyerDelivery, VerifierID: uuid.New()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.GenerateOTP(context.Background(), GenerateOTPInput{OrderID: 999999, Type: enums.ConfirmationTypeBuyerDelivery, TargetRole: enums.PartyRoleBuyer, TargetUserID: uuid.New()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestValidateGPS_PassAndFailAreBothLogged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	at, err := h.svc.ValidateGPS(ctx, GPSInput{
		OrderID: h.order.ID, Lat: -6.7924, Lng: 39.2083, ExpectedLat: -6.7924, ExpectedLng: 39.2083,
	})
	require.NoError(t, err)
	assert.True(t, at.WithinRadius)
	assert.InDelta(t, 0, at.DistanceMeters, 0.001)

	// 0.009 degrees of latitude is roughly 1 km
	far, err := h.svc.ValidateGPS(ctx, GPSInput{
		OrderID: h.order.ID, Lat: -6.7834, Lng: 39.2083, ExpectedLat: -6.7924, ExpectedLng: 39.2083,
	})
	require.NoError(t, err)
	assert.False(t, far.WithinRadius)
	assert.InDelta(t, 1000, far.DistanceMeters, 10)

	trail, err := h.svc.ListGPSTrail(ctx, h.order.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.True(t, trail[0].WithinRadius)
	assert.False(t, trail[1].WithinRadius)
	assert.Equal(t, PurposeCheck, trail[1].Purpose)
}

func TestQR_IssueOnceAndVerify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.GenerateQR(ctx, h.order.ID, enums.ConfirmationTypeSellerHandover)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(first.PNG, []byte("\x89PNG")))
	assert.Equal(t, Checksum(h.order.ID, enums.ConfirmationTypeSellerHandover, first.Payload.Timestamp), first.Payload.Checksum)

	h.now = h.now.Add(time.Hour)
	second, err := h.svc.GenerateQR(ctx, h.order.ID, enums.ConfirmationTypeSellerHandover)
	require.NoError(t, err)
	assert.Equal(t, first.Payload, second.Payload)

	res, err := h.svc.VerifyQR(ctx, first.Payload)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	tampered := first.Payload
	tampered.Timestamp++
	res, err = h.svc.VerifyQR(ctx, tampered)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonChecksum, res.Reason)

	other := first.Payload
	other.Type = enums.ConfirmationTypeBuyerDelivery
	other.Checksum = Checksum(other.OrderID, other.Type, other.Timestamp)
	res, err = h.svc.VerifyQR(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, ReasonUnknownQR, res.Reason)
}

func TestParseQRPayload(t *testing.T) {
	sum := Checksum(7, enums.ConfirmationTypeBuyerPickup, 1700000000)
	payload, err := ParseQRPayload([]byte(`{"order_id":7,"type":"buyer_pickup","timestamp":1700000000,"checksum":"` + sum + `"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), payload.OrderID)

	_, err = ParseQRPayload([]byte(`{"order_id":7}`))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCreateConfirmation_WithOTPAndLocation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := uuid.New()
	code := h.issue(t, agent, enums.ConfirmationTypeBuyerDelivery)

	record, err := h.svc.CreateConfirmation(ctx, ConfirmationInput{
		OrderID:       h.order.ID,
		Type:          enums.ConfirmationTypeBuyerDelivery,
		Method:        enums.ConfirmationMethodOTP,
		ConfirmerRole: enums.PartyRoleAgent,
		ConfirmerID:   agent,
		OTPCode:       code,
		Location:      &ConfirmationLocation{Lat: h.order.DeliveryLat, Lng: h.order.DeliveryLng},
	})
	require.NoError(t, err)
	require.NotNil(t, record.WithinRadius)
	assert.True(t, *record.WithinRadius)

	ok, err := h.svc.HasConfirmation(ctx, nil, h.order.ID, enums.ConfirmationTypeBuyerDelivery)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.svc.HasConfirmation(ctx, nil, h.order.ID, enums.ConfirmationTypeSellerHandover)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateConfirmation_OutOfRangeKeepsCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := uuid.New()
	code := h.issue(t, agent, enums.ConfirmationTypeBuyerDelivery)

	input := ConfirmationInput{
		OrderID:       h.order.ID,
		Type:          enums.ConfirmationTypeBuyerDelivery,
		Method:        enums.ConfirmationMethodOTP,
		ConfirmerRole: enums.PartyRoleAgent,
		ConfirmerID:   agent,
		OTPCode:       code,
		Location:      &ConfirmationLocation{Lat: h.order.PickupLat, Lng: h.order.PickupLng},
	}
	_, err := h.svc.CreateConfirmation(ctx, input)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeVerificationFailed))

	var confirmations int64
	require.NoError(t, h.db.Model(&models.Confirmation{}).Count(&confirmations).Error)
	assert.Zero(t, confirmations)
	trail, err := h.svc.ListGPSTrail(ctx, h.order.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, PurposeConfirmation, trail[0].Purpose)
	assert.False(t, trail[0].WithinRadius)

	input.Location = &ConfirmationLocation{Lat: h.order.DeliveryLat, Lng: h.order.DeliveryLng}
	_, err = h.svc.CreateConfirmation(ctx, input)
	require.NoError(t, err)
}

type failingConfirmations struct {
	Repository
}

func (f failingConfirmations) WithTx(tx *gorm.DB) Repository {
	return failingConfirmations{Repository: f.Repository.WithTx(tx)}
}

func (failingConfirmations) CreateConfirmation(context.Context, *models.Confirmation) error {
	return errors.New("insert failed")
}

func TestCreateConfirmation_StoreFailureKeepsCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := uuid.New()
	code := h.issue(t, agent, enums.ConfirmationTypeBuyerDelivery)

	svc, err := NewService(ServiceParams{
		Repository: failingConfirmations{Repository: NewRepository(h.db)},
		Orders:     orders.NewRepository(h.db),
		Tx:         dbpkg.Wrap(h.db),
		Config:     config.VerificationConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32},
		Clock:      func() time.Time { return h.now },
	})
	require.NoError(t, err)

	input := ConfirmationInput{
		OrderID:       h.order.ID,
		Type:          enums.ConfirmationTypeBuyerDelivery,
		Method:        enums.ConfirmationMethodOTP,
		ConfirmerRole: enums.PartyRoleAgent,
		ConfirmerID:   agent,
		OTPCode:       code,
	}
	_, err = svc.CreateConfirmation(ctx, input)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency), "got %v", err)

	var used int64
	require.NoError(t, h.db.Model(&models.OTPCode{}).Where("used = ?", true).Count(&used).Error)
	assert.Zero(t, used)
	var confirmations int64
	require.NoError(t, h.db.Model(&models.Confirmation{}).Count(&confirmations).Error)
	assert.Zero(t, confirmations)

	_, err = h.svc.CreateConfirmation(ctx, input)
	require.NoError(t, err)
}

func TestCreateConfirmation_WrongCodeCountsAttempt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := uuid.New()
	code := h.issue(t, agent, enums.ConfirmationTypeBuyerDelivery)

	_, err := h.svc.CreateConfirmation(ctx, ConfirmationInput{
		OrderID:       h.order.ID,
		Type:          enums.ConfirmationTypeBuyerDelivery,
		Method:        enums.ConfirmationMethodOTP,
		ConfirmerRole: enums.PartyRoleAgent,
		ConfirmerID:   agent,
		OTPCode:       wrongCode(code),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeVerificationFailed))

	var row models.OTPCode
	require.NoError(t, h.db.Where("order_id = ?", h.order.ID).First(&row).Error)
	assert.False(t, row.Used)
	assert.Equal(t, 1, row.Attempts)
}

func TestCreateConfirmation_ProofRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seller := uuid.New()

	_, err := h.svc.CreateConfirmation(ctx, ConfirmationInput{
		OrderID: h.order.ID, Type: enums.ConfirmationTypeSellerHandover, Method: enums.ConfirmationMethodOTP,
		ConfirmerRole: enums.PartyRoleSeller, ConfirmerID: seller,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "otp method without code: %v", err)

	_, err = h.svc.CreateConfirmation(ctx, ConfirmationInput{
		OrderID: h.order.ID, Type: enums.ConfirmationTypeSellerHandover, Method: enums.ConfirmationMethodPhoto,
		ConfirmerRole: enums.PartyRoleSeller, ConfirmerID: seller,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "photo without data: %v", err)

	_, err = h.svc.CreateConfirmation(ctx, ConfirmationInput{
		OrderID: h.order.ID, Type: enums.ConfirmationTypeSellerHandover, Method: enums.ConfirmationMethodOTP,
		ConfirmerRole: enums.PartyRoleSeller, ConfirmerID: seller, OTPCode: "123456",
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeVerificationFailed), "otp never issued: %v", err)

	qr, err := h.svc.GenerateQR(ctx, h.order.ID, enums.ConfirmationTypeSellerHandover)
	require.NoError(t, err)
	record, err := h.svc.CreateConfirmation(ctx, ConfirmationInput{
		OrderID: h.order.ID, Type: enums.ConfirmationTypeSellerHandover, Method: enums.ConfirmationMethodQR,
		ConfirmerRole: enums.PartyRoleAgent, ConfirmerID: uuid.New(), QR: &qr.Payload,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ConfirmationMethodQR, record.Method)

	record, err = h.svc.CreateConfirmation(ctx, ConfirmationInput{
		OrderID: h.order.ID, Type: enums.ConfirmationTypeSellerHandover, Method: enums.ConfirmationMethodSignature,
		ConfirmerRole: enums.PartyRoleSeller, ConfirmerID: seller, Data: map[string]any{"signature_ref": "sig-001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sig-001", record.Data["signature_ref"])
}

func TestPurgeExpiredOTPs(t *testing.T) {
	h := newHarness(t)
	h.issue(t, uuid.New(), enums.ConfirmationTypeBuyerDelivery)

	deleted, err := h.svc.PurgeExpiredOTPs(context.Background(), h.now)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = h.svc.PurgeExpiredOTPs(context.Background(), h.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
