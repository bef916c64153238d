package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/config"
	dbpkg "github.com/angelmondragon/pdalogistics-backend/pkg/db"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
	"github.com/angelmondragon/pdalogistics-backend/pkg/metrics"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox/registry"
)

const domainTopic = "pda-domain-events"

type harness struct {
	db       *gorm.DB
	service  *Service
	pub      *fakePublisher
	registry *prometheus.Registry
}

func newHarness(t *testing.T, cfg config.OutboxConfig) *harness {
	t.Helper()
	db := dbtest.Open(t)
	eventRegistry, err := registry.NewEventRegistry(config.PubSubConfig{DomainTopic: domainTopic})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	pub := &fakePublisher{}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:            dbpkg.Wrap(db),
		PubSub:        fakePubSubClient{},
		Repository:    outbox.NewRepository(db),
		DLQRepository: outbox.NewDLQRepository(db),
		Registry:      eventRegistry,
		Metrics:       metrics.NewOutboxMetrics(reg),
		PublisherFactory: func(topic string) publisher {
			if topic != domainTopic {
				return nil
			}
			return pub
		},
	})
	require.NoError(t, err)
	return &harness{db: db, service: service, pub: pub, registry: reg}
}

func (h *harness) emitAssigned(t *testing.T, orderID int64) {
	t.Helper()
	emitter := outbox.NewService(outbox.NewRepository(h.db), nil)
	require.NoError(t, h.db.Transaction(func(tx *gorm.DB) error {
		return emitter.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderAssigned,
			AggregateType: enums.AggregateOrder,
			AggregateID:   outbox.OrderAggregateID(orderID),
			Data: payloads.OrderAssignedEvent{
				OrderID:     orderID,
				OrderNumber: "PDA-TEST",
				AgentID:     uuid.New(),
				AssignedAt:  time.Now().UTC(),
			},
		})
	}))
}

func (h *harness) rows(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, h.db.Order("aggregate_id").Find(&rows).Error)
	return rows
}

func (h *harness) publishCount(t *testing.T, result string) float64 {
	t.Helper()
	mfs, err := h.registry.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "outbox_publish_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestProcessBatchPublishesAndMarksRows(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{BatchSize: 10, MaxAttempts: 3})
	h.emitAssigned(t, 1)
	h.emitAssigned(t, 2)
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).Where("aggregate_id = ?", "1").
		Update("created_at", time.Now().UTC().Add(-time.Minute)).Error)
	h.pub.errs = []error{errors.New("unavailable"), nil}

	claimed, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, claimed)

	rows := h.rows(t)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].PublishedAt)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.NotNil(t, rows[1].PublishedAt)

	require.Len(t, h.pub.sent, 2)
	msg := h.pub.sent[1]
	assert.Equal(t, string(enums.EventOrderAssigned), msg.Attributes["event_type"])
	assert.Equal(t, "2", msg.Attributes["aggregate_id"])
	assert.Equal(t, string(enums.AggregateOrder)+":2", msg.OrderingKey)
	envelope, err := registry.DecodeEnvelope(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, envelope.EventID, msg.Attributes["event_id"])

	assert.Equal(t, float64(1), h.publishCount(t, metrics.OutboxPublished))
	assert.Equal(t, float64(1), h.publishCount(t, metrics.OutboxRetry))

	// second pass only sees the row that failed
	claimed, err = h.service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.NotNil(t, h.rows(t)[0].PublishedAt)
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{BatchSize: 10, MaxAttempts: 2})
	h.emitAssigned(t, 7)
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).Where("1 = 1").Update("attempt_count", 1).Error)
	h.pub.errs = []error{errors.New("deadline exceeded")}

	_, err := h.service.processBatch(context.Background())
	require.NoError(t, err)

	var entries []models.OutboxDLQ
	require.NoError(t, h.db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, entries[0].ErrorReason)
	assert.Equal(t, "7", entries[0].AggregateID)

	rows := h.rows(t)
	assert.Equal(t, 2, rows[0].AttemptCount)
	claimed, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, claimed)
	assert.Equal(t, float64(1), h.publishCount(t, metrics.OutboxDeadLettered))
}

func TestProcessBatchDeadLettersUnknownEvents(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{})
	require.NoError(t, h.db.Create(&models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.OutboxEventType("order_teleported"),
		AggregateType: enums.AggregateOrder,
		AggregateID:   "9",
		Payload:       json.RawMessage(`{"version":1,"data":{}}`),
	}).Error)

	_, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.pub.sent)

	var entry models.OutboxDLQ
	require.NoError(t, h.db.First(&entry).Error)
	assert.Equal(t, enums.OutboxDLQReasonUnresolvable, entry.ErrorReason)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "unsupported event type")
}

func TestProcessBatchReturnsClaimErrors(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{})
	h.service.repo = failingRepo{}
	_, err := h.service.processBatch(context.Background())
	assert.Error(t, err)
}

func TestRunStopsWhenPingFails(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{})
	h.service.pubsub = fakePubSubClient{err: errors.New("no credentials")}
	err := h.service.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubsub ping failed")
}

func TestRunDrainsUntilCanceled(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{PollIntervalMS: 5})
	h.emitAssigned(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.service.Run(ctx) }()

	assert.Eventually(t, func() bool {
		var n int64
		h.db.Model(&models.OutboxEvent{}).Where("published_at IS NOT NULL").Count(&n)
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	series, err := testutil.GatherAndCount(h.registry, "outbox_batch_rows")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestBackoffIsCapped(t *testing.T) {
	base := 500 * time.Millisecond
	d := base
	for i := 0; i < 10; i++ {
		d = nextBackoff(d, base, maxBackoff)
	}
	assert.Equal(t, maxBackoff, d)
	assert.Equal(t, 2*base, nextBackoff(0, base, maxBackoff))

	j := withJitter(time.Second)
	assert.GreaterOrEqual(t, j, time.Second)
	assert.Less(t, j, time.Second+jitterWindow)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

type fakePubSubClient struct {
	err error
}

func (f fakePubSubClient) Ping(context.Context) error            { return f.err }
func (f fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	errs []error
	sent []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	return fakeResult{err: err}
}

type fakeResult struct {
	err error
}

func (f fakeResult) Get(context.Context) (string, error) { return "server-id", f.err }

type failingRepo struct{}

func (failingRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return nil, errors.New("connection refused")
}
func (failingRepo) MarkPublishedTx(*gorm.DB, uuid.UUID) error            { return nil }
func (failingRepo) MarkFailedTx(*gorm.DB, uuid.UUID, error) error        { return nil }
func (failingRepo) MarkTerminalTx(*gorm.DB, uuid.UUID, error, int) error { return nil }
