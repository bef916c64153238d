package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
)

// DomainEvent is what services hand to Emit. AggregateType may be left blank;
// it is derived from EventType.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

// OrderAggregateID formats a numeric order key as an outbox aggregate id.
func OrderAggregateID(orderID int64) string {
	return strconv.FormatInt(orderID, 10)
}

func (e DomainEvent) validate() (enums.OutboxAggregateType, error) {
	aggregate, ok := e.EventType.Aggregate()
	if !ok {
		return "", fmt.Errorf("unknown event type %q", e.EventType)
	}
	if e.AggregateType != "" && e.AggregateType != aggregate {
		return "", fmt.Errorf("event %s belongs to %s, not %s", e.EventType, aggregate, e.AggregateType)
	}
	if e.AggregateID == "" {
		return "", errors.New("aggregate id required")
	}
	return aggregate, nil
}

// Service writes domain events into the outbox inside the caller's
// transaction, so an event exists if and only if its state change committed.
type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit queues event on tx.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	aggregate, err := event.validate()
	if err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	id := uuid.New()
	envelope, err := newEnvelope(id, event)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := s.repo.Insert(tx, models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: aggregate,
		AggregateID:   event.AggregateID,
		Payload:       raw,
	}); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if s.logg != nil && ctx != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":     envelope.EventID,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID,
		}), "outbox event queued")
	}
	return nil
}
