package notifications

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox/registry"
)

// ConsumerName scopes idempotency keys for the notification worker.
const ConsumerName = "notification-worker"

type eventHandler interface {
	OrderStatusChanged(ctx context.Context, eventID uuid.UUID, event payloads.OrderStatusChangedEvent) error
	OrderAssigned(ctx context.Context, eventID uuid.UUID, event payloads.OrderAssignedEvent) error
	CommissionApproved(ctx context.Context, eventID uuid.UUID, event payloads.CommissionApprovedEvent) error
}

// Consumer drains the domain-events subscription and hands each event to the
// dispatcher exactly once per event id.
type Consumer struct {
	handler      eventHandler
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds a notification consumer.
func NewConsumer(handler eventHandler, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		handler:      handler,
		subscription: subscription,
		idempotency:  manager,
		decoders:     registry.NewPayloadDecoders(),
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	switch eventType {
	case enums.EventOrderStatusChanged, enums.EventOrderAssigned, enums.EventCommissionApproved:
	default:
		c.logg.Debug(logCtx, "skipping event without notifications")
		return processResult{ack: true}
	}

	envelope, err := registry.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := envelope.ID()
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id":      eventID.String(),
		"event_version": envelope.Version,
	})

	payload, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}

	claim, err := c.idempotency.Claim(ctx, ConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return processResult{nack: true}
	}
	switch claim {
	case idempotency.Done:
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	case idempotency.InFlight:
		c.logg.Debug(logCtx, "event in flight elsewhere, deferring")
		return processResult{nack: true}
	}

	if err := c.dispatch(logCtx, eventID, payload); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		if relErr := c.idempotency.Release(ctx, ConsumerName, eventID); relErr != nil {
			c.logg.Warn(logCtx, "failed to release idempotency claim: "+relErr.Error())
		}
		return processResult{nack: true}
	}
	if err := c.idempotency.Complete(ctx, ConsumerName, eventID); err != nil {
		c.logg.Warn(logCtx, "failed to record completion: "+err.Error())
	}
	return processResult{ack: true}
}

func (c *Consumer) dispatch(ctx context.Context, eventID uuid.UUID, payload any) error {
	switch event := payload.(type) {
	case payloads.OrderStatusChangedEvent:
		return c.handler.OrderStatusChanged(c.logg.WithOrderID(ctx, event.OrderID), eventID, event)
	case payloads.OrderAssignedEvent:
		return c.handler.OrderAssigned(c.logg.WithOrderID(ctx, event.OrderID), eventID, event)
	case payloads.CommissionApprovedEvent:
		return c.handler.CommissionApproved(c.logg.WithOrderID(ctx, event.OrderID), eventID, event)
	default:
		return fmt.Errorf("no handler for payload %T", payload)
	}
}
