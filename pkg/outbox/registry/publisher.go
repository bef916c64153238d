package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/pdalogistics-backend/pkg/config"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox"
)

// EventDescriptor is where an event type is routed.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row that passed validation, with its envelope
// and typed payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry validates outbox rows before the relay publishes them. Every
// event type goes to the domain topic; consumers filter on the event_type
// attribute.
type EventRegistry struct {
	topic    string
	decoders *DecoderRegistry
}

// NonRetryableError marks a failure that no amount of retrying will fix.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, errors.New("domain topic is required")
	}
	return &EventRegistry{topic: topic, decoders: NewPayloadDecoders()}, nil
}

// Resolve checks the row's event and aggregate types agree and decodes the
// payload with the decoder for its schema version. All failures are
// non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	aggregate, ok := event.EventType.Aggregate()
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if aggregate != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", aggregate, event.AggregateType))
	}
	if strings.TrimSpace(event.AggregateID) == "" {
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, err
	}
	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		var nonRetryable NonRetryableError
		if errors.As(err, &nonRetryable) {
			return nil, err
		}
		return nil, NewNonRetryableError(err)
	}

	return &ResolvedEvent{
		Descriptor: EventDescriptor{
			EventType:     event.EventType,
			AggregateType: aggregate,
			Topic:         r.topic,
		},
		Envelope: envelope,
		Payload:  payload,
	}, nil
}

// DecodeEnvelope unpacks a stored or published payload and rejects empty data.
func DecodeEnvelope(raw []byte) (outbox.PayloadEnvelope, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return envelope, NewNonRetryableError(errors.New("payload missing"))
	}
	return envelope, nil
}
