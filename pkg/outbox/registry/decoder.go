package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry turns an envelope's data into the typed payload for its
// event type and schema version. Consumers switch on the returned type.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]decoderFunc)}
}

// NewPayloadDecoders registers v1 of every event the outbox emits.
func NewPayloadDecoders() *DecoderRegistry {
	r := NewDecoderRegistry()
	RegisterJSON[payloads.OrderAssignedEvent](r, enums.EventOrderAssigned, 1)
	RegisterJSON[payloads.OrderStatusChangedEvent](r, enums.EventOrderStatusChanged, 1)
	RegisterJSON[payloads.CommissionApprovedEvent](r, enums.EventCommissionApproved, 1)
	RegisterJSON[payloads.CommissionReversedEvent](r, enums.EventCommissionReversed, 1)
	return r
}

// RegisterJSON registers a decoder that unmarshals into T and returns it by value.
func RegisterJSON[T any](r *DecoderRegistry, eventType enums.OutboxEventType, version int) {
	r.Register(eventType, version, func(payload json.RawMessage) (any, error) {
		var out T
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, fmt.Errorf("decode %s@v%d: %w", eventType, version, err)
		}
		return out, nil
	})
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[decoderKey{eventType: eventType, version: version}] = decoder
}

// Decode fails with NonRetryableError when no decoder matches, since a
// redelivery cannot fix an unknown schema.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[decoderKey{eventType: eventType, version: version}]
	r.mu.RUnlock()
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("decoder not registered for %s@v%d", eventType, version))
	}
	return decoder(payload)
}
