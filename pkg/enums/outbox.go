package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder      OutboxAggregateType = "order"
	AggregateCommission OutboxAggregateType = "commission"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateCommission,
}

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderAssigned      OutboxEventType = "order_assigned"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventCommissionApproved OutboxEventType = "commission_approved"
	EventCommissionReversed OutboxEventType = "commission_reversed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderAssigned,
	EventOrderStatusChanged,
	EventCommissionApproved,
	EventCommissionReversed,
}

func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// Aggregate is the aggregate an event type is keyed by. Order ids key the
// order events; commission events are keyed by the order they settle too, but
// under their own aggregate so retention and replay can tell them apart.
func (e OutboxEventType) Aggregate() (OutboxAggregateType, bool) {
	switch e {
	case EventOrderAssigned, EventOrderStatusChanged:
		return AggregateOrder, true
	case EventCommissionApproved, EventCommissionReversed:
		return AggregateCommission, true
	default:
		return "", false
	}
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	e := OutboxEventType(value)
	if !e.IsValid() {
		return "", fmt.Errorf("invalid event type %q", value)
	}
	return e, nil
}

// OutboxDLQErrorReason records why the relay gave up on a row.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: the broker kept failing until the retry ceiling.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable: the broker rejected the message outright.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonUnresolvable: the row names an unknown event or carries a
	// payload that does not decode.
	OutboxDLQReasonUnresolvable OutboxDLQErrorReason = "unresolvable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnresolvable:
		return true
	}
	return false
}
