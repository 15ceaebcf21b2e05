package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOffer        OutboxAggregateType = "offer"
	AggregateOrder        OutboxAggregateType = "order"
	AggregatePayment      OutboxAggregateType = "payment"
	AggregateDelivery     OutboxAggregateType = "delivery"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOffer,
	AggregateOrder,
	AggregatePayment,
	AggregateDelivery,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOfferCreated         OutboxEventType = "offer_created"
	EventOfferAccepted        OutboxEventType = "offer_accepted"
	EventOfferRejected        OutboxEventType = "offer_rejected"
	EventOfferCancelled       OutboxEventType = "offer_cancelled"
	EventOfferExpired         OutboxEventType = "offer_expired"
	EventOrderCreated         OutboxEventType = "order_created"
	EventOrderStateChanged    OutboxEventType = "order_state_changed"
	EventOrderExpired         OutboxEventType = "order_expired"
	EventPaymentIntentCreated OutboxEventType = "payment_intent_created"
	EventPaymentSucceeded     OutboxEventType = "payment_succeeded"
	EventPaymentFailed        OutboxEventType = "payment_failed"
	EventPaymentRefunded      OutboxEventType = "payment_refunded"
	EventTransferRecorded     OutboxEventType = "transfer_recorded"
	EventTransferVerified     OutboxEventType = "transfer_verified"
	EventDeliveryConfirmed    OutboxEventType = "delivery_confirmed"
	EventSellerAccountUpdated OutboxEventType = "seller_account_updated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOfferCreated,
	EventOfferAccepted,
	EventOfferRejected,
	EventOfferCancelled,
	EventOfferExpired,
	EventOrderCreated,
	EventOrderStateChanged,
	EventOrderExpired,
	EventPaymentIntentCreated,
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventPaymentRefunded,
	EventTransferRecorded,
	EventTransferVerified,
	EventDeliveryConfirmed,
	EventSellerAccountUpdated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
