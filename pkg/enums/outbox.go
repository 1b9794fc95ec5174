package enums

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateSubscription OutboxAggregateType = "subscription"
)

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder || a == AggregateSubscription
}

// OutboxEventType is the routing key published with each event.
type OutboxEventType string

const (
	EventOrderCreated                OutboxEventType = "order.created"
	EventOrderStatusChanged          OutboxEventType = "order.status_changed"
	EventSubscriptionCreated         OutboxEventType = "subscription.created"
	EventSubscriptionCancelled       OutboxEventType = "subscription.cancelled"
	EventSubscriptionDeliveryCreated OutboxEventType = "subscription.delivery_created"
	EventSubscriptionPaused          OutboxEventType = "subscription.paused"
)

// eventAggregates pins every event type to the aggregate it is emitted for.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventOrderCreated:                AggregateOrder,
	EventOrderStatusChanged:          AggregateOrder,
	EventSubscriptionCreated:         AggregateSubscription,
	EventSubscriptionCancelled:       AggregateSubscription,
	EventSubscriptionDeliveryCreated: AggregateSubscription,
	EventSubscriptionPaused:          AggregateSubscription,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type e belongs to, or "" when e is unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}
