package events

import (
	"context"
	"time"
)

// Attribute keys carried next to the body so consumers can route without
// decoding the payload.
const (
	AttrTo              = "to"
	AttrStartDate       = "startDate"
	AttrEndDate         = "endDate"
	AttrManagerAssigned = "managerAssigned"
	AttrRequestID       = "requestId"
)

// Message is the broker envelope for one notification.
type Message struct {
	ID          string            `json:"id"`
	Subject     string            `json:"subject"`
	Attributes  map[string]string `json:"attributes"`
	Body        []byte            `json:"body"`
	PublishedAt time.Time         `json:"publishedAt"`
}

// Publisher hands messages to the broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Delivery is one receipt of a message. Exactly one of Ack, Abandon or
// DeadLetter settles it; later calls are ignored.
type Delivery interface {
	Message() Message
	// DeliveryCount starts at 1 and grows on every redelivery.
	DeliveryCount() int
	Ack(ctx context.Context) error
	// Abandon returns the message for redelivery.
	Abandon(ctx context.Context) error
	// DeadLetter parks the message permanently with a reason.
	DeadLetter(ctx context.Context, reason string) error
}

// Receiver yields deliveries. It returns (nil, nil) when nothing arrived
// within its block timeout.
type Receiver interface {
	Receive(ctx context.Context) (Delivery, error)
}

// DeadLetter is a parked message and why it was parked.
type DeadLetter struct {
	Message       Message
	Reason        string
	DeliveryCount int
	At            time.Time
}

// ReasonMaxDeliveries is recorded when redelivery is exhausted.
const ReasonMaxDeliveries = "max delivery count exceeded"
