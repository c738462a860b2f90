package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryItem struct {
	msg        Message
	deliveries int
}

// MemoryBroker is an in-process queue with redelivery and dead-lettering.
// It backs single-process deployments and tests.
type MemoryBroker struct {
	mu            sync.Mutex
	queue         []*memoryItem
	dead          []DeadLetter
	maxDeliveries int
	blockTimeout  time.Duration
	ready         chan struct{}
}

// NewMemoryBroker creates a broker. maxDeliveries <= 0 means 10.
func NewMemoryBroker(maxDeliveries int, blockTimeout time.Duration) *MemoryBroker {
	if maxDeliveries <= 0 {
		maxDeliveries = 10
	}
	if blockTimeout <= 0 {
		blockTimeout = time.Second
	}
	return &MemoryBroker{
		maxDeliveries: maxDeliveries,
		blockTimeout:  blockTimeout,
		ready:         make(chan struct{}, 1),
	}
}

// Publish enqueues msg, assigning an id and timestamp when missing.
func (b *MemoryBroker) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = time.Now().UTC()
	}
	b.enqueue(&memoryItem{msg: msg})
	return nil
}

// Receive blocks up to the block timeout for the next message.
func (b *MemoryBroker) Receive(ctx context.Context) (Delivery, error) {
	timer := time.NewTimer(b.blockTimeout)
	defer timer.Stop()

	for {
		if item := b.dequeue(); item != nil {
			item.deliveries++
			return &memoryDelivery{broker: b, item: item}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-b.ready:
		}
	}
}

// Len reports queued (not in-flight) messages.
func (b *MemoryBroker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// DeadLetters returns a copy of the parked messages.
func (b *MemoryBroker) DeadLetters() []DeadLetter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DeadLetter(nil), b.dead...)
}

func (b *MemoryBroker) enqueue(item *memoryItem) {
	b.mu.Lock()
	b.queue = append(b.queue, item)
	b.mu.Unlock()
	b.signal()
}

func (b *MemoryBroker) dequeue() *memoryItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil
	}
	item := b.queue[0]
	b.queue = b.queue[1:]
	if len(b.queue) > 0 {
		b.signal()
	}
	return item
}

func (b *MemoryBroker) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

func (b *MemoryBroker) park(item *memoryItem, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dead = append(b.dead, DeadLetter{
		Message:       item.msg,
		Reason:        reason,
		DeliveryCount: item.deliveries,
		At:            time.Now().UTC(),
	})
}

type memoryDelivery struct {
	broker  *MemoryBroker
	item    *memoryItem
	settled sync.Once
}

func (d *memoryDelivery) Message() Message   { return d.item.msg }
func (d *memoryDelivery) DeliveryCount() int { return d.item.deliveries }

func (d *memoryDelivery) Ack(context.Context) error {
	d.settled.Do(func() {})
	return nil
}

func (d *memoryDelivery) Abandon(context.Context) error {
	d.settled.Do(func() {
		if d.item.deliveries >= d.broker.maxDeliveries {
			d.broker.park(d.item, ReasonMaxDeliveries)
			return
		}
		d.broker.enqueue(d.item)
	})
	return nil
}

func (d *memoryDelivery) DeadLetter(_ context.Context, reason string) error {
	d.settled.Do(func() {
		d.broker.park(d.item, reason)
	})
	return nil
}
