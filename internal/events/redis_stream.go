package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/timeoff-service/internal/config"
)

const (
	fieldID          = "id"
	fieldSubject     = "subject"
	fieldBody        = "body"
	fieldPublishedAt = "published_at"
	fieldReason      = "reason"
	fieldSourceID    = "source_id"
	fieldDeliveries  = "delivery_count"
	attrPrefix       = "attr."
)

// RedisStreamOptions configures a RedisStreamBroker.
type RedisStreamOptions struct {
	Stream           string
	Group            string
	Consumer         string
	DeadLetterStream string
	MaxDeliveries    int
	// VisibilityTimeout is how long a delivery may stay pending before
	// another receive call reclaims it.
	VisibilityTimeout time.Duration
	BlockTimeout      time.Duration
	MaxLen            int64
}

// OptionsFromConfig maps queue settings onto stream options.
func OptionsFromConfig(cfg config.QueueConfig) RedisStreamOptions {
	return RedisStreamOptions{
		Stream:            cfg.Stream,
		Group:             cfg.Group,
		Consumer:          cfg.Consumer,
		DeadLetterStream:  cfg.DeadLetterStream,
		MaxDeliveries:     cfg.MaxDeliveries,
		VisibilityTimeout: cfg.VisibilityTimeout(),
		BlockTimeout:      cfg.BlockTimeout(),
		MaxLen:            cfg.MaxLen,
	}
}

func (o *RedisStreamOptions) setDefaults() {
	if o.MaxDeliveries <= 0 {
		o.MaxDeliveries = 10
	}
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = time.Minute
	}
	if o.BlockTimeout <= 0 {
		o.BlockTimeout = 5 * time.Second
	}
	if o.DeadLetterStream == "" {
		o.DeadLetterStream = o.Stream + ".dead"
	}
}

// RedisStreamBroker publishes to and consumes from a Redis stream through a
// consumer group. Unacknowledged entries are reclaimed with XAUTOCLAIM once
// idle for longer than the visibility timeout.
type RedisStreamBroker struct {
	client redis.UniversalClient
	opts   RedisStreamOptions
}

// NewRedisStreamBroker builds a broker on client.
func NewRedisStreamBroker(client redis.UniversalClient, opts RedisStreamOptions) *RedisStreamBroker {
	opts.setDefaults()
	return &RedisStreamBroker{client: client, opts: opts}
}

// EnsureGroup creates the stream and consumer group if they do not exist.
func (b *RedisStreamBroker) EnsureGroup(ctx context.Context) error {
	err := b.client.XGroupCreateMkStream(ctx, b.opts.Stream, b.opts.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", b.opts.Group, err)
	}
	return nil
}

func (b *RedisStreamBroker) Publish(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = time.Now().UTC()
	}
	args := &redis.XAddArgs{
		Stream: b.opts.Stream,
		ID:     "*",
		Values: encodeMessage(msg),
	}
	if b.opts.MaxLen > 0 {
		args.MaxLen = b.opts.MaxLen
		args.Approx = true
	}
	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", b.opts.Stream, err)
	}
	return nil
}

// Receive first reclaims a stale pending entry, then reads new entries.
// Reclaimed entries past MaxDeliveries are dead-lettered here and never
// handed to the caller.
func (b *RedisStreamBroker) Receive(ctx context.Context) (Delivery, error) {
	d, err := b.reclaim(ctx)
	if err != nil || d != nil {
		return d, err
	}

	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.opts.Group,
		Consumer: b.opts.Consumer,
		Streams:  []string{b.opts.Stream, ">"},
		Count:    1,
		Block:    b.opts.BlockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", b.opts.Stream, err)
	}
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			return &redisDelivery{broker: b, entryID: entry.ID, msg: decodeMessage(entry.Values), deliveries: 1}, nil
		}
	}
	return nil, nil
}

func (b *RedisStreamBroker) reclaim(ctx context.Context) (Delivery, error) {
	entries, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   b.opts.Stream,
		Group:    b.opts.Group,
		Consumer: b.opts.Consumer,
		MinIdle:  b.opts.VisibilityTimeout,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xautoclaim %s: %w", b.opts.Stream, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	entry := entries[0]
	count, err := b.deliveryCount(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	d := &redisDelivery{broker: b, entryID: entry.ID, msg: decodeMessage(entry.Values), deliveries: count}
	if count > b.opts.MaxDeliveries {
		if err := d.DeadLetter(ctx, ReasonMaxDeliveries); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return d, nil
}

func (b *RedisStreamBroker) deliveryCount(ctx context.Context, entryID string) (int, error) {
	pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: b.opts.Stream,
		Group:  b.opts.Group,
		Start:  entryID,
		End:    entryID,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending %s: %w", entryID, err)
	}
	if len(pending) == 0 {
		return 1, nil
	}
	return int(pending[0].RetryCount), nil
}

type redisDelivery struct {
	broker     *RedisStreamBroker
	entryID    string
	msg        Message
	deliveries int
	settled    bool
}

func (d *redisDelivery) Message() Message   { return d.msg }
func (d *redisDelivery) DeliveryCount() int { return d.deliveries }

func (d *redisDelivery) Ack(ctx context.Context) error {
	if d.settled {
		return nil
	}
	opts := d.broker.opts
	if err := d.broker.client.XAck(ctx, opts.Stream, opts.Group, d.entryID).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", d.entryID, err)
	}
	d.settled = true
	return nil
}

// Abandon leaves the entry pending; it is reclaimed after the visibility
// timeout, which acts as the retry backoff.
func (d *redisDelivery) Abandon(context.Context) error {
	if d.settled {
		return nil
	}
	d.settled = true
	return nil
}

func (d *redisDelivery) DeadLetter(ctx context.Context, reason string) error {
	if d.settled {
		return nil
	}
	opts := d.broker.opts
	values := encodeMessage(d.msg)
	values[fieldReason] = reason
	values[fieldSourceID] = d.entryID
	values[fieldDeliveries] = d.deliveries

	_, err := d.broker.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: opts.DeadLetterStream, ID: "*", Values: values})
		pipe.XAck(ctx, opts.Stream, opts.Group, d.entryID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("dead-letter %s: %w", d.entryID, err)
	}
	d.settled = true
	return nil
}

func encodeMessage(msg Message) map[string]any {
	values := map[string]any{
		fieldID:          msg.ID,
		fieldSubject:     msg.Subject,
		fieldBody:        string(msg.Body),
		fieldPublishedAt: msg.PublishedAt.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range msg.Attributes {
		values[attrPrefix+k] = v
	}
	return values
}

// decodeMessage never fails: missing or non-string fields decode as empty
// so the consumer can decide whether the payload is malformed.
func decodeMessage(values map[string]any) Message {
	msg := Message{Attributes: map[string]string{}}
	for k, raw := range values {
		v, ok := raw.(string)
		if !ok {
			continue
		}
		switch {
		case k == fieldID:
			msg.ID = v
		case k == fieldSubject:
			msg.Subject = v
		case k == fieldBody:
			msg.Body = []byte(v)
		case k == fieldPublishedAt:
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				msg.PublishedAt = t
			}
		case strings.HasPrefix(k, attrPrefix):
			msg.Attributes[strings.TrimPrefix(k, attrPrefix)] = v
		}
	}
	return msg
}
