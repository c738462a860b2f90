package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/timeoff-service/internal/domain"
	"github.com/spec-kit/timeoff-service/internal/events"
	"github.com/spec-kit/timeoff-service/internal/mail"
	"github.com/spec-kit/timeoff-service/internal/observability"
)

// Delivery outcomes reported to metrics.
const (
	OutcomeSent         = "sent"
	OutcomeAbandoned    = "abandoned"
	OutcomeDeadLettered = "dead_lettered"
)

const defaultReceiveBackoff = time.Second

// NotificationWorker drains notification intents from the broker and mails
// them. Delivery is at-least-once: a crash between send and ack resends.
type NotificationWorker struct {
	receiver    events.Receiver
	sender      mail.Sender
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	backoff     time.Duration
}

// Dependencies bundles collaborators for NotificationWorker.
type Dependencies struct {
	Receiver events.Receiver
	Sender   mail.Sender
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	// Concurrency caps in-flight deliveries. Defaults to 1.
	Concurrency int
	// ReceiveBackoff is the pause after a broker error.
	ReceiveBackoff time.Duration
}

func NewNotificationWorker(deps Dependencies) *NotificationWorker {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = 1
	}
	if deps.ReceiveBackoff <= 0 {
		deps.ReceiveBackoff = defaultReceiveBackoff
	}
	return &NotificationWorker{
		receiver:    deps.Receiver,
		sender:      deps.Sender,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		concurrency: deps.Concurrency,
		backoff:     deps.ReceiveBackoff,
	}
}

// Run starts one receive loop per concurrency slot and blocks until ctx ends.
func (w *NotificationWorker) Run(ctx context.Context) error {
	w.logger.Info("notification worker started", zap.Int("concurrency", w.concurrency))
	g, ctx := errgroup.WithContext(ctx)
	for slot := 0; slot < w.concurrency; slot++ {
		g.Go(func() error {
			return w.loop(ctx, slot)
		})
	}
	err := g.Wait()
	w.logger.Info("notification worker stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *NotificationWorker) loop(ctx context.Context, slot int) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		d, err := w.receiver.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("receive failed", zap.Int("slot", slot), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.backoff):
			}
			continue
		}
		if d == nil {
			continue
		}
		w.Handle(ctx, d)
	}
}

// Handle processes one delivery and settles it. Malformed payloads are
// dead-lettered; any other failure abandons the delivery for redelivery.
func (w *NotificationWorker) Handle(ctx context.Context, d events.Delivery) string {
	started := time.Now()
	msg := d.Message()
	log := w.logger.With(
		zap.String("message_id", msg.ID),
		zap.String("subject", msg.Subject),
		zap.Int("delivery_count", d.DeliveryCount()))

	// Settlement must reach the broker even when shutdown cancels ctx.
	settleCtx := context.WithoutCancel(ctx)

	outcome := w.handle(ctx, settleCtx, d, log)
	w.metrics.RecordDelivery(outcome, time.Since(started))
	return outcome
}

func (w *NotificationWorker) handle(ctx, settleCtx context.Context, d events.Delivery, log *zap.Logger) string {
	msg := d.Message()
	intent, err := decodeIntent(msg)
	if err != nil {
		log.Warn("dead-lettering malformed notification", zap.Error(err))
		if err := d.DeadLetter(settleCtx, err.Error()); err != nil {
			log.Error("dead-letter failed", zap.Error(err))
		}
		return OutcomeDeadLettered
	}

	err = w.sender.Send(ctx, mail.Message{
		To:       intent.RecipientEmail,
		Subject:  intent.Subject,
		HTMLBody: intent.BodyHTML,
		TextBody: intent.BodyText,
	})
	if err != nil {
		log.Warn("notification send failed; abandoning for redelivery",
			zap.Int64("request_id", intent.RequestID),
			zap.Error(err))
		if err := d.Abandon(settleCtx); err != nil {
			log.Error("abandon failed", zap.Error(err))
		}
		return OutcomeAbandoned
	}

	if err := d.Ack(settleCtx); err != nil {
		// The broker redelivers an unacknowledged message; a duplicate send
		// is accepted.
		log.Error("ack failed", zap.Error(err))
	}
	log.Info("notification sent", zap.Int64("request_id", intent.RequestID))
	return OutcomeSent
}

// decodeIntent rejects payloads that can never succeed. The recipient falls
// back to the envelope attribute when the body omits it.
func decodeIntent(msg events.Message) (*domain.NotificationIntent, error) {
	var intent *domain.NotificationIntent
	if err := json.Unmarshal(msg.Body, &intent); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}
	if intent == nil {
		return nil, errors.New("malformed payload: empty intent")
	}
	if strings.TrimSpace(intent.RecipientEmail) == "" {
		intent.RecipientEmail = msg.Attributes[events.AttrTo]
	}
	if strings.TrimSpace(intent.RecipientEmail) == "" {
		return nil, errors.New("malformed payload: missing recipient")
	}
	if intent.Subject == "" {
		intent.Subject = msg.Subject
	}
	return intent, nil
}
