package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/Luis3c4/IMEI/internal/analytics/router"
	"github.com/Luis3c4/IMEI/internal/analytics/types"
	"github.com/Luis3c4/IMEI/pkg/enums"
	"github.com/Luis3c4/IMEI/pkg/logger"
	"github.com/Luis3c4/IMEI/pkg/outbox"
)

const sightingsConsumerName = "sightings"

// Handler processes decoded sighting envelopes.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// outcome is the per-message verdict: ack drops the message for good,
// nack asks Pub/Sub to redeliver it.
type outcome int

const (
	ackMessage outcome = iota
	nackMessage
)

// Service consumes sighting events from Pub/Sub, deduplicating deliveries
// through the Redis idempotency marks.
type Service struct {
	sub     *gcppubsub.Subscriber
	handler Handler
	dedupe  idempotencyChecker
	logg    *logger.Logger
}

// NewService creates a sightings worker service.
func NewService(sub *gcppubsub.Subscriber, handler Handler, dedupe idempotencyChecker, logg *logger.Logger) (*Service, error) {
	if sub == nil {
		return nil, errors.New("sightings subscription is required")
	}
	if handler == nil {
		return nil, errors.New("sightings handler is required")
	}
	if dedupe == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	return &Service{sub: sub, handler: handler, dedupe: dedupe, logg: logg}, nil
}

// Run consumes sighting messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.sub.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.process(msgCtx, msg) == nackMessage {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process decides the fate of one delivery. Malformed and unsupported
// messages are acked so they do not loop forever; only dependency failures
// nack for redelivery.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) outcome {
	logCtx := s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := s.buildEnvelope(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "invalid sighting envelope")
		return ackMessage
	}

	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
		"occurred_at":    envelope.OccurredAt.Format(time.RFC3339Nano),
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(logCtx, "invalid event id")
		return ackMessage
	}

	already, err := s.dedupe.CheckAndMarkProcessed(logCtx, sightingsConsumerName, eventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return nackMessage
	}
	if already {
		s.logg.Info(logCtx, "event already processed")
		return ackMessage
	}

	if err := s.handler.Handle(logCtx, *envelope); err != nil {
		if errors.Is(err, router.ErrUnsupportedEventType) {
			s.logg.Warn(logCtx, "unsupported event type dropped")
			return ackMessage
		}
		// Clear the mark so the redelivered message is not treated as a
		// duplicate.
		s.logg.Error(logCtx, "handler error", err)
		_ = s.dedupe.Delete(logCtx, sightingsConsumerName, eventID)
		return nackMessage
	}

	s.logg.Info(logCtx, "sighting event handled")
	return ackMessage
}

func (s *Service) buildEnvelope(msg *gcppubsub.Message) (*types.Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventType, err := enums.ParseOutboxEventType(attr(msg, "event_type"))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr(msg, "aggregate_type"))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr(msg, "aggregate_id")
	if aggregateID == "" {
		return nil, errors.New("aggregate_id missing")
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = attr(msg, "event_id")
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	// Older publishers did not embed occurred_at in the payload, so fall
	// back to the created_at message attribute.
	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attr(msg, "created_at")); err == nil {
			occurredAt = parsed
		}
	}

	return &types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Version:       stored.Version,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, nil
}

func attr(msg *gcppubsub.Message, key string) string {
	return strings.TrimSpace(msg.Attributes[key])
}
