package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Luis3c4/IMEI/internal/analytics/types"
	"github.com/Luis3c4/IMEI/pkg/enums"
	"github.com/Luis3c4/IMEI/pkg/logger"
	outboxpayloads "github.com/Luis3c4/IMEI/pkg/outbox/payloads"
	"github.com/Luis3c4/IMEI/pkg/outbox/registry"
)

var ErrUnsupportedEventType = errors.New("unsupported sighting event type")

// Writer sinks the BigQuery rows that sighting handlers produce.
type Writer interface {
	InsertSighting(ctx context.Context, row types.DeviceSightingRow) error
}

// Handler consumes one envelope together with its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// Router pairs each event type with a payload decoder and a handler.
type Router struct {
	decoders *registry.DecoderRegistry
	handlers map[enums.OutboxEventType]Handler
	logg     *logger.Logger
}

// decodeAs unmarshals a payload into a fresh T and returns a pointer to it.
func decodeAs[T any](payload json.RawMessage) (any, error) {
	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// NewRouter builds the default event table. An override replaces the handler
// for an event the router already knows; overrides for unknown events are
// ignored so a stray config entry cannot open an undecodable route.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	switch {
	case writer == nil:
		return nil, errors.New("writer is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}

	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventDeviceReconciled, 1, decodeAs[outboxpayloads.DeviceReconciledEvent])
	decoders.Register(enums.EventItemStatusChanged, 1, decodeAs[outboxpayloads.ItemStatusChangedEvent])

	r := &Router{
		decoders: decoders,
		handlers: map[enums.OutboxEventType]Handler{
			enums.EventDeviceReconciled:  newDeviceReconciledHandler(writer, logg),
			enums.EventItemStatusChanged: newItemStatusChangedHandler(writer, logg),
		},
		logg: logg,
	}
	for event, custom := range overrides {
		if _, known := r.handlers[event]; known && custom != nil {
			r.handlers[event] = custom
		}
	}
	return r, nil
}

// Handle decodes the envelope payload at its declared version and dispatches
// it. Envelopes written before versioning shipped carry no version and are
// read as version 1.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}

	version := max(envelope.Version, 1)
	payload, err := r.decoders.Decode(envelope.EventType, version, envelope.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}
	return handler.Handle(ctx, envelope, payload)
}
