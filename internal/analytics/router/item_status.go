package router

import (
	"context"
	"fmt"

	"github.com/Luis3c4/IMEI/internal/analytics"
	"github.com/Luis3c4/IMEI/internal/analytics/types"
	analyticswriter "github.com/Luis3c4/IMEI/internal/analytics/writer"
	"github.com/Luis3c4/IMEI/pkg/logger"
	outboxpayloads "github.com/Luis3c4/IMEI/pkg/outbox/payloads"
)

type itemStatusChangedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newItemStatusChangedHandler(writer Writer, logg *logger.Logger) Handler {
	return &itemStatusChangedHandler{writer: writer, logg: logg}
}

func (h *itemStatusChangedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*outboxpayloads.ItemStatusChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for item_status_changed")
	}

	fields := map[string]any{
		"event_type":    envelope.EventType,
		"item_id":       event.ItemID,
		"serial_number": event.SerialNumber,
		"status":        event.Status,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := buildItemStatusChangedRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build sighting row", err)
		return err
	}

	if err := h.writer.InsertSighting(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert sighting row", err)
		return err
	}

	h.logg.Info(logCtx, "item_status_changed handler inserted sighting row")
	return nil
}

func buildItemStatusChangedRow(envelope types.Envelope, event *outboxpayloads.ItemStatusChangedEvent) (types.DeviceSightingRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return types.DeviceSightingRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	return types.DeviceSightingRow{
		EventID:        envelope.EventID,
		EventType:      string(envelope.EventType),
		OccurredAt:     analytics.SightingTimestamp(&event.ChangedAt, envelope.OccurredAt),
		SerialNumber:   event.SerialNumber,
		ItemID:         uuidPtr(event.ItemID),
		PreviousStatus: stringPtr(string(event.Previous)),
		Status:         stringPtr(string(event.Status)),
		Payload:        payloadJSON,
	}, nil
}
