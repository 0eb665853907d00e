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

type deviceReconciledHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newDeviceReconciledHandler(writer Writer, logg *logger.Logger) Handler {
	return &deviceReconciledHandler{writer: writer, logg: logg}
}

func (h *deviceReconciledHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*outboxpayloads.DeviceReconciledEvent)
	if !ok {
		return fmt.Errorf("invalid payload for device_reconciled")
	}

	fields := map[string]any{
		"event_type":    envelope.EventType,
		"serial_number": event.SerialNumber,
		"product_id":    event.ProductID,
		"variant_id":    event.VariantID,
		"item_id":       event.ItemID,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := buildDeviceReconciledRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build sighting row", err)
		return err
	}

	if err := h.writer.InsertSighting(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert sighting row", err)
		return err
	}

	h.logg.Info(logCtx, "device_reconciled handler inserted sighting row")
	return nil
}

func buildDeviceReconciledRow(envelope types.Envelope, event *outboxpayloads.DeviceReconciledEvent) (types.DeviceSightingRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return types.DeviceSightingRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	return types.DeviceSightingRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    analytics.SightingTimestamp(&event.ReconciledAt, envelope.OccurredAt),
		SerialNumber:  event.SerialNumber,
		ProductID:     uuidPtr(event.ProductID),
		VariantID:     uuidPtr(event.VariantID),
		ItemID:        uuidPtr(event.ItemID),
		ProductName:   stringPtr(event.ProductName),
		Category:      event.Category,
		Color:         event.Color,
		Capacity:      event.Capacity,
		ProductNumber: event.ProductNumber,
		PriceCents:    priceCents(event.Price),
		LookupTier:    stringPtr(string(event.Tier)),
		Payload:       payloadJSON,
	}, nil
}
