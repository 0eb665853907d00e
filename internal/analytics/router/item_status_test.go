package router

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Luis3c4/IMEI/internal/analytics/types"
	"github.com/Luis3c4/IMEI/pkg/enums"
	"github.com/Luis3c4/IMEI/pkg/logger"
	outboxpayloads "github.com/Luis3c4/IMEI/pkg/outbox/payloads"
)

func TestItemStatusChangedHandlerInsertsSightingRow(t *testing.T) {
	writer := &fakeWriter{}
	handler := newItemStatusChangedHandler(writer, logger.New(logger.Options{ServiceName: "router-item-status-test"}))
	now := time.Now().UTC()
	changedAt := now.Add(-30 * time.Second)
	event := &outboxpayloads.ItemStatusChangedEvent{
		ItemID:       uuid.New(),
		SerialNumber: "C02XK1WGJGH5",
		Previous:     enums.ItemStatusAvailable,
		Status:       enums.ItemStatusSold,
		ChangedAt:    changedAt,
	}

	envelope := types.Envelope{
		EventID:    "event-id",
		EventType:  enums.EventItemStatusChanged,
		OccurredAt: now,
		Payload:    []byte("{}"),
	}

	if err := handler.Handle(context.Background(), envelope, event); err != nil {
		t.Fatalf("handle item_status_changed: %v", err)
	}

	if len(writer.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(writer.inserted))
	}

	row := writer.inserted[0]
	if row.EventType != string(enums.EventItemStatusChanged) {
		t.Fatalf("unexpected event type: %s", row.EventType)
	}
	if !row.OccurredAt.Equal(changedAt) {
		t.Fatalf("expected changed_at to win, got %v", row.OccurredAt)
	}
	if row.ItemID == nil || *row.ItemID != event.ItemID.String() {
		t.Fatalf("item id mismatch: %v", row.ItemID)
	}
	if row.PreviousStatus == nil || *row.PreviousStatus != "available" {
		t.Fatalf("previous status mismatch: %v", row.PreviousStatus)
	}
	if row.Status == nil || *row.Status != "sold" {
		t.Fatalf("status mismatch: %v", row.Status)
	}
	if row.ProductID != nil || row.ProductName != nil {
		t.Fatalf("product columns should stay empty for status rows")
	}
}

func TestItemStatusChangedHandlerRejectsWrongPayload(t *testing.T) {
	writer := &fakeWriter{}
	handler := newItemStatusChangedHandler(writer, logger.New(logger.Options{ServiceName: "router-item-status-test"}))
	envelope := types.Envelope{EventType: enums.EventItemStatusChanged}

	if err := handler.Handle(context.Background(), envelope, &outboxpayloads.DeviceReconciledEvent{}); err == nil {
		t.Fatal("expected error for wrong payload type")
	}
	if len(writer.inserted) != 0 {
		t.Fatalf("expected no inserts, got %d", len(writer.inserted))
	}
}
