package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Luis3c4/IMEI/internal/analytics/types"
	"github.com/Luis3c4/IMEI/pkg/enums"
	"github.com/Luis3c4/IMEI/pkg/logger"
	"github.com/Luis3c4/IMEI/pkg/outbox/payloads"
)

type capturingHandler struct {
	envelope types.Envelope
	payload  any
	calls    int
}

func (c *capturingHandler) Handle(_ context.Context, envelope types.Envelope, payload any) error {
	c.envelope = envelope
	c.payload = payload
	c.calls++
	return nil
}

func buildRouter(t *testing.T, writer Writer, overrides map[enums.OutboxEventType]Handler) *Router {
	t.Helper()
	r, err := NewRouter(writer, logger.New(logger.Options{ServiceName: "router-test"}), overrides)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r
}

func reconciledEnvelope(t *testing.T, event payloads.DeviceReconciledEvent) types.Envelope {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return types.Envelope{
		EventID:   uuid.NewString(),
		EventType: enums.EventDeviceReconciled,
		Payload:   data,
	}
}

func TestRouterUnsupportedEvent(t *testing.T) {
	r := buildRouter(t, &fakeWriter{}, nil)
	err := r.Handle(context.Background(), types.Envelope{
		EventType: enums.OutboxEventType("price_quoted"),
		Payload:   []byte(`{}`),
	})
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("want ErrUnsupportedEventType, got %v", err)
	}
}

func TestRouterOverrideReceivesDecodedPayload(t *testing.T) {
	override := &capturingHandler{}
	r := buildRouter(t, &fakeWriter{}, map[enums.OutboxEventType]Handler{
		enums.EventDeviceReconciled: override,
	})

	event := payloads.DeviceReconciledEvent{
		SerialNumber: "DNPXK1ABCD12",
		ProductID:    uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		VariantID:    uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		ItemID:       uuid.MustParse("00000000-0000-0000-0000-000000000003"),
	}
	if err := r.Handle(context.Background(), reconciledEnvelope(t, event)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if override.calls != 1 {
		t.Fatalf("override called %d times", override.calls)
	}
	decoded, ok := override.payload.(*payloads.DeviceReconciledEvent)
	if !ok {
		t.Fatalf("payload decoded as %T", override.payload)
	}
	if decoded.SerialNumber != event.SerialNumber {
		t.Fatalf("serial %q survived decode as %q", event.SerialNumber, decoded.SerialNumber)
	}
}

func TestRouterDefaultHandlerWritesSighting(t *testing.T) {
	writer := &fakeWriter{}
	r := buildRouter(t, writer, nil)

	event := payloads.DeviceReconciledEvent{
		SerialNumber: "F2LLD0AXHG7F",
		ProductID:    uuid.MustParse("00000000-0000-0000-0000-000000000011"),
	}
	if err := r.Handle(context.Background(), reconciledEnvelope(t, event)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("inserted %d rows, want 1", len(writer.inserted))
	}
	if writer.inserted[0].SerialNumber != event.SerialNumber {
		t.Fatalf("row serial = %q", writer.inserted[0].SerialNumber)
	}
}

func TestRouterOverrideForUnknownEventIsIgnored(t *testing.T) {
	override := &capturingHandler{}
	r := buildRouter(t, &fakeWriter{}, map[enums.OutboxEventType]Handler{
		enums.OutboxEventType("price_quoted"): override,
	})
	err := r.Handle(context.Background(), types.Envelope{
		EventType: enums.OutboxEventType("price_quoted"),
		Payload:   []byte(`{}`),
	})
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("unknown-event override must not open a route, got %v", err)
	}
}

func TestRouterRejectsUnknownVersion(t *testing.T) {
	r := buildRouter(t, &fakeWriter{}, nil)
	err := r.Handle(context.Background(), types.Envelope{
		EventType: enums.EventDeviceReconciled,
		Version:   7,
		Payload:   []byte(`{}`),
	})
	if err == nil {
		t.Fatal("version 7 has no registered decoder")
	}
}

func TestRouterEmptyPayload(t *testing.T) {
	r := buildRouter(t, &fakeWriter{}, nil)
	err := r.Handle(context.Background(), types.Envelope{EventType: enums.EventItemStatusChanged})
	if err == nil {
		t.Fatal("empty payload must not reach the handler")
	}
}
