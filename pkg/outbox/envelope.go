package outbox

import (
	"encoding/json"
	"time"

	"github.com/Luis3c4/IMEI/pkg/enums"
)

// SourceRef identifies the vendor lookup that produced the event.
type SourceRef struct {
	Tier    enums.LookupTier `json:"tier,omitempty"`
	OrderID string           `json:"orderId,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Source     *SourceRef      `json:"source,omitempty"`
	Data       json.RawMessage `json:"data"`
}
