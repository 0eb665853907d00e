package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// DeviceSightingRow mirrors the device_sightings BigQuery schema. Both the
// reconcile and status-change events land in the same table, distinguished
// by event_type; columns the event does not carry stay NULL.
type DeviceSightingRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	SerialNumber   string             `bigquery:"serial_number"`
	ProductID      *string            `bigquery:"product_id"`
	VariantID      *string            `bigquery:"variant_id"`
	ItemID         *string            `bigquery:"item_id"`
	ProductName    *string            `bigquery:"product_name"`
	Category       *string            `bigquery:"category"`
	Color          *string            `bigquery:"color"`
	Capacity       *string            `bigquery:"capacity"`
	ProductNumber  *string            `bigquery:"product_number"`
	PriceCents     *int64             `bigquery:"price_cents"`
	LookupTier     *string            `bigquery:"lookup_tier"`
	PreviousStatus *string            `bigquery:"previous_status"`
	Status         *string            `bigquery:"status"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}
