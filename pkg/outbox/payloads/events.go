package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Luis3c4/IMEI/pkg/enums"
)

// DeviceReconciledEvent is emitted after a vendor record is folded into the
// catalog, whether the sighting created rows or matched existing ones.
type DeviceReconciledEvent struct {
	SerialNumber  string           `json:"serial_number"`
	ProductID     uuid.UUID        `json:"product_id"`
	VariantID     uuid.UUID        `json:"variant_id"`
	ItemID        uuid.UUID        `json:"item_id"`
	ProductName   string           `json:"product_name"`
	Category      *string          `json:"category,omitempty"`
	Color         *string          `json:"color,omitempty"`
	Capacity      *string          `json:"capacity,omitempty"`
	ProductNumber *string          `json:"product_number,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Tier          enums.LookupTier `json:"tier,omitempty"`
	ReconciledAt  time.Time        `json:"reconciled_at"`
}

// ItemStatusChangedEvent is emitted when an inventory unit flips state.
type ItemStatusChangedEvent struct {
	ItemID       uuid.UUID        `json:"item_id"`
	SerialNumber string           `json:"serial_number"`
	Previous     enums.ItemStatus `json:"previous"`
	Status       enums.ItemStatus `json:"status"`
	ChangedAt    time.Time        `json:"changed_at"`
}
