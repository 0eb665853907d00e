package devices

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Luis3c4/IMEI/pkg/db/models"
	"github.com/Luis3c4/IMEI/pkg/enums"
	pkgpagination "github.com/Luis3c4/IMEI/pkg/pagination"
)

// ListParams holds device listing inputs. Tier narrows the list to devices
// whose most recent sighting came from that vendor tier.
type ListParams struct {
	Tier enums.LookupTier
	pkgpagination.Params
}

// ListResult is one page of devices plus the cursor for the next page.
// Cursor is empty on the last page.
type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID           uuid.UUID        `json:"id"`
	SerialNumber string           `json:"serial_number"`
	IMEI         *string          `json:"imei,omitempty"`
	Name         *string          `json:"name,omitempty"`
	Brand        *string          `json:"brand,omitempty"`
	Model        *string          `json:"model,omitempty"`
	LookupTier   enums.LookupTier `json:"lookup_tier"`
	LastLookupAt *time.Time       `json:"last_lookup_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// LookupListResult is one page of a device's lookup history.
type LookupListResult struct {
	Items  []LookupItem `json:"items"`
	Cursor string       `json:"cursor"`
}

type LookupItem struct {
	ID           uuid.UUID        `json:"id"`
	Tier         enums.LookupTier `json:"tier"`
	Payload      json.RawMessage  `json:"payload"`
	LookupPrice  *decimal.Decimal `json:"lookup_price,omitempty"`
	CatalogPrice *decimal.Decimal `json:"catalog_price,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

type listQuery struct {
	tier   enums.LookupTier
	limit  int
	cursor *pkgpagination.Cursor
}

func toListItem(m models.Device) ListItem {
	return ListItem{
		ID:           m.ID,
		SerialNumber: m.SerialNumber,
		IMEI:         m.IMEI,
		Name:         m.Name,
		Brand:        m.Brand,
		Model:        m.Model,
		LookupTier:   m.LookupTier,
		LastLookupAt: m.LastLookupAt,
		CreatedAt:    m.CreatedAt,
	}
}

func toLookupItem(m models.DeviceLookup) LookupItem {
	return LookupItem{
		ID:           m.ID,
		Tier:         m.Tier,
		Payload:      m.Payload,
		LookupPrice:  m.LookupPrice,
		CatalogPrice: m.CatalogPrice,
		CreatedAt:    m.CreatedAt,
	}
}
