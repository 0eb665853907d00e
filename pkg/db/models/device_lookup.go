package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Luis3c4/IMEI/pkg/enums"
)

// DeviceLookup is the append-only history of vendor lookups for a device.
// Payload keeps the raw vendor record so a lookup can be replayed through
// the parser after a rule change.
type DeviceLookup struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DeviceID     uuid.UUID        `gorm:"column:device_id;type:uuid;not null"`
	Tier         enums.LookupTier `gorm:"column:tier;not null"`
	Payload      json.RawMessage  `gorm:"column:payload;type:jsonb;not null"`
	LookupPrice  *decimal.Decimal `gorm:"column:lookup_price;type:numeric(12,2)"`
	CatalogPrice *decimal.Decimal `gorm:"column:catalog_price;type:numeric(12,2)"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (l *DeviceLookup) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
